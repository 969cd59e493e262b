// Command poolbench drives a connpool.Pool under synthetic concurrent
// load, optionally serving the admin HTTP surface alongside it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/relaypool/connpool/internal/adminhttp"
	"github.com/relaypool/connpool/internal/config"
	"github.com/relaypool/connpool/internal/health"
	"github.com/relaypool/connpool/internal/logger"
	"github.com/relaypool/connpool/internal/pool"
	"github.com/relaypool/connpool/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "config file path (optional)")
	driver := flag.String("driver", "", "override configured driver: sqlite, mysql, mock")
	dsn := flag.String("dsn", "", "override configured DSN")
	workers := flag.Int("workers", 20, "number of concurrent acquire/release goroutines")
	duration := flag.Duration("duration", 10*time.Second, "how long to drive load before stopping")
	adminAddr := flag.String("admin-addr", "", "serve the admin HTTP surface on this address (empty disables it)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	flag.Parse()

	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		os.Exit(1)
	}
	if *driver != "" {
		cfg.Driver.Driver = *driver
	}
	if *dsn != "" {
		cfg.Driver.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		log.ErrorWithErr("invalid configuration", err)
		os.Exit(1)
	}

	log.InfoWith("poolbench starting", "driver", cfg.Driver.Driver, "pool_size", cfg.Database.PoolSize)

	factory, err := storage.NewFactory(cfg.Driver)
	if err != nil {
		log.ErrorWithErr("failed to build storage factory", err)
		os.Exit(1)
	}

	monitor := health.NewMonitor()
	monitor.SetComponentStatus("pool", health.StatusHealthy, "pool started")

	var adminSrv *adminhttp.Server
	var logFn pool.LogFn
	if *adminAddr != "" {
		adminSrv = adminhttp.NewServer(monitor, nil)
		logFn = adminSrv.LogFn()
	} else {
		logFn = logger.DefaultLogFn(log)
	}

	log.DebugWith("pool options resolved",
		"pool_size", cfg.Database.PoolSize,
		"connection_timeout_ms", cfg.Database.ConnectionTimeoutMS,
		"idle_timeout_ms", cfg.Database.IdleTimeoutMS,
		"max_lifetime_ms", cfg.Database.MaxLifetimeMS,
		"validate_on_checkout", cfg.Database.ValidateOnCheckout,
	)

	p, err := pool.New(factory, pool.Options{
		PoolSize:                 cfg.Database.PoolSize,
		ConnectionTimeout:        time.Duration(cfg.Database.ConnectionTimeoutMS) * time.Millisecond,
		IdleTimeout:              time.Duration(cfg.Database.IdleTimeoutMS) * time.Millisecond,
		MaxLifetime:              time.Duration(cfg.Database.MaxLifetimeMS) * time.Millisecond,
		ValidationTimeout:        time.Duration(cfg.Database.ValidationTimeoutMS) * time.Millisecond,
		ThrowOnConnectionTimeout: cfg.Database.ThrowOnConnectionTimeout,
		ValidateOnCheckout:       cfg.Database.ValidateOnCheckout,
		LogFn:                    logFn,
	})
	if err != nil {
		log.ErrorWithErr("failed to start pool", err)
		os.Exit(1)
	}
	defer p.Close()

	var httpSrv *http.Server
	if adminSrv != nil {
		adminSrv.SetTarget(poolStatter{p})
		httpSrv = &http.Server{Addr: *adminAddr, Handler: adminSrv.Handler()}
		go func() {
			log.InfoWith("admin HTTP surface listening", "addr", *adminAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.ErrorWithErr("admin HTTP server error", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.InfoWith("received signal", "signal", sig.String())
		cancel()
	}()

	acquired, failed := runLoad(ctx, p, *workers)

	log.InfoWith("load run complete", "acquired", acquired, "failed", failed)
	stats := p.Stats()
	fmt.Printf("acquired=%d failed=%d overflowed=%d replenished=%d timeouts=%d\n",
		acquired, failed, stats.Overflowed, stats.Replenished, stats.AcquireTimeouts)

	if httpSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
}

// runLoad repeatedly acquires and releases connections from p using
// workerCount goroutines until ctx is done.
func runLoad(ctx context.Context, p *pool.Pool, workerCount int) (acquired, failed int64) {
	var wg sync.WaitGroup
	var acquiredCount, failedCount atomic.Int64

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				slot, err := p.Acquire()
				if err != nil {
					failedCount.Add(1)
					continue
				}
				if _, err := slot.Phys(ctx); err != nil {
					failedCount.Add(1)
					_ = p.Release(slot)
					continue
				}
				acquiredCount.Add(1)
				_ = p.Release(slot)
			}
		}()
	}
	wg.Wait()
	return acquiredCount.Load(), failedCount.Load()
}

// poolStatter adapts *pool.Pool to adminhttp.PoolStatter.
type poolStatter struct {
	p *pool.Pool
}

func (s poolStatter) Stats() pool.Stats {
	return s.p.Stats()
}
