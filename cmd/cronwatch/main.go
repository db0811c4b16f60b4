package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"cronwatch/internal/alert"
	"cronwatch/internal/config"
	"cronwatch/internal/debug"
	"cronwatch/internal/jenkins"
	"cronwatch/internal/monitor"
	"cronwatch/internal/storage"
	"cronwatch/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath, logx.NewConsole("info"))
	cfg, err := mgr.Load()
	if err != nil {
		return err
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return err
	}
	defer log.Close()

	client, err := jenkins.NewClient(jenkins.Options{
		BaseURL:        cfg.Jenkins.URL,
		Username:       cfg.Jenkins.Username,
		APIToken:       cfg.Jenkins.APIToken,
		Timeout:        cfg.Jenkins.TimeoutOrDefault(),
		MaxAttempts:    cfg.Jenkins.MaxAttemptsOrDefault(),
		RetryBaseDelay: cfg.Jenkins.RetryBaseDelayOrDefault(),
	}, log.With(logx.String("component", "jenkins")))
	if err != nil {
		return err
	}

	// Advisory only: the upstream being down is exactly what the monitor
	// exists to notice.
	pingCtx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		log.Warn("upstream not reachable at startup", logx.Err(err))
	} else {
		log.Info("connected to upstream", logx.String("url", client.BaseURL()))
	}
	cancelPing()

	journal, err := storage.Open(cfg.Storage, log.With(logx.String("component", "storage")))
	if err != nil {
		return err
	}
	defer func() {
		if journal != nil {
			_ = journal.Close()
		}
	}()

	sinks, err := buildSinks(cfg.Alerts)
	if err != nil {
		return err
	}
	if len(sinks) == 0 {
		log.Warn("no alert sinks configured, alerts will be logged only")
	}

	alertCfg, err := alertConfig(cfg.Alerts)
	if err != nil {
		return err
	}
	var j alert.Journal
	if journal != nil {
		j = journal
	}
	notifier := alert.NewNotifier(alertCfg, sinks, j, log.With(logx.String("component", "alert")))
	notifier.Start(ctx)

	mon := monitor.New(client, notifier, cfg, log.With(logx.String("component", "monitor")))

	pprofSrv := debug.NewPprofServer(log.With(logx.String("component", "pprof")))
	pprofSrv.Apply(ctx, cfg.Pprof)
	defer pprofSrv.Stop(context.Background())
	pprofReload := mgr.Subscribe(1)
	defer mgr.Unsubscribe(pprofReload)
	go func() {
		for next := range pprofReload {
			pprofSrv.Apply(ctx, next.Pprof)
		}
	}()

	reload := mgr.Subscribe(1)
	defer mgr.Unsubscribe(reload)
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Error("config watch stopped", logx.Err(err))
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("cronwatch started",
		logx.String("config", cfgPath),
		logx.Int("jobs", len(cfg.Jobs)),
		logx.Duration("check_interval", cfg.Monitor.CheckIntervalOrDefault()))

	runErr := mon.Run(ctx, reload)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	notifier.Stop(stopCtx)
	cancelStop()

	if errors.Is(runErr, context.Canceled) {
		log.Info("cronwatch stopped")
		return nil
	}
	return runErr
}

func buildSinks(cfg config.AlertsConfig) ([]alert.Sink, error) {
	var sinks []alert.Sink
	if cfg.Email != nil {
		sinks = append(sinks, alert.NewEmailSink(*cfg.Email))
	}
	if cfg.Telegram != nil {
		tg, err := alert.NewTelegramSink(*cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, tg)
	}
	return sinks, nil
}

func alertConfig(cfg config.AlertsConfig) (alert.Config, error) {
	retryBase, err := config.ParseDurationOrDefault("alerts.retry_base", cfg.RetryBase, 500*time.Millisecond)
	if err != nil {
		return alert.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationOrDefault("alerts.retry_max_delay", cfg.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return alert.Config{}, err
	}
	return alert.Config{
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		RatePerSec:    cfg.RatePerSec,
		RetryMax:      cfg.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}, nil
}
