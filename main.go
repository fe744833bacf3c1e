package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bidflow/config"
	"bidflow/internal/adapter"
	"bidflow/internal/adapter/haha"
	"bidflow/internal/adapter/mahua"
	"bidflow/internal/api"
	"bidflow/internal/channel"
	"bidflow/internal/notify"
	"bidflow/internal/poller"
	"bidflow/internal/rules"
	"bidflow/internal/store"
	"bidflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	rulesPath := flag.String("rules", "", "Path to rule file (overrides configuration)")
	flag.Parse()

	path := config.ResolvePath(*configPath, "config/config.yml", map[string]string{
		config.EnvironmentProduction: "config/config.prod.yml",
		config.EnvironmentStaging:    "config/config.staging.yml",
	})

	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if *rulesPath != "" {
		cfg.Rules.File = *rulesPath
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Bidflow.Name,
		"version": cfg.Bidflow.Version,
	}).Info("starting bidflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Logging.DashboardName != "" || os.Getenv("AWS_REGION") != "" {
		logger.InitCloudWatch(os.Getenv("AWS_REGION"), "Bidflow", cfg.Logging.DashboardName)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	channels := channel.NewChannels(
		cfg.Channels.OrderBuffer,
		cfg.Channels.DecisionBuffer,
	)
	defer channels.Close()

	go channels.StartMetricsReporting(ctx)

	engine := rules.NewEngine(cfg.Rules.File)

	var adapters []adapter.PlatformAdapter
	intervals := make(map[string]int)
	if cfg.Source.Haha.Enabled {
		adapters = append(adapters, haha.NewReader(cfg))
		intervals["haha"] = cfg.Source.Haha.IntervalMs
	}
	if cfg.Source.Mahua.Enabled {
		adapters = append(adapters, mahua.NewReader(cfg))
		intervals["mahua"] = cfg.Source.Mahua.IntervalMs
	}
	if len(adapters) == 0 {
		log.Error("no platform sources enabled")
		os.Exit(1)
	}

	pollers := make([]*poller.Poller, 0, len(adapters))
	for _, a := range adapters {
		pollers = append(pollers, poller.New(cfg, a, engine, channels, intervals[a.Name()]))
	}

	var orderStore *store.Store
	var writer *store.Writer
	if cfg.Store.Enabled {
		orderStore, err = store.Open(cfg.Store.Path)
		if err != nil {
			log.WithError(err).Error("failed to open order store")
			os.Exit(1)
		}
		defer orderStore.Close()
		writer = store.NewWriter(orderStore, channels.Orders)
	} else {
		log.WithComponent("main").Info("order store disabled; skipping writer")
	}

	var dispatcher *notify.Dispatcher
	if cfg.Notifier.Enabled {
		dispatcher = notify.NewDispatcher(channels.Decisions, notify.NewLogNotifier(cfg.Notifier.AlertTemplate))
	} else {
		log.WithComponent("main").Info("notifier disabled; decisions are log-only")
	}

	for _, p := range pollers {
		if err := p.Start(ctx); err != nil {
			log.WithError(err).Warn("poller failed to start")
		}
	}

	if writer != nil {
		if err := writer.Start(ctx); err != nil {
			log.WithError(err).Warn("store writer failed to start")
		}
	}
	if dispatcher != nil {
		if err := dispatcher.Start(ctx); err != nil {
			log.WithError(err).Warn("decision dispatcher failed to start")
		}
	}

	var apiServer *api.Server
	if orderStore != nil {
		apiServer = api.NewServer(cfg.API, orderStore, engine)
	} else if cfg.API.Enabled {
		log.WithComponent("main").Warn("api server requires the order store; not starting")
	}
	if apiServer != nil {
		go func() {
			if err := apiServer.Run(ctx); err != nil {
				log.WithError(err).Error("api server failed")
			}
		}()
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)

		log.Info("stopping pollers")
		for _, p := range pollers {
			p.Stop()
		}

		if writer != nil {
			log.Info("stopping store writer")
			writer.Stop()
		}
		if dispatcher != nil {
			log.Info("stopping decision dispatcher")
			dispatcher.Stop()
		}
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timed out")
	}
}
