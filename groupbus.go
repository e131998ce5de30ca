package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxpert/groupbus/admin"
	"github.com/maxpert/groupbus/cfg"
	"github.com/maxpert/groupbus/db"
	"github.com/maxpert/groupbus/group"
	"github.com/maxpert/groupbus/notify"
	"github.com/maxpert/groupbus/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// statsInterval is how often log gauges are refreshed
const statsInterval = 15 * time.Second

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Str("group_id", cfg.Config.GroupID).Msg("groupbus - shared message bus")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	log.Info().Str("path", cfg.Config.StoragePath()).Msg("Opening message store")
	store, err := db.OpenMessageStore(cfg.Config.StoragePath(), db.StoreOptions{
		BusyTimeout: time.Duration(cfg.Config.Storage.BusyTimeoutMS) * time.Millisecond,
		Synchronous: cfg.Config.Storage.Synchronous,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open message store")
		return
	}
	defer store.Close()

	log.Info().Str("transport", cfg.Config.Notify.Transport).Msg("Connecting notify bus")
	bus, err := notify.NewBus(cfg.Config.Notify)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notify bus")
		return
	}
	defer bus.Close()

	g, err := group.New(group.Options{
		GroupID:       cfg.Config.GroupID,
		Store:         store,
		Bus:           bus,
		Settings:      store.Settings(),
		AllowedTopics: cfg.Config.Bus.AllowedTopics,
		PollBatchSize: cfg.Config.Bus.PollBatchSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create group")
		return
	}
	defer g.Close()

	watchTopics(g, cfg.Config.Bus.WatchTopics)

	collector := telemetry.NewMetricsCollector(store, statsInterval)
	collector.Start()
	defer collector.Stop()

	var server *http.Server
	if cfg.Config.HTTPEnabled() {
		server = startHTTPServer(g, store)
	}

	log.Info().
		Str("group_id", cfg.Config.GroupID).
		Str("data_dir", cfg.Config.DataDir).
		Strs("watch_topics", cfg.Config.Bus.WatchTopics).
		Msg("groupbus is operational")

	// Wait for shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown failed")
		}
		cancel()
	}
}

// watchTopics logs every message delivered on topics
func watchTopics(g *group.Group, topics []string) {
	for _, topic := range topics {
		_, err := g.Subscribe(topic, func(topic, payload string) {
			log.Info().Str("topic", topic).Str("payload", payload).Msg("Message received")
		})
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Failed to watch topic")
			continue
		}
		log.Info().Str("topic", topic).Msg("Watching topic")
	}
}

func startHTTPServer(g *group.Group, store *db.MessageStore) *http.Server {
	var metrics http.Handler
	if cfg.Config.Prometheus.Enabled {
		metrics = telemetry.GetMetricsHandler()
	}

	var handlers *admin.AdminHandlers
	if cfg.Config.Admin.Enabled {
		handlers = admin.NewAdminHandlers(g, store)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Config.Prometheus.Address, cfg.Config.Prometheus.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           admin.NewRouter(metrics, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return server
}
