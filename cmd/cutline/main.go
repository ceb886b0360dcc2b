package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mantonx/cutline/internal/assets"
	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/config"
	"github.com/mantonx/cutline/internal/database"
	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/logger"
	"github.com/mantonx/cutline/internal/pipeline"
	"github.com/mantonx/cutline/internal/playback"
	"github.com/mantonx/cutline/internal/renderqueue"
	"github.com/mantonx/cutline/internal/server"
	"github.com/mantonx/cutline/internal/server/handlers"
)

func main() {
	configPath := flag.String("config", "cutline.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cutline: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.Load(configPath); err != nil {
		return err
	}
	cfg := config.Get()

	log := logger.New(logger.Options{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableColors: cfg.Logging.EnableColors,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database.Connection(), log)
	if err != nil {
		return err
	}

	bus := events.NewBus(cfg.Events.Bus(), log)
	if err := bus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bus.Stop(shutdownCtx); err != nil {
			log.Warn("event bus did not drain", "error", err)
		}
	}()

	library := assets.NewLibrary(bus, log)
	library.SetProber(assets.NewFFprobe(cfg.Render.FFprobePath, log))
	watcher, err := assets.NewWatcher(library)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			log.Warn("asset watcher stop failed", "error", err)
		}
	}()

	assetStore := database.NewAssetStore(db)
	stored, err := assetStore.All()
	if err != nil {
		return err
	}
	for _, a := range stored {
		restored := library.Restore(a)
		if err := watcher.Watch(restored); err != nil {
			log.Warn("failed to watch restored asset", "path", restored.Path, "error", err)
		}
	}
	if len(stored) > 0 {
		log.Info("asset registry restored", "count", len(stored))
	}

	compiler := pipeline.NewCompiler(library, log)
	engine := renderqueue.NewFFmpegEngine(cfg.Render.Encoding(), log)
	queue := renderqueue.NewQueue(cfg.Render.Queue(), compiler, engine, bus, log)
	if err := queue.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := queue.Stop(shutdownCtx); err != nil {
			log.Warn("render queue stop failed", "error", err)
		}
	}()

	jobStore := database.NewRenderJobStore(db, log)
	if _, err := jobStore.PruneStale(); err != nil {
		return err
	}
	database.AttachRenderRecorder(bus, queue, jobStore, log)

	session := handlers.NewSession(func(p *composition.Project) *playback.Synchronizer {
		return playback.NewSynchronizer(cfg.Playback.Sync(), p, playback.NewClockPlayer(), library, bus, log)
	})

	srv := server.New(cfg.Server, server.Deps{
		Bus:      bus,
		Library:  library,
		Watcher:  watcher,
		Queue:    queue,
		Projects: database.NewProjectStore(db, log),
		Jobs:     jobStore,
		Assets:   assetStore,
		Session:  session,
	}, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	bus.Publish(events.Event{Type: events.EventSystemStarted, Source: "main"})
	log.Info("cutline started", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	bus.Publish(events.Event{Type: events.EventSystemStopped, Source: "main"})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
