package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortuna/almanac/internal/api/rest"
	"github.com/fortuna/almanac/internal/api/websocket"
	"github.com/fortuna/almanac/internal/harvest"
	"github.com/fortuna/almanac/internal/publisher"
	"github.com/fortuna/almanac/internal/scheduler"
)

var runOnStart bool

func init() {
	serveCmd.Flags().BoolVar(&runOnStart, "run-now", false, "Trigger a harvest as soon as the service starts.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled harvests behind the REST and WebSocket APIs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a := newApp(cfg)
		defer a.close()
		ctx := cmd.Context()

		a.logger.Printf("Starting %s v%s", appName, appVersion)

		runner, err := a.runner(ctx)
		if err != nil {
			return err
		}

		var runs harvest.RunStore
		if db, err := a.database(ctx); err != nil {
			return err
		} else if db != nil {
			runs = harvest.NewRepository(db)
		}

		svc := harvest.NewService(runner, runs, a.notifier(), nil)

		wsServer := websocket.NewServer(nil)
		svc.Subscribe(wsServer.Publish)

		if cfg.Redis.Events {
			rc, err := a.redis()
			if err != nil {
				return err
			}
			pub := publisher.NewRedisPublisherFromClient(rc.Client(), nil)
			svc.Subscribe(pub.Handler())
			a.logger.Printf("✓ Publishing harvest events to %s", pub.Stream())
		}

		svc.Start()
		a.logger.Println("✓ Harvest service started")

		sched, err := scheduler.NewOrchestrator(svc, scheduler.Config{
			Spec:       cfg.Server.Schedule,
			RunOnStart: cfg.Server.RunOnStart || runOnStart,
		}, nil)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}

		final, err := a.finalStore(ctx)
		if err != nil {
			return err
		}
		restServer := rest.NewServer(cfg.Server.RESTPort, final, svc, sched, nil)
		if a.db != nil {
			restServer.AddHealthCheck("postgres", a.db)
		}
		if a.cache != nil {
			restServer.AddHealthCheck("redis", a.cache)
		}

		errs := make(chan error, 2)
		go func() {
			a.logger.Printf("REST API listening on :%s", cfg.Server.RESTPort)
			errs <- fmt.Errorf("rest server: %w", restServer.Start())
		}()
		go func() {
			errs <- fmt.Errorf("websocket server: %w", wsServer.Start(cfg.Server.WSPort))
		}()

		a.logger.Printf("✓ %s v%s started", appName, appVersion)
		a.logger.Printf("  REST API: http://0.0.0.0:%s", cfg.Server.RESTPort)
		a.logger.Printf("  WebSocket: ws://0.0.0.0:%s/ws/harvest", cfg.Server.WSPort)

		var serveErr error
		select {
		case <-ctx.Done():
		case serveErr = <-errs:
		}

		a.logger.Println("Shutting down gracefully...")
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := svc.Shutdown(shutdownCtx); err != nil {
			a.logger.Printf("Harvest service shutdown error: %v", err)
		}
		if err := restServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Printf("REST API server shutdown error: %v", err)
		}
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Printf("WebSocket server shutdown error: %v", err)
		}

		a.logger.Printf("%s stopped", appName)
		return serveErr
	},
}
