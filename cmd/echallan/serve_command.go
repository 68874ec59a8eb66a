package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"echallan-service/internal/config"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/events"
	apihttp "echallan-service/internal/http"
	"echallan-service/internal/lease"
	"echallan-service/internal/media"
	"echallan-service/internal/service"
)

const (
	shutdownTimeout = 15 * time.Second
	reconnectDelay  = 5 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the live camera loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(sigCtx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	a, err := newApp(ctx, cfg, log, appOptions{notify: true})
	if err != nil {
		return err
	}
	defer a.Close()

	notifyDone := make(chan struct{})
	go func() {
		defer close(notifyDone)
		a.dispatcher.Run(ctx)
	}()

	hub := events.NewHub()
	frames := events.NewFrameBuffer()
	publishers := events.Fanout{hub}
	var cameraLease lease.Lease = lease.Local{}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		publishers = append(publishers, events.NewRedisPublisher(rdb, cfg.Redis.Channel))
		leaseKey := cfg.Camera.LeaseKey
		if leaseKey == "" {
			leaseKey = "echallan:camera:" + cfg.Camera.ID
		}
		cameraLease = lease.NewRedisLease(rdb, leaseKey, cfg.Camera.LeaseTTL, log)
		log.Info().Str("addr", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).Msg("redis connected")
	}

	if cfg.PubSub.ProjectID != "" {
		client, err := events.NewPubSubClient(ctx, cfg.PubSub.ProjectID, cfg.PubSub.CredentialsJSON)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		defer client.Close()
		ps := events.NewPubSubPublisher(client, cfg.PubSub.Topic, log)
		defer ps.Stop()
		publishers = append(publishers, ps)
	}

	handler := apihttp.NewHandler(apihttp.Deps{
		Issuer:    a.issuer,
		Scanner:   a.scanner,
		Inspector: a.inspector,
		Captures:  a.captures,
		Hub:       hub,
		Frames:    frames,
	}, cfg, log)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           apihttp.NewRouter(handler, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	cameraDone := make(chan struct{})
	if cfg.Camera.Enabled {
		loop := service.NewLiveLoop(service.LiveDeps{
			Detector:  a.detector,
			Inspector: a.inspector,
			Issuer:    a.issuer,
			Evidence:  a.lifecycle,
			Captures:  a.captures,
			Publisher: publishers,
			Display:   frames,
		}, service.LiveConfig{
			CameraID: cfg.Camera.ID,
			Cooldown: cfg.Camera.Cooldown,
			Official: challan.Official{ID: cfg.Camera.OfficialID, Name: cfg.Camera.OfficialName},
			Location: cfg.Camera.Location,
		}, log)
		go func() {
			defer close(cameraDone)
			runCamera(ctx, cfg.Camera, cameraLease, loop, log)
		}()
	} else {
		close(cameraDone)
		log.Info().Msg("live camera disabled")
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	<-cameraDone
	<-notifyDone
	return nil
}

// runCamera keeps the live loop attached to the camera while ctx is alive,
// reopening the source after failures and waiting for the lease when another
// replica holds it.
func runCamera(ctx context.Context, cfg config.CameraConfig, l lease.Lease, loop *service.LiveLoop, log zerolog.Logger) {
	log = log.With().Str("component", "camera").Str("camera_id", cfg.ID).Logger()
	for {
		err := lease.Keep(ctx, l, reconnectDelay, func(ctx context.Context) error {
			src, err := media.Open(ctx, media.Kind(cfg.Kind), cfg.Source,
				media.WithBinary(cfg.FFmpegPath),
				media.WithFPS(cfg.FPS),
			)
			if err != nil {
				return err
			}
			defer src.Close()
			log.Info().Str("source", cfg.Source).Msg("camera opened")
			return loop.Run(ctx, src)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error().Err(err).Dur("retry_in", reconnectDelay).Msg("camera stopped")
		} else {
			log.Warn().Dur("retry_in", reconnectDelay).Msg("camera stream ended")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}
