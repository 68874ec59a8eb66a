package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"echallan-service/internal/config"
	"echallan-service/internal/db"
	"echallan-service/internal/detector"
	"echallan-service/internal/evidence"
	"echallan-service/internal/notify"
	"echallan-service/internal/reference"
	"echallan-service/internal/repository"
	"echallan-service/internal/service"
)

// app holds the components shared by every command.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	vehicles   *reference.Store
	detector   *detector.Adapter
	lifecycle  *evidence.Lifecycle
	dispatcher *notify.Dispatcher
	inspector  *service.Inspector
	issuer     *service.Issuer
	captures   *service.Captures
	scanner    *service.Scanner

	closers []func() error
}

type appOptions struct {
	// memory keeps challans in process even when a DSN is configured.
	memory bool
	// notify wires the mail dispatcher into the issuer. Its worker must be
	// started by the caller.
	notify bool
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.vehicles, err = reference.Load(cfg.Reference.Path, cfg.Reference.Sheet)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	log.Info().Str("path", cfg.Reference.Path).Int("vehicles", a.vehicles.Len()).Msg("reference data loaded")

	a.detector = detector.NewAdapter(detector.NewHTTPBackend(cfg.Detector.URL, cfg.Detector.Timeout), log)

	store, err := a.evidenceStore(ctx)
	if err != nil {
		return nil, err
	}
	a.lifecycle = evidence.NewLifecycle(store)

	challans, captures, err := a.stores(ctx, opts.memory)
	if err != nil {
		return nil, err
	}

	a.inspector = service.NewInspector(a.vehicles, nil)
	renderer := notify.NewPDFRenderer(store, cfg.Camera.Location)
	issuerOpts := []service.IssuerOption{service.WithRenderer(renderer)}
	if opts.notify {
		a.dispatcher = notify.NewDispatcher(
			renderer,
			notify.NewSender(notify.SMTPConfig{
				Host:     cfg.Mail.Host,
				Port:     cfg.Mail.Port,
				Username: cfg.Mail.Username,
				Password: cfg.Mail.Password,
				From:     cfg.Mail.From,
				SSL:      cfg.Mail.SSL,
			}),
			cfg.Mail.PaymentURL,
			cfg.Notify.QueueSize,
			log,
		)
		issuerOpts = append(issuerOpts, service.WithNotifier(a.dispatcher))
		if cfg.Mail.Host == "" {
			log.Warn().Msg("mail host not configured; challan notices will not be sent")
		}
	}
	a.issuer = service.NewIssuer(challans, a.inspector, a.lifecycle, log, issuerOpts...)
	a.captures = service.NewCaptures(captures)
	a.scanner = service.NewScanner(a.detector, a.inspector, a.issuer, a.lifecycle, service.ScanConfig{
		MaxFrames:     cfg.Scan.MaxFrames,
		SampleEvery:   cfg.Scan.SampleEvery,
		MinConfidence: cfg.Scan.MinConfidence,
	}, log)
	return a, nil
}

func (a *app) evidenceStore(ctx context.Context) (evidence.Store, error) {
	switch a.cfg.Evidence.Backend {
	case "gcs":
		client, err := evidence.NewGCSClient(ctx, a.cfg.Evidence.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := evidence.NewGCSStore(client, a.cfg.Evidence.Bucket, a.cfg.Evidence.Prefix)
		if err != nil {
			return nil, err
		}
		a.log.Info().Str("bucket", a.cfg.Evidence.Bucket).Msg("evidence stored in gcs")
		return store, nil
	default:
		store, err := evidence.NewLocalStore(a.cfg.Evidence.Dir, a.cfg.Evidence.URLPrefix)
		if err != nil {
			return nil, err
		}
		a.log.Info().Str("dir", store.Dir()).Msg("evidence stored locally")
		return store, nil
	}
}

func (a *app) stores(ctx context.Context, memory bool) (service.ChallanStore, service.CaptureStore, error) {
	if memory || a.cfg.Database.DSN == "" {
		a.log.Warn().Msg("no database configured; challans are kept in memory only")
		return repository.NewMemoryChallans(), repository.NewMemoryCaptures(), nil
	}
	gdb, err := db.Open(ctx, a.cfg.Database.DSN, a.log)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, sqlDB.Close)
	return repository.NewChallanRepository(gdb), repository.NewCaptureRepository(gdb), nil
}

// Close releases clients in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
