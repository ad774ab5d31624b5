package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/spectrum-hq/spectrum/internal/config"
	"github.com/spectrum-hq/spectrum/internal/coordinator"
	"github.com/spectrum-hq/spectrum/internal/daemon"
	"github.com/spectrum-hq/spectrum/internal/event"
	"github.com/spectrum-hq/spectrum/internal/notify"
	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticketstore"
	"github.com/spectrum-hq/spectrum/pkg/panicerr"
)

const shutdownTimeout = 10 * time.Second

// serve runs the daemon: the JSON API, the event bus, the chat notifier,
// the tracker mirror, and the out-of-band edit watcher, all under one pool
// that tears everything down when any member fails or the context ends.
func serve(ctx context.Context, env *config.Env, logger *slog.Logger) error {
	store, err := newStore(ctx, env)
	if err != nil {
		return err
	}

	bus, err := event.NewBus()
	if err != nil {
		return err
	}

	if env.BridgeURL != "" {
		dispatcher := notify.NewDispatcher(notify.NewClient(env.BridgeURL, env.BridgeChannel), logger)
		dispatcher.Register(bus)
		defer dispatcher.Wait()
	}

	var mirror *ticketstore.Mirror
	if env.TrackerURL != "" {
		mirror = ticketstore.NewMirror(
			ticketstore.NewHTTPClient(env.TrackerURL, env.TrackerToken),
			store, logger)
		mirror.Register(bus)
	}

	coord := coordinator.New(store, bus, logger)
	server := daemon.NewServer(env, coord, logger)

	var watcher *registry.Watcher
	if env.RegistryEnv.Type == "local" {
		watcher = registry.NewWatcher(env.BaseDir, func() {
			scanForCycles(context.Background(), coord, logger)
		})
		store.OnCommit(watcher.MarkClean)
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		if err := bus.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}))

	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe(ctx)
		}()
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	}))

	if mirror != nil {
		interval := time.Duration(env.TrackerSyncInterval) * time.Second
		p.Go(panicerr.SafeContext(func(ctx context.Context) error {
			if err := mirror.Run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}))
	}

	if watcher != nil {
		p.Go(panicerr.SafeContext(func(ctx context.Context) error {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}))
	}

	err = p.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// scanForCycles runs the diagnostic scan after an out-of-band edit. The
// add-edge guard keeps commits acyclic, so a hit here always means someone
// edited the registry file directly.
func scanForCycles(ctx context.Context, coord *coordinator.Coordinator, logger *slog.Logger) {
	edges, err := coord.Cycles(ctx)
	if err != nil {
		logger.WarnContext(ctx, "cycle scan failed", slog.String("error", err.Error()))
		return
	}
	for _, e := range edges {
		logger.WarnContext(ctx, "cycle detected after external edit",
			slog.String("dependent", e.Dependent),
			slog.String("prerequisite", e.Prerequisite))
	}
}
