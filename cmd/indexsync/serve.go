package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinia/indexsync/internal/admin"
	"github.com/clinia/indexsync/tracex"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a migration on startup and serve the admin API",
		Long: `Run a migration on startup, unless migration.run_on_startup is false, and serve:

  POST /migrations  run a migration, 409 while one is in flight
  GET  /status      report every index family
  GET  /metrics     prometheus measurements`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), c, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.shutdown(context.WithoutCancel(cmd.Context()))

			lis, err := net.Listen("tcp", c.Serve.Address)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), lis)
		},
	}
}

// serve runs the startup migration and the admin API until ctx is done.
func (a *app) serve(ctx context.Context, lis net.Listener) error {
	h, err := admin.NewHandler(admin.NewHandlerOptions{
		Runner:  a.migrator,
		Metrics: a.meter.Handler(),
		Logger:  a.l,
		Tracer:  a.tracer,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if a.cfg.Migration.RunOnStartup {
			a.startupMigration(ctx)
		}
	}()

	errc := make(chan error, 1)
	go func() {
		a.l.Info(ctx, "admin api listening", attribute.String("server.address", lis.Addr().String()))
		errc <- srv.Serve(lis)
	}()

	select {
	case err := <-errc:
		cancel()
		<-done
		return err
	case <-ctx.Done():
	}

	sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer scancel()
	shutdownErr := srv.Shutdown(sctx)
	<-done

	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return shutdownErr
}

func (a *app) startupMigration(ctx context.Context) {
	defer tracex.RecoverWithStackTrace(ctx, a.l, "panic during startup migration")

	res, err := a.migrator.Migrate(ctx)
	if err != nil {
		// The admin API stays up so the migration can be retried.
		a.l.WithError(err).Error(ctx, "startup migration failed")
		return
	}
	a.l.Info(ctx, "startup migration done", attribute.String("migration.outcome", string(res.Outcome)))
}
