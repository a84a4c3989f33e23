package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/adapters/rest"
	"github.com/ewilliams-labs/cadence/internal/adapters/sensor"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	backendWait     = 5 * time.Second
	backendPoll     = 500 * time.Millisecond
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		samplesFile string
		sensorBPM   float64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local web API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			pool := worker.NewPool(a.log, a.cfg.QueueSize)
			pool.Start(a.cfg.WorkerCount)

			if err := waitForBackend(cmd.Context(), a.backend.Ping, backendWait); err != nil {
				a.log.Warn("backend not reachable, continuing anyway", zap.Error(err))
			}

			svc := rest.Services{
				Auth:      a.auth,
				Orch:      a.orch,
				Publisher: a.publisher,
				Ready:     a.backend.Ping,
			}
			if s := pickSensor(samplesFile, sensorBPM); s != nil {
				svc.Monitor = services.NewHeartRateMonitor(s, a.orch, a.log)
			}

			srv := &http.Server{
				Addr:              a.cfg.ListenAddr,
				Handler:           rest.NewHandler(svc, pool, a.log),
				ReadHeaderTimeout: 15 * time.Second,
			}
			return serve(cmd.Context(), a.log, srv, pool)
		},
	}

	cmd.Flags().String("listen", "", "address to listen on (default :8080)")
	cmd.Flags().StringVar(&samplesFile, "samples", "", "JSON file of recorded heart-rate samples for POST /heart-rate")
	cmd.Flags().Float64Var(&sensorBPM, "bpm", 0, "fixed heart rate for POST /heart-rate")
	cmd.MarkFlagsMutuallyExclusive("samples", "bpm")
	return cmd
}

// pickSensor returns nil when neither source is set.
func pickSensor(samplesFile string, bpm float64) ports.HeartRateSensor {
	switch {
	case samplesFile != "":
		return sensor.NewReplay(samplesFile)
	case bpm > 0:
		return sensor.NewStatic(bpm)
	default:
		return nil
	}
}

// waitForBackend polls ping until it succeeds or timeout passes.
func waitForBackend(ctx context.Context, ping func(context.Context) error, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(backendPoll)
	defer ticker.Stop()
	for {
		err := ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("backend not available after %v: %w", timeout, err)
		case <-ticker.C:
		}
	}
}

// serve runs srv until ctx ends, then drains HTTP and the worker pool.
func serve(ctx context.Context, log *zap.Logger, srv *http.Server, pool *worker.Pool) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Info("cadence API listening", zap.String("addr", srv.Addr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Warn("worker pool did not drain", zap.Error(err))
	}
	return runErr
}
