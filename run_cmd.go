package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/readaloud/internal/inbox"
	"github.com/dgnsrekt/readaloud/internal/metrics"
	"github.com/dgnsrekt/readaloud/utils"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the player in the foreground",
	Long: paragraph(
		fmt.Sprintf("\n%s the player: the saved queue picks up where it left off, files dropped into the watch directory are queued, and metrics are served if configured.\n\n"+
			"Send SIGUSR1 to pause or resume, SIGHUP after the audio device changes.", keyword("Start")),
	),
	Example: paragraph("readaloud run\nreadaloud run --watch ~/Inbox --metrics :9090"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, appOptions{speak: true})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if err := a.restore(ctx); err != nil {
			return err
		}
		a.queue.Resume()
		log.Info("player started", "queued", a.queue.Len(), "engine", a.engine.Name())

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			handleSignals(ctx, a)
			return nil
		})

		if dir := utils.ExpandPath(viper.GetString("watch.dir")); dir != "" {
			w := inbox.New(dir, a.queue, inbox.WithLogger(a.logger))
			g.Go(func() error {
				return w.Run(ctx)
			})
		}

		if addr := viper.GetString("metrics.addr"); addr != "" {
			g.Go(func() error {
				return serveMetrics(ctx, addr)
			})
		}

		err = g.Wait()
		stats := a.queue.Stats()
		log.Info("player stopped",
			"finished", stats.TotalFinished,
			"failed", stats.TotalFailed,
			"queued", a.queue.Len(),
		)
		return err
	},
}

// serveMetrics serves /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string) error {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func init() {
	runCmd.Flags().String("watch", "", "directory to import dropped files from")
	runCmd.Flags().String("metrics", "", "listen address for /metrics")
	_ = viper.BindPFlag("watch.dir", runCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics"))
}
