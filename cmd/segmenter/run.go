package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hls-segmenter/internal/pipeline"
	"hls-segmenter/internal/platform/config"
	"hls-segmenter/internal/platform/lock"
	"hls-segmenter/internal/platform/logger"
	"hls-segmenter/internal/platform/metrics"
	"hls-segmenter/internal/segmenter"
)

const shutdownTimeout = 10 * time.Second

func newRunCommand(configFlag *string) *cobra.Command {
	var (
		input     string
		overrides config.Config
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Segment the input stream until it ends or the process is interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, overrides)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			in := cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSegmenter(ctx, cfg, in, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&input, "input", "i", "-", "Input stream path, - for stdin")
	flags.StringVar(&overrides.Location, "location", "", "Segment path template (%05d is the sequence number)")
	flags.StringVar(&overrides.PlaylistLocation, "playlist-location", "", "Playlist path")
	flags.StringVar(&overrides.PlaylistRoot, "playlist-root", "", "URI prefix for segments in the playlist")
	flags.IntVar(&overrides.PlaylistLength, "playlist-length", 0, "Segments advertised in the playlist (0 = all)")
	flags.IntVar(&overrides.MaxFiles, "max-files", 0, "Segment files kept on disk (0 = never delete)")
	flags.Float64Var(&overrides.TargetDuration, "target-duration", 0, "Segment duration in seconds")
	flags.StringVar(&overrides.PlaylistType, "playlist-type", "", "Playlist type: EVENT or VOD")
	flags.StringVar(&overrides.MetricsAddr, "metrics-addr", "", "Ops listener address serving /metrics and /status")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "Log format: json or text")

	return cmd
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, o config.Config) {
	set := cmd.Flags().Changed
	if set("location") {
		cfg.Location = o.Location
	}
	if set("playlist-location") {
		cfg.PlaylistLocation = o.PlaylistLocation
	}
	if set("playlist-root") {
		cfg.PlaylistRoot = o.PlaylistRoot
	}
	if set("playlist-length") {
		cfg.PlaylistLength = o.PlaylistLength
	}
	if set("max-files") {
		cfg.MaxFiles = o.MaxFiles
	}
	if set("target-duration") {
		cfg.TargetDuration = o.TargetDuration
	}
	if set("playlist-type") {
		cfg.PlaylistType = o.PlaylistType
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = o.MetricsAddr
	}
	if set("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if set("log-format") {
		cfg.LogFormat = o.LogFormat
	}
}

func settingsFrom(cfg config.Config) segmenter.Settings {
	return segmenter.Settings{
		Location:         cfg.Location,
		PlaylistLocation: cfg.PlaylistLocation,
		PlaylistRoot:     cfg.PlaylistRoot,
		PlaylistLength:   cfg.PlaylistLength,
		MaxFiles:         cfg.MaxFiles,
		TargetDuration:   cfg.TargetDuration,
		PlaylistType:     cfg.PlaylistType,
	}
}

// runSegmenter holds the output lock, feeds in through a Splitter into a
// started Controller and serves the ops listener when configured. It
// returns once the input ends or ctx is cancelled and the playlist is final.
func runSegmenter(ctx context.Context, cfg config.Config, in io.Reader, logOut io.Writer) error {
	log, _ := logger.WithRunID(logger.New(logOut, cfg.LogLevel, cfg.LogFormat))

	met := metrics.New()
	ctrl, err := segmenter.NewController(settingsFrom(cfg), segmenter.NewFileStore(), log, met)
	if err != nil {
		return err
	}

	held, err := lock.Acquire(cfg.PlaylistLocation)
	if err != nil {
		return err
	}
	defer func() {
		if err := held.Release(); err != nil {
			log.Warn("failed to release output lock", slog.String("error", err.Error()))
		}
	}()

	var ln net.Listener
	if cfg.MetricsAddr != "" {
		ln, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("ops listener: %w", err)
		}
	}

	log.Info("run starting",
		slog.String("lock", held.Path()),
		slog.String("metrics_addr", cfg.MetricsAddr))

	ctrl.Start()
	duration := time.Duration(cfg.TargetDuration * float64(time.Second))
	splitter := pipeline.NewSplitter(ctrl, duration, log)

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		return splitter.Run(gctx, in)
	})

	if ln != nil {
		srv := &http.Server{Handler: opsRouter(ctrl, met, log)}
		g.Go(func() error {
			log.Info("ops listener serving", slog.String("addr", ln.Addr().String()))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-done:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("run failed", slog.String("error", err.Error()))
		return err
	}
	log.Info("run finished", slog.String("playlist", cfg.PlaylistLocation))
	return nil
}

func opsRouter(ctrl *segmenter.Controller, met *metrics.Metrics, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Method(http.MethodGet, "/metrics", met.Handler(func() {
		st := ctrl.Status()
		met.SetRetained(len(st.Entries), st.FilesOnDisk)
	}))
	segmenter.NewHandler(ctrl, log).Routes(r)
	return r
}
