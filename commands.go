package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaos-io/removebg/composite"
	"github.com/chaos-io/removebg/pipeline"
	"github.com/chaos-io/removebg/raster"
	"github.com/chaos-io/removebg/server"
	"github.com/chaos-io/removebg/sink"
	"github.com/chaos-io/removebg/util"
	"github.com/spf13/cobra"
)

type backgroundFlags struct {
	kind  string
	color string
	image string
	blur  int
}

func (f *backgroundFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "bg", "transparent", "Background: transparent | color | image")
	cmd.Flags().StringVar(&f.color, "color", composite.DefaultColor, "Background color (#rrggbb) for --bg color")
	cmd.Flags().StringVar(&f.image, "background", "", "Background photo (path or URL) for --bg image")
	cmd.Flags().IntVar(&f.blur, "blur", 0, fmt.Sprintf("Background blur radius 0..%d", composite.MaxBlurRadius))
}

func (f *backgroundFlags) build(ctx context.Context) (composite.Background, error) {
	switch f.kind {
	case "", "transparent":
		return composite.Transparent{}, nil
	case "color":
		return composite.SolidHex(f.color)
	case "image":
		if f.image == "" {
			return nil, errors.New("--background is required for --bg image")
		}
		img, err := util.LoadImage(ctx, f.image)
		if err != nil {
			return nil, fmt.Errorf("load background: %w", err)
		}
		return composite.Photo{Source: raster.FromImage(img), BlurRadius: f.blur}, nil
	default:
		return nil, fmt.Errorf("unknown background type %q", f.kind)
	}
}

type outputFlags struct {
	output string
	mirror bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output PNG path (default: configured export sink)")
	cmd.Flags().BoolVar(&f.mirror, "mirror", false, "Mirror the input horizontally")
}

func (a *app) loadInput(ctx context.Context, src string, mirror bool) (raster.Image, error) {
	img, err := util.LoadImage(ctx, src)
	if err != nil {
		return raster.Image{}, fmt.Errorf("load input: %w", err)
	}
	r := raster.FromImage(img)
	if mirror {
		r = raster.MirrorHorizontal(r)
	}
	return r, nil
}

// save 指定 -o 时写本地文件，否则交给配置的 sink
func (a *app) save(ctx context.Context, cmd *cobra.Command, output string, img raster.Image) error {
	if output != "" {
		if err := util.SavePNG(output, img.NRGBA()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	}

	s, err := newSink(a.cfg)
	if err != nil {
		return err
	}
	res, err := s.Save(ctx, img)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Location)
	return nil
}

func newKeyCommand(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "key <image>",
		Short: "Key a magenta-background image into a transparent cutout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := a.loadInput(ctx, args[0], out.mirror)
			if err != nil {
				return err
			}
			return a.save(ctx, cmd, out.output, newKeyer(a.cfg).Key(src))
		},
	}
	out.register(cmd)
	return cmd
}

func newCompositeCommand(a *app) *cobra.Command {
	var (
		out outputFlags
		bg  backgroundFlags
	)
	cmd := &cobra.Command{
		Use:   "composite <cutout>",
		Short: "Render a cutout onto a background with a drop shadow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			subject, err := a.loadInput(ctx, args[0], out.mirror)
			if err != nil {
				return err
			}
			background, err := bg.build(ctx)
			if err != nil {
				return err
			}
			return a.save(ctx, cmd, out.output, newPipeline(a.cfg).Export(subject, background))
		},
	}
	out.register(cmd)
	bg.register(cmd)
	return cmd
}

func newRemoveCommand(a *app) *cobra.Command {
	var (
		out outputFlags
		bg  backgroundFlags
	)
	cmd := &cobra.Command{
		Use:   "remove <image|url>",
		Short: "Isolate the subject, key it and composite it onto a background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := a.loadInput(ctx, args[0], out.mirror)
			if err != nil {
				return err
			}
			background, err := bg.build(ctx)
			if err != nil {
				return err
			}

			result, err := newPipeline(a.cfg).Run(ctx, src.NRGBA(), background)
			if err != nil {
				slog.Error("remove background failed", "error", err)
				return errors.New(pipeline.UserMessage(err))
			}
			return a.save(ctx, cmd, out.output, result)
		},
	}
	out.register(cmd)
	bg.register(cmd)
	return cmd
}

func newServeCommand(a *app) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if bind != "" {
				cfg.Server.Bind = bind
			}

			s, err := newSink(cfg)
			if err != nil {
				return err
			}
			if cfg.Export.Sink == "file" {
				sweeper := sink.NewSweeper(cfg.Export.Dir, cfg.Retention())
				if err := sweeper.Start(cfg.Export.SweepSchedule); err != nil {
					return err
				}
				defer sweeper.Stop()
			}

			handler := server.NewHandler(newPipeline(cfg), s, server.Options{
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				RequestTimeout: cfg.RequestTimeout(),
			})
			srv := &http.Server{
				Addr:        cfg.Server.Bind,
				Handler:     handler,
				ReadTimeout: cfg.RequestTimeout(),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("starting HTTP server", "address", cfg.Server.Bind, "timeout", cfg.RequestTimeout())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			slog.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address, overrides server.bind")
	return cmd
}
