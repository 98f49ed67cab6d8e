// Package main runs a detector over image files and writes annotated copies.
package main

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-ncs/config"
	"github.com/nvr-ai/go-ncs/inference"
	"github.com/nvr-ai/go-ncs/models"
	"github.com/nvr-ai/go-ncs/pipeline"
	"github.com/nvr-ai/go-ncs/render"
	"github.com/nvr-ai/go-ncs/util"
)

const (
	flagConfig = "config"
	flagOutput = "output"
	flagDebug  = "debug"
)

func main() {
	app := &cli.App{
		Name:      "detect",
		Usage:     "run a grid or SSD detector over images",
		ArgsUsage: "IMAGE|DIR...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Value:   "out",
				Usage:   "write annotated images to `DIR`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.ShowAppHelp(c)
	}

	cfg := config.DefaultConfig()
	if path := c.String(flagConfig); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if c.Bool(flagDebug) {
		cfg.LogLevel = "debug"
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	m, err := models.NewModel(cfg.Model)
	if err != nil {
		return err
	}
	if cfg.Engine.Type != inference.EngineONNX {
		return errors.Errorf("engine %q cannot be loaded from a file", cfg.Engine.Type)
	}
	engine, err := inference.NewONNXEngine(cfg.ONNX(m))
	if err != nil {
		return err
	}
	defer engine.Close()

	runner, err := pipeline.NewRunner(engine, m, pipeline.Config{
		Order:  cfg.ChannelOrder(),
		Depth:  cfg.Depth,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	outDir := c.String(flagOutput)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	paths, err := util.ExpandPaths(c.Args().Slice())
	if err != nil {
		return err
	}

	return detect(c.Context, runner, paths, outDir, cfg.Labels, logger)
}

// outputPath names the annotated copy of the id-th input. The index prefix
// keeps inputs with the same base name apart.
func outputPath(dir string, id int64, path string) string {
	return filepath.Join(dir, fmt.Sprintf("%04d-%s", id, filepath.Base(path)))
}

// detect streams the files through the runner. Each decoded Mat is kept until
// its result arrives so the boxes are drawn on the original resolution.
func detect(ctx context.Context, runner *pipeline.Runner, paths []string, outDir string, labels []string, logger *zap.Logger) error {
	var mu sync.Mutex
	mats := make(map[int64]gocv.Mat)
	defer func() {
		for _, mat := range mats {
			mat.Close()
		}
	}()

	frames := make(chan pipeline.Frame)
	results := make(chan pipeline.Result)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		for i, path := range paths {
			mat := gocv.IMRead(path, gocv.IMReadColor)
			if mat.Empty() {
				mat.Close()
				logger.Warn("skipping unreadable image", zap.String("path", path))
				continue
			}
			img, err := mat.ToImage()
			if err != nil {
				mat.Close()
				return errors.Wrapf(err, "convert %s", path)
			}

			mu.Lock()
			mats[int64(i)] = mat
			mu.Unlock()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case frames <- pipeline.Frame{ID: int64(i), Image: img}:
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(results)
		return runner.Run(ctx, frames, results)
	})

	g.Go(func() error {
		for res := range results {
			mu.Lock()
			mat := mats[res.Frame.ID]
			delete(mats, res.Frame.ID)
			mu.Unlock()

			n := render.Draw(&mat, res.Detections, labels, color.RGBA{0, 255, 0, 0}, 2)
			path := paths[res.Frame.ID]
			dst := outputPath(outDir, res.Frame.ID, path)
			ok := gocv.IMWrite(dst, mat)
			mat.Close()
			if !ok {
				return errors.Errorf("write %s", dst)
			}

			logger.Info("detected",
				zap.String("path", path),
				zap.Int("boxes", n),
				zap.Duration("inference", res.Timing.Inference),
				zap.Duration("post_process", res.Timing.PostProcess),
			)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	stats := runner.Stats()
	logger.Info("done",
		zap.Int("frames", stats.Frames),
		zap.Int("detections", stats.Detections),
		zap.Float64("fps", stats.FramesPerSecond),
	)
	return nil
}
