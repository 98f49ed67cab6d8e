// Package pipeline - Runs frames through an engine and a model's post-processing.
//
// Two stages run concurrently: the first prepares the tensor and runs
// inference, the second decodes and suppresses. While frame t is being
// post-processed, inference for frame t+1 is already in flight, the way the
// compute-stick demos queue the next tensor before reading the previous result.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-ncs/images"
	"github.com/nvr-ai/go-ncs/inference"
	"github.com/nvr-ai/go-ncs/models/model"
	"github.com/nvr-ai/go-ncs/models/postprocess"
)

// Frame is one input image.
type Frame struct {
	ID    int64
	Image image.Image
}

// Result is the outcome for one frame.
type Result struct {
	Frame      Frame
	Detections *postprocess.Detections
	Timing     Timing
}

// Config configures a Runner.
type Config struct {
	// Order is the tensor layout the engine expects.
	Order images.ChannelOrder
	// Depth is the number of inferred frames that may wait for
	// post-processing. Zero means 1.
	Depth int
	// Logger defaults to zap.NewNop.
	Logger *zap.Logger
}

// Runner drives frames through an engine and a model.
type Runner struct {
	engine inference.Engine
	model  model.Model
	config Config
	logger *zap.Logger
	stats  recorder
}

type inferred struct {
	frame  Frame
	output []float32
	timing Timing
}

// NewRunner creates a runner. The engine is not closed by the runner.
func NewRunner(engine inference.Engine, m model.Model, config Config) (*Runner, error) {
	if engine == nil || m == nil {
		return nil, errors.New("pipeline: engine and model are required")
	}
	if m.Options().InputSize <= 0 {
		return nil, errors.Errorf("pipeline: model input size must be positive, got %d", m.Options().InputSize)
	}
	if config.Depth <= 0 {
		config.Depth = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		engine: engine,
		model:  m,
		config: config,
		logger: logger.Named("pipeline").With(zap.String("model", string(m.Options().Name))),
	}, nil
}

// Run processes frames until the channel closes, ctx is cancelled or a stage
// fails. Results are sent to out in frame order. Run does not close out.
func (r *Runner) Run(ctx context.Context, frames <-chan Frame, out chan<- Result) error {
	r.stats.start()
	g, ctx := errgroup.WithContext(ctx)
	pending := make(chan inferred, r.config.Depth)

	g.Go(func() error {
		defer close(pending)
		var buf []float32
		for {
			var frame Frame
			var ok bool
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frame, ok = <-frames:
				if !ok {
					return nil
				}
			}

			item, err := r.infer(ctx, frame, &buf)
			if err != nil {
				r.stats.fail()
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case pending <- item:
			}
		}
	})

	g.Go(func() error {
		for item := range pending {
			result, err := r.postProcess(item)
			if err != nil {
				r.stats.fail()
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- result:
			}
		}
		return nil
	})

	err := g.Wait()
	m := r.stats.snapshot()
	r.logger.Info("run finished",
		zap.Int("frames", m.Frames),
		zap.Int("detections", m.Detections),
		zap.Float64("fps", m.FramesPerSecond),
		zap.Error(err),
	)
	return err
}

func (r *Runner) infer(ctx context.Context, frame Frame, buf *[]float32) (inferred, error) {
	var timing Timing

	start := time.Now()
	opts := r.model.Options()
	input, err := images.ToTensor(frame.Image, opts.InputSize, r.config.Order, opts.Input, *buf)
	if err != nil {
		return inferred{}, errors.Wrapf(err, "frame %d: prepare tensor", frame.ID)
	}
	*buf = input
	timing.Preprocess = time.Since(start)

	start = time.Now()
	output, err := r.engine.Infer(ctx, input)
	if err != nil {
		return inferred{}, errors.Wrapf(err, "frame %d: inference", frame.ID)
	}
	timing.Inference = time.Since(start)

	r.logger.Debug("inferred", zap.Int64("frame", frame.ID), zap.Duration("took", timing.Inference))
	return inferred{frame: frame, output: output, timing: timing}, nil
}

func (r *Runner) postProcess(item inferred) (Result, error) {
	bounds := item.frame.Image.Bounds()

	start := time.Now()
	d, err := r.model.PostProcess(item.output, bounds.Dx(), bounds.Dy())
	if err != nil {
		return Result{}, errors.Wrapf(err, "frame %d: post-process", item.frame.ID)
	}
	item.timing.PostProcess = time.Since(start)

	visible := len(d.Visible())
	r.stats.add(item.timing, visible)
	r.logger.Debug("post-processed",
		zap.Int64("frame", item.frame.ID),
		zap.Int("detections", visible),
		zap.Duration("took", item.timing.PostProcess),
	)

	return Result{Frame: item.frame, Detections: d, Timing: item.timing}, nil
}

// Stats returns the metrics accumulated over all runs.
func (r *Runner) Stats() Metrics {
	return r.stats.snapshot()
}
