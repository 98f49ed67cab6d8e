package pipeline

import (
	"sync"
	"time"
)

// Timing is the per-stage cost of one frame.
type Timing struct {
	Preprocess  time.Duration `json:"preprocess"`
	Inference   time.Duration `json:"inference"`
	PostProcess time.Duration `json:"post_process"`
}

// Metrics summarizes a run.
type Metrics struct {
	Frames              int           `json:"frames"`
	Detections          int           `json:"detections"`
	Errors              int           `json:"errors"`
	Elapsed             time.Duration `json:"elapsed"`
	PreprocessDuration  time.Duration `json:"preprocess_duration"`
	InferenceDuration   time.Duration `json:"inference_duration"`
	PostProcessDuration time.Duration `json:"post_process_duration"`
	FramesPerSecond     float64       `json:"frames_per_second"`
}

type recorder struct {
	mu      sync.Mutex
	started time.Time
	m       Metrics
}

func (r *recorder) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.IsZero() {
		r.started = time.Now()
	}
}

func (r *recorder) add(t Timing, detections int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m.Frames++
	r.m.Detections += detections
	r.m.PreprocessDuration += t.Preprocess
	r.m.InferenceDuration += t.Inference
	r.m.PostProcessDuration += t.PostProcess
}

func (r *recorder) fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m.Errors++
}

func (r *recorder) snapshot() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.m
	if !r.started.IsZero() {
		m.Elapsed = time.Since(r.started)
	}
	if m.Elapsed > 0 {
		m.FramesPerSecond = float64(m.Frames) / m.Elapsed.Seconds()
	}
	return m
}
