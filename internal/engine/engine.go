// Package engine wraps the local image-generation subprocess behind a
// narrow interface: initialize, status probe, and generate with progress.
package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt       = errors.New("prompt cannot be empty")
	ErrInvalidDimensions = errors.New("invalid dimensions for model")
	ErrInvalidSteps      = errors.New("step count out of range for model")
	ErrUnknownModel      = errors.New("unknown model")
	ErrEngineNotReady    = errors.New("engine is not ready")
	ErrGenerationFailed  = errors.New("image generation failed")
)

// Options parameterizes one generation request.
type Options struct {
	Prompt        string
	Width         int
	Height        int
	Steps         int
	GuidanceScale float64
	Seed          *int64
}

// Result carries the generated image and the settings that produced it.
type Result struct {
	ImageBase64   string
	Width         int
	Height        int
	Steps         int
	GuidanceScale float64
	Seed          *int64
	Model         string
	LatencyMS     int64
}

// Dependency is one external requirement reported by the status probe.
type Dependency struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
}

// Status is the engine's readiness report.
type Status struct {
	Ready        bool         `json:"ready"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Err          string       `json:"error,omitempty"`
}

// ProgressFunc receives generation progress in percent, 0..100. Callbacks
// may arrive from another goroutine; implementations must be cheap.
type ProgressFunc func(percent int)

type Engine interface {
	Initialize(ctx context.Context) error
	CheckStatus(ctx context.Context) (Status, error)
	Generate(ctx context.Context, opts Options, onProgress ProgressFunc) (*Result, error)
}

// Capabilities bounds what one model accepts.
type Capabilities struct {
	Name            string
	MinDim          int
	MaxDim          int
	MaxSteps        int
	DefaultWidth    int
	DefaultHeight   int
	DefaultSteps    int
	DefaultGuidance float64
}

func (c *Capabilities) Validate(opts *Options) error {
	if opts.Prompt == "" {
		return ErrEmptyPrompt
	}
	for _, dim := range []int{opts.Width, opts.Height} {
		if dim < c.MinDim || dim > c.MaxDim {
			return fmt.Errorf("%w: %dx%d not within %d..%d", ErrInvalidDimensions, opts.Width, opts.Height, c.MinDim, c.MaxDim)
		}
	}
	if opts.Steps < 1 || opts.Steps > c.MaxSteps {
		return fmt.Errorf("%w: %d not within 1..%d", ErrInvalidSteps, opts.Steps, c.MaxSteps)
	}
	return nil
}

// ApplyDefaults fills zero-valued fields before validation.
func (c *Capabilities) ApplyDefaults(opts *Options) {
	if opts.Width == 0 {
		opts.Width = c.DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = c.DefaultHeight
	}
	if opts.Steps == 0 {
		opts.Steps = c.DefaultSteps
	}
	if opts.GuidanceScale == 0 {
		opts.GuidanceScale = c.DefaultGuidance
	}
}

type Registry struct {
	models map[string]*Capabilities
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Capabilities)}
}

func (r *Registry) Register(cap *Capabilities) {
	r.models[cap.Name] = cap
}

func (r *Registry) Get(name string) (*Capabilities, bool) {
	cap, ok := r.models[name]
	return cap, ok
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry covers the models the bundled engine ships with.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&Capabilities{
		Name:            "sd-turbo",
		MinDim:          256,
		MaxDim:          1024,
		MaxSteps:        10,
		DefaultWidth:    512,
		DefaultHeight:   512,
		DefaultSteps:    4,
		DefaultGuidance: 1.0,
	})

	r.Register(&Capabilities{
		Name:            "sdxl-lightning",
		MinDim:          512,
		MaxDim:          1536,
		MaxSteps:        8,
		DefaultWidth:    1024,
		DefaultHeight:   1024,
		DefaultSteps:    4,
		DefaultGuidance: 1.5,
	})

	r.Register(&Capabilities{
		Name:            "flux-schnell",
		MinDim:          256,
		MaxDim:          2048,
		MaxSteps:        12,
		DefaultWidth:    1024,
		DefaultHeight:   1024,
		DefaultSteps:    4,
		DefaultGuidance: 3.5,
	})

	return r
}
