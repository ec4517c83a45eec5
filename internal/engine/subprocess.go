package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/config"
)

// SubprocessEngine drives a local generation binary. One process per
// request: flags in, a single JSON object on stdout, progress lines on
// stderr in the form "PROGRESS <percent>".
type SubprocessEngine struct {
	command  string
	args     []string
	model    string
	timeout  time.Duration
	registry *Registry
}

func NewSubprocessEngine(cfg config.EngineConfig) *SubprocessEngine {
	return &SubprocessEngine{
		command:  cfg.Command,
		args:     cfg.Args,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		registry: DefaultRegistry(),
	}
}

// Model returns the configured model name.
func (e *SubprocessEngine) Model() string { return e.model }

// Initialize verifies the binary is reachable.
func (e *SubprocessEngine) Initialize(ctx context.Context) error {
	if _, err := exec.LookPath(e.command); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrEngineNotReady, e.command)
	}
	return nil
}

// CheckStatus asks the binary for its readiness report. A binary that is
// missing or refuses to answer yields a not-ready status, not an error;
// only a malformed report is an error.
func (e *SubprocessEngine) CheckStatus(ctx context.Context) (Status, error) {
	if _, err := exec.LookPath(e.command); err != nil {
		return Status{Ready: false, Err: fmt.Sprintf("%s not found in PATH", e.command)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	args := append(append([]string{}, e.args...), "--status")
	out, err := exec.CommandContext(ctx, e.command, args...).Output()
	if err != nil {
		return Status{Ready: false, Err: fmt.Sprintf("status probe failed: %v", err)}, nil
	}

	var st Status
	if err := json.Unmarshal(bytes.TrimSpace(out), &st); err != nil {
		return Status{}, fmt.Errorf("unparseable status report: %w", err)
	}
	return st, nil
}

// subprocessResult is the JSON object the binary prints on success.
type subprocessResult struct {
	ImageBase64 string `json:"imageBase64"`
	Seed        *int64 `json:"seed,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Generate runs one generation under the configured hard wall-clock
// timeout. On expiry the process is killed and the returned error names
// both the limit and the remedy.
func (e *SubprocessEngine) Generate(ctx context.Context, opts Options, onProgress ProgressFunc) (*Result, error) {
	cap, ok := e.registry.Get(e.model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, e.model)
	}
	cap.ApplyDefaults(&opts)
	if err := cap.Validate(&opts); err != nil {
		return nil, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.args...),
		"--prompt", opts.Prompt,
		"--width", strconv.Itoa(opts.Width),
		"--height", strconv.Itoa(opts.Height),
		"--steps", strconv.Itoa(opts.Steps),
		"--guidance", strconv.FormatFloat(opts.GuidanceScale, 'f', -1, 64),
		"--model", e.model,
	)
	if opts.Seed != nil {
		args = append(args, "--seed", strconv.FormatInt(*opts.Seed, 10))
	}

	cmd := exec.CommandContext(runCtx, e.command, args...)
	// Bound Wait even if a grandchild keeps the output pipes open after
	// the kill.
	cmd.WaitDelay = time.Second

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &progressWriter{onProgress: onProgress}

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("generation timed out after %s and the process was killed; reduce steps or increase engine.timeout", e.timeout)
		}
		if runCtx.Err() != nil {
			return nil, runCtx.Err()
		}
		return nil, fmt.Errorf("%w: process exited: %v", ErrGenerationFailed, err)
	}

	var out subprocessResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &out); err != nil {
		return nil, fmt.Errorf("%w: unparseable output: %v", ErrGenerationFailed, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, out.Error)
	}
	if out.ImageBase64 == "" {
		return nil, fmt.Errorf("%w: empty image in output", ErrGenerationFailed)
	}

	seed := opts.Seed
	if out.Seed != nil {
		seed = out.Seed
	}

	return &Result{
		ImageBase64:   out.ImageBase64,
		Width:         opts.Width,
		Height:        opts.Height,
		Steps:         opts.Steps,
		GuidanceScale: opts.GuidanceScale,
		Seed:          seed,
		Model:         e.model,
		LatencyMS:     time.Since(start).Milliseconds(),
	}, nil
}

// progressWriter receives the subprocess stderr stream, forwarding
// "PROGRESS <n>" lines to the callback and discarding everything else.
type progressWriter struct {
	onProgress ProgressFunc
	buf        bytes.Buffer
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line, keep it buffered for the next write.
			w.buf.WriteString(line)
			break
		}
		w.handleLine(strings.TrimSpace(line))
	}
	return len(p), nil
}

func (w *progressWriter) handleLine(line string) {
	rest, ok := strings.CutPrefix(line, "PROGRESS ")
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || w.onProgress == nil {
		return
	}
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	w.onProgress(n)
}
