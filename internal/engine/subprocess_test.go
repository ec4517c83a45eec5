package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/config"
)

// fakeEngine writes a shell script standing in for the generation binary.
func fakeEngine(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake engine requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-engine")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func subprocessFor(t *testing.T, script string, timeout time.Duration) *SubprocessEngine {
	t.Helper()
	return NewSubprocessEngine(config.EngineConfig{
		Command: fakeEngine(t, script),
		Model:   "sd-turbo",
		Timeout: timeout,
	})
}

func TestGenerateParsesOutput(t *testing.T) {
	e := subprocessFor(t, `
echo "PROGRESS 25" >&2
echo "PROGRESS 75" >&2
echo '{"imageBase64":"aGVsbG8=","seed":42}'
`, 10*time.Second)

	var progress []int
	res, err := e.Generate(context.Background(), Options{Prompt: "a fox"}, func(n int) {
		progress = append(progress, n)
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.ImageBase64 != "aGVsbG8=" {
		t.Errorf("ImageBase64 = %q", res.ImageBase64)
	}
	if res.Seed == nil || *res.Seed != 42 {
		t.Errorf("Seed = %v, want 42", res.Seed)
	}
	if res.Width != 512 || res.Height != 512 || res.Steps != 4 {
		t.Errorf("defaults not applied: %+v", res)
	}
	if res.Model != "sd-turbo" {
		t.Errorf("Model = %q", res.Model)
	}
	if len(progress) != 2 || progress[0] != 25 || progress[1] != 75 {
		t.Errorf("progress = %v, want [25 75]", progress)
	}
}

func TestGenerateTimeoutKillsProcess(t *testing.T) {
	e := subprocessFor(t, "sleep 5\n", 100*time.Millisecond)

	start := time.Now()
	_, err := e.Generate(context.Background(), Options{Prompt: "slow"}, nil)
	if err == nil {
		t.Fatal("Generate() succeeded past the timeout")
	}
	if !strings.Contains(err.Error(), "timed out") || !strings.Contains(err.Error(), "engine.timeout") {
		t.Errorf("timeout error %q lacks the limit and remedy", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("process not killed promptly: took %v", elapsed)
	}
}

func TestGenerateNonZeroExit(t *testing.T) {
	e := subprocessFor(t, "echo \"CUDA out of memory\" >&2\nexit 3\n", 10*time.Second)
	_, err := e.Generate(context.Background(), Options{Prompt: "x"}, nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Generate() error = %v, want ErrGenerationFailed", err)
	}
}

func TestGenerateReportedError(t *testing.T) {
	e := subprocessFor(t, `echo '{"error":"model weights missing"}'`+"\n", 10*time.Second)
	_, err := e.Generate(context.Background(), Options{Prompt: "x"}, nil)
	if !errors.Is(err, ErrGenerationFailed) || !strings.Contains(err.Error(), "model weights missing") {
		t.Errorf("Generate() error = %v", err)
	}
}

func TestGenerateValidatesBeforeSpawning(t *testing.T) {
	e := subprocessFor(t, "exit 0\n", 10*time.Second)
	_, err := e.Generate(context.Background(), Options{}, nil)
	if !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("Generate() error = %v, want ErrEmptyPrompt", err)
	}
	_, err = e.Generate(context.Background(), Options{Prompt: "x", Width: 9999, Height: 512}, nil)
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Generate() error = %v, want ErrInvalidDimensions", err)
	}
}

func TestGenerateUnknownModel(t *testing.T) {
	e := NewSubprocessEngine(config.EngineConfig{Command: "true", Model: "mystery-model"})
	_, err := e.Generate(context.Background(), Options{Prompt: "x"}, nil)
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Generate() error = %v, want ErrUnknownModel", err)
	}
}

func TestCheckStatusMissingBinary(t *testing.T) {
	e := NewSubprocessEngine(config.EngineConfig{Command: "definitely-not-installed-anywhere", Model: "sd-turbo"})
	st, err := e.CheckStatus(context.Background())
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if st.Ready {
		t.Error("missing binary reported ready")
	}
	if st.Err == "" {
		t.Error("not-ready status carries no explanation")
	}
}

func TestCheckStatusParsesReport(t *testing.T) {
	e := subprocessFor(t, `echo '{"ready":true,"dependencies":[{"name":"torch","installed":true,"version":"2.4"}]}'`+"\n", 10*time.Second)
	st, err := e.CheckStatus(context.Background())
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if !st.Ready {
		t.Error("Ready = false")
	}
	if len(st.Dependencies) != 1 || st.Dependencies[0].Name != "torch" {
		t.Errorf("Dependencies = %+v", st.Dependencies)
	}
}

func TestInitialize(t *testing.T) {
	e := subprocessFor(t, "exit 0\n", time.Second)
	if err := e.Initialize(context.Background()); err != nil {
		t.Errorf("Initialize() error = %v", err)
	}

	missing := NewSubprocessEngine(config.EngineConfig{Command: "definitely-not-installed-anywhere"})
	if err := missing.Initialize(context.Background()); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("Initialize() error = %v, want ErrEngineNotReady", err)
	}
}
