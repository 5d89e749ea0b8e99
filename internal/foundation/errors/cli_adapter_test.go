package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"config", ConfigError("unknown preprocessor").Build(), 7},
		{"deploy", DeployError("rsync failed").Build(), 8},
		{"style", StyleError("syntax").Build(), 11},
		{"include wrapped", fmt.Errorf("step includes: %w", IncludeError("missing").Build()), 11},
		{"filesystem", FileSystemError("clean").Build(), 11},
		{"server", ServerError("bind").Build(), 12},
		{"internal", InternalError("bug").Build(), 10},
		{"unclassified", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var stderr, logs bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.stderr = &stderr
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(StyleError("sass compilation failed").WithCause(errors.New("unexpected }")).Build())

	if code != 11 {
		t.Errorf("expected exit code 11, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Error (style): sass compilation failed: unexpected }") {
		t.Errorf("unexpected terminal output: %q", stderr.String())
	}
	if !strings.Contains(logs.String(), "category=style") {
		t.Errorf("expected category in log output, got %q", logs.String())
	}
}

func TestCLIErrorAdapter_FormatErrorVerbose(t *testing.T) {
	adapter := NewCLIErrorAdapter(true, slog.Default())
	err := DeployError("rsync failed").Build()
	if got := adapter.FormatError(err); got != err.Error() {
		t.Errorf("verbose format = %q, want %q", got, err.Error())
	}
}

func TestCLIErrorAdapter_FormatErrorHints(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name string
		err  error
		hint string
	}{
		{"user action", IncludeError("include not found").Build(), "Hint: fix the reported file or setting"},
		{"retryable", DeployError("rsync failed").Build(), "Hint: the failure may be transient"},
		{"no hint", ServerError("bind").Build(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.FormatError(tt.err)
			if tt.hint == "" {
				if strings.Contains(got, "Hint:") {
					t.Errorf("unexpected hint in %q", got)
				}
				return
			}
			if !strings.Contains(got, "\n"+tt.hint) {
				t.Errorf("FormatError() = %q, want hint %q", got, tt.hint)
			}
		})
	}
}
