package deploy

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes the transfer command. ExecRunner runs a real process; tests
// substitute a recorder.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) error
}

// ExecRunner runs binary from PATH and streams its output to the log line by line.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, binary string, args []string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, path, args...)
	stdout := &lineLogger{level: slog.LevelInfo, stream: "stdout"}
	stderr := &lineLogger{level: slog.LevelWarn, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	slog.Debug("Running deploy command", "binary", path, "args", strings.Join(args, " "))

	err = cmd.Run()
	stdout.flush()
	stderr.flush()
	return err
}

// lineLogger is an io.Writer that emits one log record per complete line.
type lineLogger struct {
	mu     sync.Mutex
	level  slog.Level
	stream string
	buf    bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// incomplete line stays buffered
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		l.emit(line)
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	sc := bufio.NewScanner(&l.buf)
	for sc.Scan() {
		l.emit(sc.Text())
	}
	l.buf.Reset()
}

func (l *lineLogger) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	slog.Log(context.Background(), l.level, line, "stream", l.stream)
}
