package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"vidscribe/internal/services"
)

const (
	stderrTailBytes = 4096
	waitDelay       = 5 * time.Second
)

// process is a running model CLI whose stdout is consumed by a stream.
type process struct {
	name    string
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *tailBuffer
	scratch string

	mu     sync.Mutex
	waited bool
}

func startProcess(ctx context.Context, name, binary string, args, env []string, scratch string) (*process, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageTranscribe, name, "stdout pipe", err)
	}
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageTranscribe, name, "start", err)
	}
	return &process{name: name, cmd: cmd, stdout: stdout, stderr: stderr, scratch: scratch}, nil
}

// wait reaps the process after stdout is drained and classifies its exit.
func (p *process) wait(ctx context.Context) error {
	p.mu.Lock()
	if p.waited {
		p.mu.Unlock()
		return nil
	}
	p.waited = true
	p.mu.Unlock()

	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		marker := services.ErrTransient
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return services.Wrap(marker, stageTranscribe, p.name, "interrupted", ctxErr)
	}
	return services.Wrap(services.ErrExternalTool, stageTranscribe, p.name, p.stderr.Tail(), err)
}

// close kills an unfinished process and removes scratch output.
func (p *process) close() error {
	p.mu.Lock()
	waited := p.waited
	p.waited = true
	p.mu.Unlock()

	if !waited {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		_ = p.cmd.Wait()
	}
	return removeScratch(p.scratch)
}

func removeScratch(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove scratch dir: %w", err)
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

// Tail returns the last few non-empty lines.
func (t *tailBuffer) Tail() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := strings.Split(strings.TrimSpace(string(t.buf)), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
