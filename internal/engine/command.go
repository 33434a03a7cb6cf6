package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/dorkodu/pharpub/pkg/logger"
)

// ExecEffect is a publisher effect that runs a shell command
type ExecEffect struct {
	ctx     context.Context
	command string
	dir     string
	env     []string
	log     logger.Logger

	mu     sync.Mutex
	output string
	err    error
}

// NewExecEffect creates an effect running command in dir. env entries
// (KEY=value) are appended to the process environment.
func NewExecEffect(ctx context.Context, command, dir string, env []string, log logger.Logger) *ExecEffect {
	if log == nil {
		log = logger.NewNop()
	}
	return &ExecEffect{
		ctx:     ctx,
		command: command,
		dir:     dir,
		env:     env,
		log:     log,
	}
}

// Run executes the command. Failures are recorded, see Err.
func (e *ExecEffect) Run() {
	start := time.Now()

	cmd := createCommand(e.ctx, e.command)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(), e.env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.output = out.String()

	if err != nil {
		e.err = fmt.Errorf("command %q failed: %w", e.command, err)
		e.log.Error("Hook command failed",
			logger.WithField("command", e.command),
			logger.WithField("error", err),
			logger.WithField("output", strings.TrimSpace(e.output)))
		return
	}
	e.err = nil

	e.log.Debug("Hook command finished",
		logger.WithField("command", e.command),
		logger.WithField("duration", time.Since(start).Round(time.Millisecond)))
}

// Err returns the error of the last Run
func (e *ExecEffect) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Output returns the combined stdout and stderr of the last Run
func (e *ExecEffect) Output() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.output
}

// createCommand runs compound commands through sh and splits simple ones
func createCommand(ctx context.Context, command string) *exec.Cmd {
	if strings.ContainsAny(command, "&|;<>$`*?\"'") {
		return exec.CommandContext(ctx, "sh", "-c", command)
	}
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return exec.CommandContext(ctx, "sh", "-c", command)
	}
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}
