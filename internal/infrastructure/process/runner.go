// Package process spawns extraction and operational child processes.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

// ExecRunner implements ports.ProcessRunner on os/exec.
type ExecRunner struct {
	dir       string
	waitDelay time.Duration
}

var _ ports.ProcessRunner = (*ExecRunner)(nil)

// NewExecRunner runs commands from dir; an empty dir keeps the process cwd.
func NewExecRunner(dir string) *ExecRunner {
	return &ExecRunner{dir: dir, waitDelay: 5 * time.Second}
}

// Run starts the command, captures stdout and stderr separately and waits
// for exit. A nonzero exit is reported through ExitCode, not the error.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, env []string) (ports.ProcessResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.waitDelay

	err := cmd.Run()
	result := ports.ProcessResult{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("process %s interrupted: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		return result, fmt.Errorf("start %s: %w", name, err)
	}
}
