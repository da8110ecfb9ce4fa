package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

// ModelServer is the operational control over the local model process.
type ModelServer struct {
	runner  ports.ProcessRunner
	command string
	args    []string
	logger  *slog.Logger
}

// NewModelServer wires the stop command, e.g. "pkill" with "-f ollama serve".
func NewModelServer(runner ports.ProcessRunner, command string, args []string, logger *slog.Logger) *ModelServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelServer{runner: runner, command: command, args: args, logger: logger}
}

// Stop runs the stop command. Exit code 1 from pkill means nothing matched
// and is reported as not running rather than an error.
func (m *ModelServer) Stop(ctx context.Context) (bool, error) {
	if m.runner == nil || m.command == "" {
		return false, errors.New("model stop command is not configured")
	}
	res, err := m.runner.Run(ctx, m.command, m.args, nil)
	if err != nil {
		return false, fmt.Errorf("stop model server: %w", err)
	}
	switch res.ExitCode {
	case 0:
		m.logger.Info("model server stopped", "command", m.command)
		return true, nil
	case 1:
		m.logger.Info("model server was not running", "command", m.command)
		return false, nil
	default:
		return false, fmt.Errorf("stop model server: exit code %d: %s", res.ExitCode, res.Stderr)
	}
}
