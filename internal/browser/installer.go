package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
)

// CommandResult is the captured output of an install command.
type CommandResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// CommandInstaller installs the browser by running an external command such
// as `npx playwright install chromium`.
type CommandInstaller struct {
	command    []string
	timeout    time.Duration
	installDir string
	logger     logging.Logger
}

func NewCommandInstaller(cfg Config, installDir string, logger logging.Logger) *CommandInstaller {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &CommandInstaller{
		command:    cfg.InstallCommand,
		timeout:    cfg.InstallTimeout,
		installDir: installDir,
		logger:     logger.With(logging.Field{Key: "component", Value: "browser-installer"}),
	}
}

func (ci *CommandInstaller) Install(ctx context.Context) error {
	if len(ci.command) == 0 {
		return errors.New("no install command configured")
	}
	if ci.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ci.timeout)
		defer cancel()
	}

	var env []string
	if ci.installDir != "" {
		env = append(env, "PLAYWRIGHT_BROWSERS_PATH="+ci.installDir)
	}

	ci.logger.Info("installing browser at runtime", logging.Field{Key: "command", Value: strings.Join(ci.command, " ")})
	res, err := runCommand(ctx, env, ci.command[0], ci.command[1:]...)
	if err != nil {
		return fmt.Errorf("run %s: %w", ci.command[0], err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited with code %d: %s", ci.command[0], res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	ci.logger.Info("browser installed")
	return nil
}

// runCommand executes binary and captures its output. A non-zero exit is
// reported through ExitCode, not err. The context bounds the process; once it
// is done the child gets WaitDelay to exit before its pipes are closed.
func runCommand(ctx context.Context, env []string, binary string, args ...string) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = 5 * time.Second
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("command timed out or was cancelled: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandResult{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.String(),
			ExitCode: exitErr.ExitCode(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &CommandResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.String(),
	}, nil
}
