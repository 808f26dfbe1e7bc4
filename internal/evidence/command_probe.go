package evidence

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
)

const (
	defaultCommandTimeout = 30 * time.Second
	maxOutputExcerpt      = 4096
)

type CommandProbeArgs struct {
	Command        string
	ExitCodes      []int
	TimeoutSeconds int
	WorkingDir     string
}

type commandProbe struct {
	name string
	args CommandProbeArgs
}

func NewCommandProbe(name string, args CommandProbeArgs) (*commandProbe, error) {
	if name == "" {
		return nil, errors.New("missing name")
	}

	if strings.TrimSpace(args.Command) == "" {
		return nil, fmt.Errorf("probe %s: empty command", name)
	}

	return &commandProbe{name: name, args: args}, nil
}

// Name implements [Probe].
func (p *commandProbe) Name() string { return p.name }

// Type implements [Probe].
func (p *commandProbe) Type() Type { return TypeCommand }

// Collect implements [Probe].
func (p *commandProbe) Collect(ctx context.Context) (*models.Evidence, error) {
	return measureLatency(func() (*models.Evidence, error) {
		timeout := defaultCommandTimeout
		if p.args.TimeoutSeconds > 0 {
			timeout = time.Duration(p.args.TimeoutSeconds) * time.Second
		}

		cmdCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		parts := strings.Fields(p.args.Command)
		//nolint:gosec // probe commands are user-configured in the run YAML, not untrusted input
		cmd := exec.CommandContext(cmdCtx, parts[0], parts[1:]...)
		if p.args.WorkingDir != "" {
			cmd.Dir = p.args.WorkingDir
		}

		output, err := cmd.CombinedOutput()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		ev := &models.Evidence{
			Source: p.name,
			Kind:   string(TypeCommand),
			Payload: map[string]any{
				"command": p.args.Command,
			},
		}

		if len(output) > maxOutputExcerpt {
			output = output[:maxOutputExcerpt]
		}
		ev.Payload["output"] = string(output)

		exitCode := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				ev.OK = false
				ev.Summary = fmt.Sprintf("command failed to start: %v", err)
				return ev, nil
			}
		}

		ev.Payload["exit_code"] = exitCode
		ev.OK = exitAllowed(exitCode, p.args.ExitCodes)
		ev.Summary = fmt.Sprintf("%q exited with code %d", p.args.Command, exitCode)

		return ev, nil
	})
}

func exitAllowed(exitCode int, allowed []int) bool {
	if len(allowed) == 0 {
		return exitCode == 0
	}
	for _, code := range allowed {
		if code == exitCode {
			return true
		}
	}
	return false
}
