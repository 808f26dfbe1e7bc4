package evidence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/mwhelan/claimcheck/internal/models"
)

type FileContentPattern struct {
	Path    string
	Pattern string
}

type FileProbeArgs struct {
	BaseDir      string
	MustExist    []string
	MustNotExist []string
	MustMatch    []FileContentPattern
}

type fileProbe struct {
	name     string
	args     FileProbeArgs
	patterns []*regexp.Regexp
}

func NewFileProbe(name string, args FileProbeArgs) (*fileProbe, error) {
	if name == "" {
		return nil, errors.New("missing name")
	}

	if len(args.MustExist) == 0 && len(args.MustNotExist) == 0 && len(args.MustMatch) == 0 {
		return nil, fmt.Errorf("probe %s: no checks configured", name)
	}

	patterns := make([]*regexp.Regexp, 0, len(args.MustMatch))
	for _, m := range args.MustMatch {
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			return nil, fmt.Errorf("probe %s: invalid pattern %q: %w", name, m.Pattern, err)
		}
		patterns = append(patterns, re)
	}

	return &fileProbe{name: name, args: args, patterns: patterns}, nil
}

// Name implements [Probe].
func (p *fileProbe) Name() string { return p.name }

// Type implements [Probe].
func (p *fileProbe) Type() Type { return TypeFile }

// Collect implements [Probe].
func (p *fileProbe) Collect(ctx context.Context) (*models.Evidence, error) {
	return measureLatency(func() (*models.Evidence, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev := &models.Evidence{
			Source:  p.name,
			Kind:    string(TypeFile),
			OK:      true,
			Payload: map[string]any{},
		}

		var failures []string

		for _, path := range p.args.MustExist {
			if _, err := os.Stat(p.resolve(path)); err != nil {
				failures = append(failures, fmt.Sprintf("missing: %s", path))
			}
		}

		for _, path := range p.args.MustNotExist {
			if _, err := os.Stat(p.resolve(path)); err == nil {
				failures = append(failures, fmt.Sprintf("unexpectedly present: %s", path))
			}
		}

		for i, m := range p.args.MustMatch {
			data, err := os.ReadFile(p.resolve(m.Path))
			if err != nil {
				failures = append(failures, fmt.Sprintf("unreadable: %s", m.Path))
				continue
			}
			if !p.patterns[i].Match(data) {
				failures = append(failures, fmt.Sprintf("no match for %q in %s", m.Pattern, m.Path))
			}
		}

		if len(failures) > 0 {
			ev.OK = false
			ev.Payload["failures"] = failures
			ev.Summary = fmt.Sprintf("%d file check(s) failed", len(failures))
		} else {
			ev.Summary = "all file checks passed"
		}

		return ev, nil
	})
}

func (p *fileProbe) resolve(path string) string {
	if filepath.IsAbs(path) || p.args.BaseDir == "" {
		return path
	}
	return filepath.Join(p.args.BaseDir, path)
}
