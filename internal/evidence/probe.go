// Package evidence collects verifiable observations that ground provider
// judgments. Probes run before scoring; their results are serialized into
// provider prompts and persisted with the run.
package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mwhelan/claimcheck/internal/models"
)

type Type string

const (
	// TypeHTTP fetches a URL and records status, latency and an optional
	// body excerpt.
	TypeHTTP Type = "http"

	// TypeFile checks file existence and content patterns.
	TypeFile Type = "file"

	// TypeCommand runs a program and records its exit code and output.
	TypeCommand Type = "command"
)

// Probe is the interface for all evidence collectors.
type Probe interface {
	// Name returns the probe's configured name
	Name() string

	// Type returns the probe type
	Type() Type

	// Collect gathers one piece of evidence. Probe failures are data, not
	// errors: a refused connection comes back as Evidence with OK=false.
	// Only setup problems (bad config, canceled context) return an error.
	Collect(ctx context.Context) (*models.Evidence, error)
}

// Create builds a probe from its spec configuration.
func Create(cfg *models.ProbeConfig, baseDir string) (Probe, error) {
	switch Type(cfg.Kind) {
	case TypeHTTP:
		var v *struct {
			URL            string `mapstructure:"url"`
			Method         string `mapstructure:"method"`
			ExpectStatus   int    `mapstructure:"expect_status"`
			BodyContains   string `mapstructure:"body_contains"`
			TimeoutSeconds int    `mapstructure:"timeout_seconds"`
		}

		if err := mapstructure.Decode(cfg.Parameters, &v); err != nil {
			return nil, err
		}

		if v == nil || v.URL == "" {
			return nil, fmt.Errorf("probe %s: required field 'url' is missing", cfg.Identifier)
		}

		return NewHTTPProbe(cfg.Identifier, HTTPProbeArgs{
			URL:            v.URL,
			Method:         v.Method,
			ExpectStatus:   v.ExpectStatus,
			BodyContains:   v.BodyContains,
			TimeoutSeconds: v.TimeoutSeconds,
		})
	case TypeFile:
		var v *struct {
			MustExist    []string `mapstructure:"must_exist"`
			MustNotExist []string `mapstructure:"must_not_exist"`
			MustMatch    []struct {
				Path    string `mapstructure:"path"`
				Pattern string `mapstructure:"pattern"`
			} `mapstructure:"must_match"`
		}

		if err := mapstructure.Decode(cfg.Parameters, &v); err != nil {
			return nil, err
		}

		args := FileProbeArgs{BaseDir: baseDir}
		if v != nil {
			args.MustExist = v.MustExist
			args.MustNotExist = v.MustNotExist
			for _, m := range v.MustMatch {
				args.MustMatch = append(args.MustMatch, FileContentPattern{Path: m.Path, Pattern: m.Pattern})
			}
		}

		return NewFileProbe(cfg.Identifier, args)
	case TypeCommand:
		var v *struct {
			Command        string `mapstructure:"command"`
			ExitCodes      []int  `mapstructure:"exit_codes"`
			TimeoutSeconds int    `mapstructure:"timeout_seconds"`
		}

		if err := mapstructure.Decode(cfg.Parameters, &v); err != nil {
			return nil, err
		}

		if v == nil || v.Command == "" {
			return nil, fmt.Errorf("probe %s: required field 'command' is missing", cfg.Identifier)
		}

		return NewCommandProbe(cfg.Identifier, CommandProbeArgs{
			Command:        v.Command,
			ExitCodes:      v.ExitCodes,
			TimeoutSeconds: v.TimeoutSeconds,
			WorkingDir:     baseDir,
		})
	default:
		return nil, fmt.Errorf("'%s' is not a valid probe type", cfg.Kind)
	}
}

// measureLatency runs fn and stamps the evidence with collection time and latency
func measureLatency(fn func() (*models.Evidence, error)) (*models.Evidence, error) {
	start := time.Now()
	ev, err := fn()

	if ev != nil {
		ev.CollectedAt = start.UTC()
		ev.LatencyMs = time.Since(start).Milliseconds()
	}

	return ev, err
}
