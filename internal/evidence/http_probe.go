package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwhelan/claimcheck/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxBodyExcerpt     = 4096
)

type HTTPProbeArgs struct {
	URL            string
	Method         string
	ExpectStatus   int
	BodyContains   string
	TimeoutSeconds int
}

type httpProbe struct {
	name   string
	args   HTTPProbeArgs
	client *http.Client
}

func NewHTTPProbe(name string, args HTTPProbeArgs) (*httpProbe, error) {
	if name == "" {
		return nil, errors.New("missing name")
	}

	if args.Method == "" {
		args.Method = http.MethodGet
	}
	if args.ExpectStatus == 0 {
		args.ExpectStatus = http.StatusOK
	}

	timeout := defaultHTTPTimeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds) * time.Second
	}

	return &httpProbe{
		name:   name,
		args:   args,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name implements [Probe].
func (p *httpProbe) Name() string { return p.name }

// Type implements [Probe].
func (p *httpProbe) Type() Type { return TypeHTTP }

// Collect implements [Probe].
func (p *httpProbe) Collect(ctx context.Context) (*models.Evidence, error) {
	return measureLatency(func() (*models.Evidence, error) {
		ev := &models.Evidence{
			Source: p.name,
			Kind:   string(TypeHTTP),
			Payload: map[string]any{
				"url":    p.args.URL,
				"method": p.args.Method,
			},
		}

		req, err := http.NewRequestWithContext(ctx, p.args.Method, p.args.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", p.name, err)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			ev.OK = false
			ev.Summary = fmt.Sprintf("request failed: %v", err)
			return ev, nil
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))

		ev.Payload["status"] = resp.StatusCode
		ev.OK = resp.StatusCode == p.args.ExpectStatus

		if p.args.BodyContains != "" {
			found := strings.Contains(string(body), p.args.BodyContains)
			ev.Payload["body_contains"] = found
			ev.OK = ev.OK && found
		}

		if ev.OK {
			ev.Summary = fmt.Sprintf("%s %s returned %d", p.args.Method, p.args.URL, resp.StatusCode)
		} else {
			ev.Summary = fmt.Sprintf("%s %s returned %d, expected %d", p.args.Method, p.args.URL, resp.StatusCode, p.args.ExpectStatus)
		}

		return ev, nil
	})
}
