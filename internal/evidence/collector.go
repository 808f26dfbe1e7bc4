package evidence

import (
	"context"
	"log/slog"

	"github.com/mwhelan/claimcheck/internal/models"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentProbes bounds probe fan-out so a spec with dozens of HTTP
// probes does not open them all at once.
const maxConcurrentProbes = 8

// Collector runs a set of probes and assembles their evidence.
type Collector struct {
	probes []Probe
}

func NewCollector(probes []Probe) *Collector {
	return &Collector{probes: probes}
}

// NewCollectorFromConfig builds probes from spec configuration.
func NewCollectorFromConfig(configs []models.ProbeConfig, baseDir string) (*Collector, error) {
	probes := make([]Probe, 0, len(configs))
	for i := range configs {
		probe, err := Create(&configs[i], baseDir)
		if err != nil {
			return nil, err
		}
		probes = append(probes, probe)
	}
	return NewCollector(probes), nil
}

// Collect runs all probes concurrently and returns their evidence in probe
// order. A probe setup error aborts the whole collection; probe failures
// (connection refused, missing file) come back as evidence with OK=false.
func (c *Collector) Collect(ctx context.Context) ([]models.Evidence, error) {
	if len(c.probes) == 0 {
		return nil, nil
	}

	results := make([]models.Evidence, len(c.probes))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentProbes)

	for i, probe := range c.probes {
		group.Go(func() error {
			slog.Debug("collecting evidence", "probe", probe.Name(), "type", probe.Type())

			ev, err := probe.Collect(groupCtx)
			if err != nil {
				return err
			}

			results[i] = *ev
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
