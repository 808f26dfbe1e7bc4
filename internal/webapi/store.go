package webapi

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mwhelan/claimcheck/internal/models"
	"github.com/mwhelan/claimcheck/internal/store"
)

// ErrRunNotFound is returned when a run ID does not match any stored run.
var ErrRunNotFound = errors.New("run not found")

// RunStore provides access to validation run data.
type RunStore interface {
	// ListRuns returns all runs, sorted by the given field and order.
	ListRuns(sortField, order string) ([]RunSummary, error)
	// GetRun returns a single run with full claim details.
	GetRun(id string) (*RunDetail, error)
	// Summary returns aggregate metrics across all runs.
	Summary() (*SummaryResponse, error)
}

// FileStore reads ValidationOutcome JSON files from a directory.
type FileStore struct {
	dir string

	mu      sync.RWMutex
	runs    map[string]*models.ValidationOutcome
	loaded  bool
	loadErr error
}

// NewFileStore creates a FileStore that reads results from dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:  dir,
		runs: make(map[string]*models.ValidationOutcome),
	}
}

// load reads all result JSON files from the configured directory.
func (fs *FileStore) load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.runs = make(map[string]*models.ValidationOutcome)

	if fs.dir == "" {
		fs.loaded = true
		return nil
	}

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			fs.loaded = true
			return nil
		}
		fs.loadErr = err
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(fs.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var outcome models.ValidationOutcome
		if err := json.Unmarshal(data, &outcome); err != nil {
			continue
		}
		if outcome.RunID == "" {
			// Use filename (without extension) as fallback ID.
			outcome.RunID = strings.TrimSuffix(e.Name(), ".json")
		}
		fs.runs[outcome.RunID] = &outcome
	}

	fs.loaded = true
	fs.loadErr = nil
	return nil
}

// ensureLoaded loads data if not already loaded.
func (fs *FileStore) ensureLoaded() error {
	fs.mu.RLock()
	if fs.loaded {
		fs.mu.RUnlock()
		return nil
	}
	fs.mu.RUnlock()
	return fs.load()
}

// Reload forces a fresh reload of all result files from disk.
func (fs *FileStore) Reload() error {
	return fs.load()
}

func outcomeToSummary(o *models.ValidationOutcome) RunSummary {
	outcome := "passed"
	if o.Digest.PassRate < 1.0 || o.Digest.Errors > 0 {
		outcome = "failed"
	}

	passed := 0
	for _, co := range o.ClaimOutcomes {
		if co.Status == models.StatusPassed {
			passed++
		}
	}

	providers := o.Setup.Providers
	if providers == nil {
		providers = []string{}
	}

	return RunSummary{
		ID:            o.RunID,
		Spec:          o.SpecName,
		Providers:     providers,
		Outcome:       outcome,
		PassCount:     passed,
		ClaimCount:    o.Digest.TotalClaims,
		Score:         o.Digest.AggregateScore,
		EvidenceScore: o.Digest.EvidenceScore,
		Duration:      float64(o.Digest.DurationMs) / 1000.0,
		Timestamp:     o.Timestamp,
	}
}

func outcomeToDetail(o *models.ValidationOutcome) *RunDetail {
	s := outcomeToSummary(o)
	detail := &RunDetail{RunSummary: s}

	for _, co := range o.ClaimOutcomes {
		cr := ClaimResult{
			Name:     co.DisplayName,
			Outcome:  string(co.Status),
			Verdict:  string(co.Verdict),
			Expected: string(co.Expected),
		}
		if co.Stats != nil {
			cr.Score = co.Stats.AvgScore
			cr.Duration = float64(co.Stats.AvgDurationMs) / 1000.0
		}

		// Provider verdicts come from the last trial, which decided the
		// claim's consensus verdict.
		if len(co.Trials) > 0 {
			trial := co.Trials[len(co.Trials)-1]
			if cr.Duration == 0 {
				cr.Duration = float64(trial.DurationMs) / 1000.0
			}
			cr.Agreement = trial.Consensus.Agreement

			names := make([]string, 0, len(trial.Verdicts))
			for name := range trial.Verdicts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				v := trial.Verdicts[name]
				cr.Verdicts = append(cr.Verdicts, VerdictResult{
					Provider:   name,
					Verdict:    string(v.Verdict),
					Confidence: v.Confidence,
					Rationale:  v.Rationale,
					Error:      v.ErrorMsg,
					Duration:   float64(v.DurationMs) / 1000.0,
				})
			}
		}
		if cr.Verdicts == nil {
			cr.Verdicts = []VerdictResult{}
		}
		detail.Claims = append(detail.Claims, cr)
	}
	if detail.Claims == nil {
		detail.Claims = []ClaimResult{}
	}

	for _, ev := range o.Evidence {
		detail.Evidence = append(detail.Evidence, EvidenceResult{
			Source:  ev.Source,
			Kind:    ev.Kind,
			OK:      ev.OK,
			Latency: float64(ev.LatencyMs) / 1000.0,
			Summary: ev.Summary,
		})
	}
	if detail.Evidence == nil {
		detail.Evidence = []EvidenceResult{}
	}

	return detail
}

// ListRuns returns all runs sorted by the given field and order.
func (fs *FileStore) ListRuns(sortField, order string) ([]RunSummary, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	runs := make([]RunSummary, 0, len(fs.runs))
	for _, o := range fs.runs {
		runs = append(runs, outcomeToSummary(o))
	}

	sortRuns(runs, sortField, order)
	return runs, nil
}

// GetRun returns a single run with full claim details.
func (fs *FileStore) GetRun(id string) (*RunDetail, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	o, ok := fs.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}

	return outcomeToDetail(o), nil
}

// Summary returns aggregate metrics across all runs.
func (fs *FileStore) Summary() (*SummaryResponse, error) {
	if err := fs.ensureLoaded(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	outcomes := make([]*models.ValidationOutcome, 0, len(fs.runs))
	for _, o := range fs.runs {
		outcomes = append(outcomes, o)
	}
	return summarize(outcomes), nil
}

func summarize(outcomes []*models.ValidationOutcome) *SummaryResponse {
	resp := &SummaryResponse{}
	if len(outcomes) == 0 {
		return resp
	}

	totalScore := 0.0
	totalDuration := 0.0
	totalPassed := 0
	totalClaims := 0

	for _, o := range outcomes {
		resp.TotalRuns++
		totalClaims += o.Digest.TotalClaims

		s := outcomeToSummary(o)
		totalPassed += s.PassCount
		totalScore += s.Score
		totalDuration += s.Duration
	}

	resp.TotalClaims = totalClaims
	if totalClaims > 0 {
		resp.PassRate = float64(totalPassed) / float64(totalClaims) * 100.0
	}
	if resp.TotalRuns > 0 {
		resp.AvgScore = totalScore / float64(resp.TotalRuns)
		resp.AvgDuration = totalDuration / float64(resp.TotalRuns)
	}

	return resp
}

func sortRuns(runs []RunSummary, field, order string) {
	less := func(i, j int) bool {
		switch field {
		case "score":
			return runs[i].Score < runs[j].Score
		case "claims":
			return runs[i].ClaimCount < runs[j].ClaimCount
		case "duration":
			return runs[i].Duration < runs[j].Duration
		default: // "timestamp" or empty
			return runs[i].Timestamp.Before(runs[j].Timestamp)
		}
	}

	if order == "asc" {
		sort.Slice(runs, less)
	} else {
		sort.Slice(runs, func(i, j int) bool { return less(j, i) })
	}
}

// DBStore serves runs straight from the result database, so the dashboard
// reflects runs as they are persisted without an export step.
type DBStore struct {
	db *store.Store
}

// NewDBStore creates a DBStore backed by an open result database.
func NewDBStore(db *store.Store) *DBStore {
	return &DBStore{db: db}
}

func (ds *DBStore) outcomes() ([]*models.ValidationOutcome, error) {
	summaries, err := ds.db.ListRuns()
	if err != nil {
		return nil, err
	}

	outcomes := make([]*models.ValidationOutcome, 0, len(summaries))
	for _, s := range summaries {
		o, err := ds.db.GetRun(s.RunID)
		if err != nil {
			continue
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// ListRuns returns all stored runs sorted by the given field and order.
func (ds *DBStore) ListRuns(sortField, order string) ([]RunSummary, error) {
	outcomes, err := ds.outcomes()
	if err != nil {
		return nil, err
	}

	runs := make([]RunSummary, 0, len(outcomes))
	for _, o := range outcomes {
		runs = append(runs, outcomeToSummary(o))
	}

	sortRuns(runs, sortField, order)
	return runs, nil
}

// GetRun returns a single stored run with full claim details.
func (ds *DBStore) GetRun(id string) (*RunDetail, error) {
	o, err := ds.db.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return outcomeToDetail(o), nil
}

// Summary returns aggregate metrics across all stored runs.
func (ds *DBStore) Summary() (*SummaryResponse, error) {
	outcomes, err := ds.outcomes()
	if err != nil {
		return nil, err
	}
	return summarize(outcomes), nil
}

// Ensure both stores satisfy RunStore.
var (
	_ RunStore = (*FileStore)(nil)
	_ RunStore = (*DBStore)(nil)
)
