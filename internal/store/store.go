// Package store persists run outcomes, evidence and cached verdicts in an
// embedded BadgerDB, with zstd-compressed JSON values.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/mwhelan/claimcheck/internal/models"
)

// Key prefixes. Runs and evidence are stored separately so the web API can
// list runs without decoding probe payloads.
const (
	runPrefix      = "run:"
	evidencePrefix = "evidence:"
	cachePrefix    = "cache:"
)

// defaultCacheTTL bounds how long cached trial results are served.
const defaultCacheTTL = 7 * 24 * time.Hour

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = errors.New("store: not found")

// Config holds configuration for the store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used in tests.
	InMemory bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// Store is safe for concurrent use.
type Store struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens the store, creating the directory if needed.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, enc: enc, dec: dec}, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// PutRun persists a complete run outcome.
func (s *Store) PutRun(outcome *models.ValidationOutcome) error {
	return s.put(runPrefix+outcome.RunID, outcome, 0)
}

// GetRun loads a run outcome by ID.
func (s *Store) GetRun(runID string) (*models.ValidationOutcome, error) {
	var outcome models.ValidationOutcome
	if err := s.get(runPrefix+runID, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// RunSummary is a lightweight view of a stored run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	SpecName    string    `json:"spec_name"`
	Timestamp   time.Time `json:"timestamp"`
	TotalClaims int       `json:"total_claims"`
	Supported   int       `json:"supported"`
	Refuted     int       `json:"refuted"`
	Uncertain   int       `json:"uncertain"`
	Errors      int       `json:"errors"`
	PassRate    float64   `json:"pass_rate"`
}

// ListRuns returns summaries for all stored runs, newest first.
func (s *Store) ListRuns() ([]RunSummary, error) {
	var summaries []RunSummary

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var outcome models.ValidationOutcome
			err := it.Item().Value(func(val []byte) error {
				return s.decode(val, &outcome)
			})
			if err != nil {
				return err
			}

			summaries = append(summaries, RunSummary{
				RunID:       outcome.RunID,
				SpecName:    outcome.SpecName,
				Timestamp:   outcome.Timestamp,
				TotalClaims: outcome.Digest.TotalClaims,
				Supported:   outcome.Digest.Supported,
				Refuted:     outcome.Digest.Refuted,
				Uncertain:   outcome.Digest.Uncertain,
				Errors:      outcome.Digest.Errors,
				PassRate:    outcome.Digest.PassRate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})

	return summaries, nil
}

// PutEvidence persists the evidence collected for a run.
func (s *Store) PutEvidence(runID string, evidence []models.Evidence) error {
	return s.put(evidencePrefix+runID, evidence, 0)
}

// GetEvidence loads the evidence for a run.
func (s *Store) GetEvidence(runID string) ([]models.Evidence, error) {
	var evidence []models.Evidence
	if err := s.get(evidencePrefix+runID, &evidence); err != nil {
		return nil, err
	}
	return evidence, nil
}

// GetCachedTrial retrieves a cached trial result if present.
func (s *Store) GetCachedTrial(key string) (*models.TrialResult, bool) {
	var trial models.TrialResult
	if err := s.get(cachePrefix+key, &trial); err != nil {
		return nil, false
	}
	return &trial, true
}

// PutCachedTrial caches a trial result under a content-derived key.
func (s *Store) PutCachedTrial(key string, trial *models.TrialResult) error {
	return s.put(cachePrefix+key, trial, defaultCacheTTL)
}

func (s *Store) put(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}

	compressed := s.enc.EncodeAll(data, nil)

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), compressed)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *Store) get(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return s.decode(val, out)
		})
	})
}

func (s *Store) decode(compressed []byte, out any) error {
	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("store: decompress: %w", err)
	}
	return json.Unmarshal(data, out)
}

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
