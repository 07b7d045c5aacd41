// Package artifacts persists scenario bundles as compact binary
// snapshots on disk.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/foresight/internal/domain"
)

// Store writes and reads msgpack-encoded scenario bundles. Bundles are
// large (draws x horizon floats per asset), so they live on disk rather
// than in the run database.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Store{
		dir: dir,
		log: log.With().Str("component", "artifacts").Logger(),
	}, nil
}

func (s *Store) path(runID, symbol string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.msgpack", runID, symbol))
}

// Save writes one asset's bundle under the run it belongs to. The file
// is written to a temp name and renamed so readers never see a partial
// snapshot.
func (s *Store) Save(runID string, bundle *domain.ScenarioBundle) error {
	data, err := msgpack.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to encode bundle for %s: %w", bundle.Symbol, err)
	}

	final := s.path(runID, bundle.Symbol)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}

	s.log.Debug().
		Str("symbol", bundle.Symbol).
		Str("run_id", runID).
		Int("bytes", len(data)).
		Msg("Saved scenario snapshot")
	return nil
}

// Load reads one asset's bundle for a run. Returns nil when no snapshot
// exists.
func (s *Store) Load(runID, symbol string) (*domain.ScenarioBundle, error) {
	data, err := os.ReadFile(s.path(runID, symbol))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var bundle domain.ScenarioBundle
	if err := msgpack.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", symbol, err)
	}
	return &bundle, nil
}
