// Package state implements the durable progress store (spec §4.4,
// component C4): a single flat JSON record at a fixed relative path, read on
// start and rewritten atomically after every successful row emission.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scottluskcis/repo-stats-go/internal/logging"
	"github.com/scottluskcis/repo-stats-go/internal/model"
)

// DefaultPath is the conventional state file location (spec §6).
const DefaultPath = "last_known_state.json"

// Store guards the state file with a single-writer lock shared with any
// read-only collaborator (the status server, C8) so a GET never observes a
// torn write.
type Store struct {
	path string
	log  logging.Logger
	mu   sync.RWMutex
}

// New builds a Store rooted at path (use DefaultPath unless overridden).
func New(path string, log logging.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Store{path: path, log: log}
}

// Update fields, applied by Apply per spec §4.4's contract.
type Update struct {
	RepoName             string
	NewCursor            *string
	LastSuccessfulCursor *string
	// OutputFileName binds the run to a sink path (spec §3) so a resumed
	// run reopens the same file instead of starting a new one. Set once,
	// on first use.
	OutputFileName string
}

// Load returns (state, resume) per spec §4.4:
//   - file absent: fresh default state, resume=false.
//   - file present, completed_successfully=true: fresh default state,
//     resume=false (I3 — a completed run is a no-op unless state is
//     cleared).
//   - file present, not completed, caller requested resume: loaded state,
//     resume=true.
//   - file present, not completed, caller did not request resume: fresh
//     default state, resume=false (an explicit fresh start).
func (s *Store) Load(wantResume bool) (*model.ProcessedState, bool, error) {
	s.mu.RLock()
	raw, err := os.ReadFile(s.path)
	s.mu.RUnlock()

	if err != nil {
		if os.IsNotExist(err) {
			return model.NewProcessedState(), false, nil
		}
		s.log.Error("state.load.error", "path", s.path, "error", err)
		return model.NewProcessedState(), false, nil
	}

	var loaded model.ProcessedState
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.log.Error("state.load.malformed", "path", s.path, "error", err)
		return model.NewProcessedState(), false, nil
	}
	if loaded.ProcessedRepos == nil {
		s.log.Warn("state.load.processed_repos.coerced", "path", s.path)
		loaded.ProcessedRepos = []string{}
	}
	loaded.EnsureIndex()

	if loaded.CompletedSuccessfully {
		s.log.Info("state.load.already_completed", "path", s.path)
		return model.NewProcessedState(), false, nil
	}

	if !wantResume {
		return model.NewProcessedState(), false, nil
	}

	return &loaded, true, nil
}

// Apply mutates st per spec §4.4 and persists the whole record. Persistence
// failures are logged but do not fail the call — the in-memory state
// remains authoritative for the run.
func (s *Store) Apply(st *model.ProcessedState, u Update) {
	if u.NewCursor != nil && *u.NewCursor != st.CurrentCursor {
		st.CurrentCursor = *u.NewCursor
	}
	if u.LastSuccessfulCursor != nil {
		st.LastSuccessfulCursor = *u.LastSuccessfulCursor
	}
	if u.RepoName != "" {
		st.MarkProcessed(u.RepoName)
		st.LastProcessedRepo = u.RepoName
	}
	if u.OutputFileName != "" {
		st.OutputFileName = u.OutputFileName
	}
	st.LastUpdated = time.Now().UTC()

	if err := s.persist(st); err != nil {
		s.log.Error("state.persist.error", "path", s.path, "error", err)
	}
}

// persist writes st atomically: write to a temp file in the same directory,
// then rename over the target.
func (s *Store) persist(st *model.ProcessedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, ".last_known_state-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Snapshot returns a read-only copy of the state currently on disk, for the
// status server (C8).
func (s *Store) Snapshot() (model.ProcessedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return model.ProcessedState{}, err
	}
	var st model.ProcessedState
	if err := json.Unmarshal(raw, &st); err != nil {
		return model.ProcessedState{}, err
	}
	return st, nil
}
