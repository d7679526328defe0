package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// snapshot is the on-disk form of the store: the client-side equivalent of
// the browser's saved chat history. Live in-flight state is deliberately
// not persisted; a restart always comes back idle.
type snapshot struct {
	Version  int        `json:"version"`
	Sessions []*Session `json:"sessions"`
	ActiveID string     `json:"active_id,omitempty"`
}

const snapshotVersion = 1

// saveSnapshotLocked writes the current sessions to the snapshot file.
// Persistence failures are logged, never fatal: losing history must not
// break an in-flight conversation.
func (s *Store) saveSnapshotLocked() {
	if s.snapshotPath == "" {
		return
	}
	snap := snapshot{Version: snapshotVersion, Sessions: s.sessions, ActiveID: s.activeID}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("encode session snapshot")
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
		s.log.Error().Err(err).Msg("create snapshot directory")
		return
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Error().Err(err).Msg("write session snapshot")
		return
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		s.log.Error().Err(err).Msg("replace session snapshot")
	}
}

func (s *Store) restoreSnapshot() {
	if s.snapshotPath == "" {
		return
	}
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Msg("read session snapshot")
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn().Err(err).Msg("session snapshot corrupt, starting fresh")
		return
	}
	s.sessions = snap.Sessions
	s.activeID = ""
	for _, sess := range snap.Sessions {
		if sess.ID == snap.ActiveID {
			s.activeID = snap.ActiveID
			break
		}
	}
	s.log.Info().Int("sessions", len(s.sessions)).Msg("restored session snapshot")
}

// Save forces a snapshot write; called on clean shutdown.
func (s *Store) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSnapshotLocked()
}
