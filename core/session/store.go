package session

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/camkit/arlo/pkg/logger"
)

// formatVersion is the current on-disk container version.
const formatVersion = "2"

// Store defines the persistence contract for login sessions. Implementations
// must be safe for concurrent use.
type Store interface {
	// Load returns the stored session for account, or ok=false when no
	// complete session is available.
	Load(account string) (Session, bool)
	// Save stores the session for account, rewriting the whole container.
	Save(account string, sess Session) error
}

// FileStore keeps the versioned session container in a single JSON file.
// The zero value is not usable; construct with NewFileStore.
type FileStore struct {
	path string
	log  *slog.Logger

	mu        sync.Mutex
	container map[string]json.RawMessage
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger used for load/save diagnostics.
func WithLogger(log *slog.Logger) FileStoreOption {
	return func(s *FileStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewFileStore creates a session store backed by the JSON file at path.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		path: path,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the container from disk and returns the session stored for
// account. A missing, corrupt or partial entry yields ok=false and a fresh
// container; the caller is expected to log in again.
func (s *FileStore) Load(account string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Debug("session file not read", logger.Component("session"), logger.Error(err))
		s.reset()
		return Session{}, false
	}

	var container map[string]json.RawMessage
	if err := json.Unmarshal(raw, &container); err != nil {
		s.log.Debug("session file corrupt", logger.Component("session"), logger.Error(err))
		s.reset()
		return Session{}, false
	}

	var entry json.RawMessage
	if version(container) == formatVersion {
		s.container = container
		entry = container[account]
	} else {
		// Legacy single-account file: the whole document is the session.
		// Re-key it under the loading account and persist the upgrade.
		s.container = map[string]json.RawMessage{
			"version": json.RawMessage(`"` + formatVersion + `"`),
			account:   raw,
		}
		entry = raw
		if err := s.write(); err != nil {
			s.log.Warn("session migration not written", logger.Component("session"), logger.Error(err))
		}
	}

	if entry == nil {
		return Session{}, false
	}

	var sess Session
	if err := json.Unmarshal(entry, &sess); err != nil {
		s.log.Debug("session entry corrupt", logger.Component("session"), logger.Error(err))
		return Session{}, false
	}
	if !sess.IsComplete() {
		return Session{}, false
	}
	return sess, true
}

// Save stores sess under account and rewrites the whole container.
// Partial sessions are rejected; a session is persisted whole or not at all.
func (s *FileStore) Save(account string, sess Session) error {
	if !sess.IsComplete() {
		return ErrIncompleteSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.container == nil {
		s.reset()
	}

	entry, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	s.container[account] = entry

	if err := s.write(); err != nil {
		return fmt.Errorf("session: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) reset() {
	s.container = map[string]json.RawMessage{
		"version": json.RawMessage(`"` + formatVersion + `"`),
	}
}

func (s *FileStore) write() error {
	raw, err := json.Marshal(s.container)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

func version(container map[string]json.RawMessage) string {
	raw, ok := container["version"]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}
