package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/lexcodex/transmute/session"
)

// SessionStore persists translation sessions between runs.
type SessionStore interface {
	Save(ctx context.Context, s *session.TranslationSession) error
	Load(ctx context.Context, id string) (*session.TranslationSession, bool, error)
	List(ctx context.Context) ([]*session.TranslationSession, error)
	Delete(ctx context.Context, id string) error
}

// FileSessionStore stores sessions as one JSON file per session under a
// directory. Node parent links are unexported and rebuilt on load.
type FileSessionStore struct {
	root string
	mu   sync.RWMutex
}

// NewFileSessionStore creates a store under the provided directory.
func NewFileSessionStore(root string) (*FileSessionStore, error) {
	if root == "" {
		return nil, errors.New("session store root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileSessionStore{root: root}, nil
}

func (s *FileSessionStore) sessionPath(id string) string {
	return filepath.Join(s.root, id+".json")
}

// Save writes the session to disk, replacing any previous snapshot of it.
func (s *FileSessionStore) Save(_ context.Context, sess *session.TranslationSession) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session with id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.sessionPath(sess.ID), data, 0o644)
}

// Load reads one session; the second return reports whether it existed.
func (s *FileSessionStore) Load(_ context.Context, id string) (*session.TranslationSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	sess, err := decodeSession(data)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// List reads every stored session. Unreadable files are skipped rather than
// failing the whole listing.
func (s *FileSessionStore) List(_ context.Context) ([]*session.TranslationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var sessions []*session.TranslationSession
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue
		}
		sess, err := decodeSession(data)
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Delete removes one session; deleting a missing id is not an error.
func (s *FileSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.sessionPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func decodeSession(data []byte) (*session.TranslationSession, error) {
	var sess session.TranslationSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	sess.SourceAST.Rebind()
	sess.TargetAST.Rebind()
	for _, step := range sess.Steps {
		step.SourceNode.Rebind()
		step.TargetNode.Rebind()
	}
	for i := range sess.History {
		sess.History[i].TargetAST.Rebind()
	}
	return &sess, nil
}
