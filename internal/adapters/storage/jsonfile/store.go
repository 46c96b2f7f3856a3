package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/wechat-article/wxdown-service/internal/domain"
)

// Store is the persisted capture log: a single JSON array of
// CapturedSession records. All mutations go through one mutex so two
// concurrent read-modify-write cycles cannot lose each other's updates.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// ReadRaw returns the store file bytes. A missing file reads as an empty
// list so first-run extraction does not special-case anything.
func (s *Store) ReadRaw() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []byte("[]"), nil
	}
	return data, err
}

// Append adds one captured session to the end of the log.
func (s *Store) Append(sess domain.CapturedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions, err := s.loadLocked()
	if err != nil {
		return err
	}
	sessions = append(sessions, sess)
	return s.writeLocked(sessions)
}

// RemoveByBiz filters out every record matching biz and overwrites the
// store. Any parse or I/O failure reports false with no write attempted;
// false means "no guaranteed state change", not "biz was absent" —
// removing an absent biz still rewrites the file and reports true.
func (s *Store) RemoveByBiz(biz string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		// nothing persisted yet; an empty log trivially contains no biz
		return s.writeLocked([]domain.CapturedSession{}) == nil
	}
	if err != nil {
		return false
	}
	var sessions []domain.CapturedSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return false
	}
	kept := make([]domain.CapturedSession, 0, len(sessions))
	for _, sess := range sessions {
		if sess.BizID != biz {
			kept = append(kept, sess)
		}
	}
	return s.writeLocked(kept) == nil
}

func (s *Store) loadLocked() ([]domain.CapturedSession, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []domain.CapturedSession{}, nil
	}
	if err != nil {
		return nil, err
	}
	var sessions []domain.CapturedSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) writeLocked(sessions []domain.CapturedSession) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
