// Package memory holds an in-memory capture log, useful for tests and
// for running the service without touching disk.
package memory

import (
	"encoding/json"
	"sync"

	"github.com/wechat-article/wxdown-service/internal/domain"
)

// Store keeps captured sessions in insertion order. It implements the
// same contract as the jsonfile store, including the degrade-to-empty
// and no-partial-write rules.
type Store struct {
	mu       sync.Mutex
	sessions []domain.CapturedSession
}

func New() *Store { return &Store{} }

func (s *Store) ReadRaw() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(s.sessions)
}

func (s *Store) Append(sess domain.CapturedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sess)
	return nil
}

func (s *Store) RemoveByBiz(biz string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.BizID != biz {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	return true
}

// Len reports the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
