package usecase

import (
	"time"

	"github.com/wechat-article/wxdown-service/internal/domain"
)

// CredentialService orchestrates the capture log and the extraction
// pipeline for the API and CLI surfaces.
type CredentialService struct {
	log       CaptureLogRepository
	extractor Extractor
}

func NewCredentialService(log CaptureLogRepository, ex Extractor) *CredentialService {
	return &CredentialService{log: log, extractor: ex}
}

// List extracts the current candidate credentials from the persisted
// capture log. A log that cannot be read degrades to an empty list; a
// malformed log is the extractor's problem and also yields empty.
func (s *CredentialService) List(now time.Time) []domain.ParsedCredential {
	raw, err := s.log.ReadRaw()
	if err != nil {
		return []domain.ParsedCredential{}
	}
	return s.extractor.Parse(raw, now)
}

// Remove drops every capture for biz. False means the store was not
// updated; callers must not assume any state change.
func (s *CredentialService) Remove(biz string) bool {
	return s.log.RemoveByBiz(biz)
}
