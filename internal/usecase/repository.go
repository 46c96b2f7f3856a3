package usecase

import (
	"time"

	"github.com/wechat-article/wxdown-service/internal/domain"
)

// CaptureLogRepository is the persisted capture log. The file-backed
// implementation lives in adapters/storage/jsonfile.
type CaptureLogRepository interface {
	ReadRaw() ([]byte, error)
	Append(sess domain.CapturedSession) error
	RemoveByBiz(biz string) bool
}

// Extractor derives ranked credentials from the raw capture log.
type Extractor interface {
	Parse(raw []byte, now time.Time) []domain.ParsedCredential
}
