package domain

import "time"

// CredentialTTL is how long after capture the derived credential material
// is still accepted by mp.weixin.qq.com endpoints.
const CredentialTTL = 25 * time.Minute

// CapturedSession is one observed article-page request recorded by the
// capture watcher. Input is untrusted: the store file may be edited or
// corrupted, so consumers must tolerate missing fields.
type CapturedSession struct {
	ID              string `json:"id,omitempty"`
	BizID           string `json:"bizId"`
	PageURL         string `json:"pageUrl"`
	SetCookieHeader string `json:"setCookieHeader"`
	CapturedAt      int64  `json:"capturedAt"` // epoch millis
	DisplayName     string `json:"displayName"`
	AvatarURL       string `json:"avatarUrl"`
}

// ParsedCredential is the validated credential derived from exactly one
// CapturedSession. Valid is computed at extraction time against
// CredentialTTL and must never be cached.
type ParsedCredential struct {
	BizID       string `json:"bizId"`
	Uin         string `json:"uin"`
	Key         string `json:"key"`
	PassTicket  string `json:"passTicket"`
	WapSid2     string `json:"wapSid2"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	CapturedAt  string `json:"capturedAt"`
	Valid       bool   `json:"valid"`
}
