package wxcred

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"time"

	"github.com/wechat-article/wxdown-service/internal/domain"
)

// DefaultAvatarProxy fronts avatar images so the UI never issues
// cross-origin requests against the WeChat CDN directly.
const DefaultAvatarProxy = "https://images.weserv.nl/"

const timeLayout = "2006-01-02 15:04:05"

// wap_sid2 is the session cookie mp.weixin.qq.com sets on logged-in
// article visits. The trailing semicolon is required: a bare trailing
// token is ambiguous and the upstream always emits one.
var wapSid2Re = regexp.MustCompile(`wap_sid2=([^;]+);`)

type Parser struct {
	avatarProxyBase string
}

func NewParser(avatarProxyBase string) *Parser {
	if avatarProxyBase == "" {
		avatarProxyBase = DefaultAvatarProxy
	}
	return &Parser{avatarProxyBase: avatarProxyBase}
}

// Parse turns the raw capture-log JSON into ranked credentials, most
// recent first. Malformed input degrades to an empty list; a session
// missing any of __biz, uin, key, pass_ticket or the wap_sid2 cookie is
// dropped rather than emitted as invalid.
func (p *Parser) Parse(raw []byte, now time.Time) []domain.ParsedCredential {
	var sessions []domain.CapturedSession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return []domain.ParsedCredential{}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CapturedAt > sessions[j].CapturedAt
	})
	out := make([]domain.ParsedCredential, 0, len(sessions))
	for _, s := range sessions {
		if c, ok := p.parseOne(s, now); ok {
			out = append(out, c)
		}
	}
	return out
}

func (p *Parser) parseOne(s domain.CapturedSession, now time.Time) (domain.ParsedCredential, bool) {
	u, err := url.Parse(s.PageURL)
	if err != nil {
		return domain.ParsedCredential{}, false
	}
	q := u.Query()
	biz := q.Get("__biz")
	uin := q.Get("uin")
	key := q.Get("key")
	ticket := q.Get("pass_ticket")
	var sid string
	if m := wapSid2Re.FindStringSubmatch(s.SetCookieHeader); m != nil {
		sid = m[1]
	}
	if biz == "" || uin == "" || key == "" || ticket == "" || sid == "" {
		return domain.ParsedCredential{}, false
	}
	capturedAt := time.UnixMilli(s.CapturedAt)
	avatar := s.AvatarURL
	if avatar != "" {
		avatar = p.avatarProxyBase + "?url=" + url.QueryEscape(avatar)
	}
	return domain.ParsedCredential{
		BizID:       biz,
		Uin:         uin,
		Key:         key,
		PassTicket:  ticket,
		WapSid2:     sid,
		DisplayName: s.DisplayName,
		AvatarURL:   avatar,
		CapturedAt:  capturedAt.Format(timeLayout),
		Valid:       now.Before(capturedAt.Add(domain.CredentialTTL)),
	}, true
}
