package redact

import (
	"net/url"
	"regexp"
)

// Query parameters and cookie names whose values must never reach a log
// line. These cover the WeChat credential material handled by the
// capture pipeline.
var sensitiveParams = []string{"key", "pass_ticket", "uin", "devicetype", "wxtoken"}

var cookieValRe = regexp.MustCompile(`(wap_sid2|pass_ticket|key)=([^;]+)`)

// URL masks credential-bearing query parameters in raw. Anything that
// does not parse as a URL is returned untouched.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	changed := false
	for _, p := range sensitiveParams {
		if q.Has(p) {
			q.Set(p, "***")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Cookie masks known credential cookie values in a Cookie or Set-Cookie
// header value, keeping names visible for debugging.
func Cookie(header string) string {
	return cookieValRe.ReplaceAllString(header, "$1=***")
}
