package redact

import (
	"strings"
	"testing"
)

func TestURLMasksCredentialParams(t *testing.T) {
	in := "https://mp.weixin.qq.com/s?__biz=abc&key=secret&pass_ticket=tkt&idx=1"
	out := URL(in)
	if out == in {
		t.Fatalf("url not redacted: %s", out)
	}
	for _, leak := range []string{"secret", "tkt"} {
		if strings.Contains(out, leak) {
			t.Fatalf("credential %q leaked: %s", leak, out)
		}
	}
	if !strings.Contains(out, "__biz=abc") || !strings.Contains(out, "idx=1") {
		t.Fatalf("non-sensitive params must survive: %s", out)
	}
}

func TestURLLeavesCleanURLsAlone(t *testing.T) {
	in := "https://mp.weixin.qq.com/s?__biz=abc&idx=1"
	if out := URL(in); out != in {
		t.Fatalf("clean url rewritten: %s", out)
	}
}

func TestCookieMasksValues(t *testing.T) {
	in := "wap_sid2=CLONGVALUE;Path=/;pass_ticket=abc;other=ok"
	out := Cookie(in)
	if strings.Contains(out, "CLONGVALUE") || strings.Contains(out, "pass_ticket=abc") {
		t.Fatalf("cookie value leaked: %s", out)
	}
	if !strings.Contains(out, "wap_sid2=***") || !strings.Contains(out, "other=ok") {
		t.Fatalf("unexpected redaction: %s", out)
	}
}
