package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/wechat-article/wxdown-service/internal/domain"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "data", "sessions.json"))
}

func persisted(t *testing.T, s *Store) []domain.CapturedSession {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var out []domain.CapturedSession
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal store: %v", err)
	}
	return out
}

func TestReadRawMissingFileIsEmptyList(t *testing.T) {
	s := tempStore(t)
	raw, err := s.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("want empty list, got %q", raw)
	}
}

func TestAppendCreatesParentDirAndPersists(t *testing.T) {
	s := tempStore(t)
	if err := s.Append(domain.CapturedSession{BizID: "a", CapturedAt: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(domain.CapturedSession{BizID: "b", CapturedAt: 2}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got := persisted(t, s)
	if len(got) != 2 || got[0].BizID != "a" || got[1].BizID != "b" {
		t.Fatalf("unexpected contents: %+v", got)
	}
}

func TestRemoveByBizFiltersMatching(t *testing.T) {
	s := tempStore(t)
	for _, biz := range []string{"a", "b", "a"} {
		if err := s.Append(domain.CapturedSession{BizID: biz}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if !s.RemoveByBiz("a") {
		t.Fatalf("RemoveByBiz returned false")
	}
	got := persisted(t, s)
	if len(got) != 1 || got[0].BizID != "b" {
		t.Fatalf("want [b], got %+v", got)
	}
}

func TestRemoveByBizAbsentTargetKeepsListAndReportsTrue(t *testing.T) {
	s := tempStore(t)
	_ = s.Append(domain.CapturedSession{BizID: "a"})
	_ = s.Append(domain.CapturedSession{BizID: "b"})
	if !s.RemoveByBiz("z") {
		t.Fatalf("RemoveByBiz(absent) must report true")
	}
	got := persisted(t, s)
	if len(got) != 2 || got[0].BizID != "a" || got[1].BizID != "b" {
		t.Fatalf("list must be unchanged, got %+v", got)
	}
}

func TestRemoveByBizMalformedStoreReportsFalseWithoutWrite(t *testing.T) {
	s := tempStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(s.Path(), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if s.RemoveByBiz("a") {
		t.Fatalf("RemoveByBiz on malformed store must report false")
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "{broken" {
		t.Fatalf("malformed store must not be rewritten, got %q", data)
	}
}

func TestRemoveByBizOnMissingFileWritesEmptyList(t *testing.T) {
	s := tempStore(t)
	if !s.RemoveByBiz("a") {
		t.Fatalf("RemoveByBiz on missing store must report true")
	}
	if got := persisted(t, s); len(got) != 0 {
		t.Fatalf("want empty list, got %+v", got)
	}
}
