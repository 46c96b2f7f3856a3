package usecase_test

import (
	"errors"
	"testing"
	"time"

	"github.com/wechat-article/wxdown-service/internal/adapters/decoders/wxcred"
	"github.com/wechat-article/wxdown-service/internal/adapters/storage/memory"
	"github.com/wechat-article/wxdown-service/internal/domain"
	"github.com/wechat-article/wxdown-service/internal/usecase"
)

func seed(t *testing.T, store *memory.Store, biz string, capturedAt time.Time) {
	t.Helper()
	err := store.Append(domain.CapturedSession{
		BizID:           biz,
		PageURL:         "https://mp.weixin.qq.com/s?__biz=" + biz + "&uin=u&key=k&pass_ticket=p",
		SetCookieHeader: "wap_sid2=sid;",
		CapturedAt:      capturedAt.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestListExtractsFromLog(t *testing.T) {
	store := memory.New()
	svc := usecase.NewCredentialService(store, wxcred.NewParser(""))
	now := time.Now()
	seed(t, store, "bizA", now.Add(-time.Minute))
	seed(t, store, "bizB", now)

	creds := svc.List(now)
	if len(creds) != 2 {
		t.Fatalf("want 2 credentials, got %d", len(creds))
	}
	if creds[0].BizID != "bizB" {
		t.Fatalf("newest first, got %+v", creds)
	}
	if !creds[0].Valid || !creds[1].Valid {
		t.Fatalf("fresh captures must be valid: %+v", creds)
	}
}

func TestListDegradesOnReadFailure(t *testing.T) {
	svc := usecase.NewCredentialService(failingLog{}, wxcred.NewParser(""))
	creds := svc.List(time.Now())
	if creds == nil || len(creds) != 0 {
		t.Fatalf("read failure must yield empty list, got %v", creds)
	}
}

func TestRemoveDropsAllCapturesForBiz(t *testing.T) {
	store := memory.New()
	svc := usecase.NewCredentialService(store, wxcred.NewParser(""))
	now := time.Now()
	seed(t, store, "bizA", now)
	seed(t, store, "bizA", now)
	seed(t, store, "bizB", now)

	if !svc.Remove("bizA") {
		t.Fatal("remove must succeed on a healthy store")
	}
	if store.Len() != 1 {
		t.Fatalf("want 1 session left, got %d", store.Len())
	}
	creds := svc.List(now)
	if len(creds) != 1 || creds[0].BizID != "bizB" {
		t.Fatalf("want only bizB, got %+v", creds)
	}
}

type failingLog struct{}

func (failingLog) ReadRaw() ([]byte, error)            { return nil, errors.New("disk gone") }
func (failingLog) Append(domain.CapturedSession) error { return errors.New("disk gone") }
func (failingLog) RemoveByBiz(string) bool             { return false }
