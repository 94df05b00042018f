package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/queue"
	"github.com/iliyamo/billsplit-floor/internal/storage"
)

func newTestService() (*Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	s := NewService(store, "billsplit:", nil)
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return s, store
}

func TestAddListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()

	first := s.Add(ctx, "acme", model.NotificationInput{Type: model.NotificationOrderReceived, TitleKey: "a"})
	second := s.Add(ctx, "acme", model.NotificationInput{Type: model.NotificationOrderReady, TitleKey: "b"})

	if !strings.HasPrefix(first.ID, "notif-") || first.ID == second.ID {
		t.Fatalf("ids %q %q", first.ID, second.ID)
	}
	if first.Read || first.CreatedAt != 1_700_000_000_000 {
		t.Fatalf("unexpected notification %+v", first)
	}
	list := s.List(ctx, "acme")
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("list order = %+v", list)
	}
	if got := s.List(ctx, "other"); len(got) != 0 {
		t.Fatalf("other tenant sees %d notifications", len(got))
	}
}

func TestReadFlags(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	a := s.Add(ctx, "acme", model.NotificationInput{TitleKey: "a"})
	s.Add(ctx, "acme", model.NotificationInput{TitleKey: "b"})

	if got := s.UnreadCount(ctx, "acme"); got != 2 {
		t.Fatalf("unread = %d", got)
	}
	if !s.MarkAsRead(ctx, "acme", a.ID) {
		t.Fatal("MarkAsRead did not find the notification")
	}
	if s.MarkAsRead(ctx, "acme", "missing") {
		t.Fatal("MarkAsRead found a missing id")
	}
	if got := s.UnreadCount(ctx, "acme"); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}
	s.MarkAllAsRead(ctx, "acme")
	if got := s.UnreadCount(ctx, "acme"); got != 0 {
		t.Fatalf("unread = %d, want 0", got)
	}
	s.Clear(ctx, "acme")
	if got := s.List(ctx, "acme"); len(got) != 0 {
		t.Fatalf("list after clear = %+v", got)
	}
}

func TestCorruptSlotLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService()
	_ = store.Set(ctx, "billsplit:acme:notifications", "{broken")
	if got := s.List(ctx, "acme"); len(got) != 0 {
		t.Fatalf("corrupt slot produced %+v", got)
	}
}

func TestHandleSentToKitchen(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	err := s.HandleSentToKitchen(ctx, queue.OrderSentToKitchenEvent{TenantID: "acme", TableID: "t4", ItemCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	list := s.List(ctx, "acme")
	if len(list) != 1 || list[0].Type != model.NotificationOrderReceived || list[0].Params["table"] != "t4" {
		t.Fatalf("notifications = %+v", list)
	}
}
