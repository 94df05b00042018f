// Package notification keeps each tenant's in-app notifications in the
// shared store, newest first.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/queue"
	"github.com/iliyamo/billsplit-floor/internal/storage"
)

// Service reads and writes notification slots.
type Service struct {
	store  storage.Store
	prefix string
	log    logrus.FieldLogger
	now    func() time.Time

	mu sync.Mutex
}

// NewService returns a Service storing under "<prefix><tenant>:notifications".
func NewService(store storage.Store, prefix string, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, prefix: prefix, log: log.WithField("component", "notifications"), now: time.Now}
}

func (s *Service) key(tenant string) string {
	return fmt.Sprintf("%s%s:notifications", s.prefix, tenant)
}

func (s *Service) load(ctx context.Context, tenant string) []model.Notification {
	raw, ok, err := s.store.Get(ctx, s.key(tenant))
	if err != nil {
		s.log.WithError(err).WithField("tenant", tenant).Warn("reading notifications failed")
		return []model.Notification{}
	}
	if !ok {
		return []model.Notification{}
	}
	var list []model.Notification
	if err := json.Unmarshal([]byte(raw), &list); err != nil || list == nil {
		return []model.Notification{}
	}
	return list
}

func (s *Service) save(ctx context.Context, tenant string, list []model.Notification) {
	body, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, s.key(tenant), string(body)); err != nil {
		s.log.WithError(err).WithField("tenant", tenant).Warn("saving notifications failed")
	}
}

// List returns the tenant's notifications, newest first.
func (s *Service) List(ctx context.Context, tenant string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, tenant)
}

// Add stores a new unread notification at the head of the list.
func (s *Service) Add(ctx context.Context, tenant string, in model.NotificationInput) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := model.Notification{
		ID:             "notif-" + uuid.NewString(),
		Type:           in.Type,
		TitleKey:       in.TitleKey,
		DescriptionKey: in.DescriptionKey,
		Params:         in.Params,
		CreatedAt:      s.now().UnixMilli(),
	}
	list := append([]model.Notification{n}, s.load(ctx, tenant)...)
	s.save(ctx, tenant, list)
	return n
}

// MarkAsRead flags one notification as read.  It reports whether the id
// was found.
func (s *Service) MarkAsRead(ctx context.Context, tenant, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.load(ctx, tenant)
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			s.save(ctx, tenant, list)
			return true
		}
	}
	return false
}

// MarkAllAsRead flags every notification as read.
func (s *Service) MarkAllAsRead(ctx context.Context, tenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.load(ctx, tenant)
	for i := range list {
		list[i].Read = true
	}
	s.save(ctx, tenant, list)
}

// Clear removes every notification of the tenant.
func (s *Service) Clear(ctx context.Context, tenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(ctx, tenant, []model.Notification{})
}

// UnreadCount counts notifications not yet read.
func (s *Service) UnreadCount(ctx context.Context, tenant string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.load(ctx, tenant) {
		if !item.Read {
			n++
		}
	}
	return n
}

// HandleSentToKitchen turns a kitchen event into an order_received
// notification.  It is the queue consumer's handler.
func (s *Service) HandleSentToKitchen(ctx context.Context, ev queue.OrderSentToKitchenEvent) error {
	s.Add(ctx, ev.TenantID, model.NotificationInput{
		Type:           model.NotificationOrderReceived,
		TitleKey:       "notifications.orderReceived.title",
		DescriptionKey: "notifications.orderReceived.description",
		Params: map[string]any{
			"table": ev.TableID,
			"items": ev.ItemCount,
		},
	})
	return nil
}
