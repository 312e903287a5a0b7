package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/mthirumalai2905/clubly-community-hub/config"
	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/internal/repository"
	"github.com/mthirumalai2905/clubly-community-hub/internal/testutil"

	"gorm.io/gorm"
)

type harness struct {
	db            *gorm.DB
	bus           *realtime.Bus
	relRepo       *repository.RelationshipRepository
	msgRepo       *repository.MessageRepository
	notifRepo     *repository.NotificationRepository
	relationships *RelationshipService
	messages      *MessageService
	notifications *NotificationService
}

func defaultMessaging() config.MessagingConfig {
	return config.MessagingConfig{PreviewLength: 50, MaxContentLength: 4000}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, defaultMessaging(), nil)
}

// newHarnessWith notifier 为空时使用真实的通知服务
func newHarnessWith(t *testing.T, msgCfg config.MessagingConfig, notifier Notifier) *harness {
	t.Helper()

	h := &harness{db: testutil.NewDB(t), bus: realtime.NewBus()}
	h.relRepo = repository.NewRelationshipRepository(h.db)
	h.msgRepo = repository.NewMessageRepository(h.db)
	h.notifRepo = repository.NewNotificationRepository(h.db)
	h.notifications = NewNotificationService(h.notifRepo, h.relRepo, h.bus)
	if notifier == nil {
		notifier = h.notifications
	}
	h.relationships = NewRelationshipService(h.relRepo, notifier, h.bus, nil)
	h.messages = NewMessageService(h.msgRepo, h.relRepo, notifier, h.bus, msgCfg)
	return h
}

// recorder 收集某张表的变更事件
type recorder struct {
	mu     sync.Mutex
	events []realtime.ChangeEvent
}

func (h *harness) record(t *testing.T, table realtime.Table) *recorder {
	t.Helper()
	r := &recorder{}
	sub, err := h.bus.Subscribe(table, nil, func(e realtime.ChangeEvent) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sub.Unsubscribe)
	return r
}

func (r *recorder) all() []realtime.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.ChangeEvent(nil), r.events...)
}

func (r *recorder) count(typ realtime.EventType) int {
	n := 0
	for _, e := range r.all() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// failingNotifier 模拟通知写入失败
type failingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (f *failingNotifier) Notify(context.Context, *model.Notification) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("notification store unavailable")
}

func (h *harness) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	req, err := h.relationships.SendRequest(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.relationships.AcceptRequest(ctx, b, req.ID); err != nil {
		t.Fatal(err)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
