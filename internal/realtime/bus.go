package realtime

import (
	"context"
	"sync"

	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"

	"go.uber.org/zap"
)

type subscriber struct {
	filter  Filter
	handler Handler
}

// Bus 进程内同步事件总线
// Publish 在调用方协程中依次执行匹配的处理函数；Publish 之间串行，
// 同一行的事件按发布顺序送达。
type Bus struct {
	mu     sync.RWMutex
	pubMu  sync.Mutex
	nextID uint64
	tables map[Table]map[uint64]*subscriber
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{tables: make(map[Table]map[uint64]*subscriber)}
}

type busSubscription struct {
	bus   *Bus
	table Table
	id    uint64
	once  sync.Once
}

func (s *busSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if subs, ok := s.bus.tables[s.table]; ok {
			delete(subs, s.id)
			if len(subs) == 0 {
				delete(s.bus.tables, s.table)
			}
		}
	})
}

// Subscribe 订阅某张表的变更
func (b *Bus) Subscribe(table Table, filter Filter, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if _, ok := b.tables[table]; !ok {
		b.tables[table] = make(map[uint64]*subscriber)
	}
	b.tables[table][b.nextID] = &subscriber{filter: filter, handler: handler}
	return &busSubscription{bus: b, table: table, id: b.nextID}, nil
}

// Publish 把事件分发给匹配的订阅者
func (b *Bus) Publish(_ context.Context, event ChangeEvent) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	// 复制快照后释放锁，处理函数内可以安全地订阅/退订
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.tables[event.Table]))
	for _, s := range b.tables[event.Table] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter(event) {
			continue
		}
		deliver(s.handler, event)
	}
	return nil
}

// SubscriberCount 当前订阅数量
func (b *Bus) SubscriberCount(table Table) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tables[table])
}

// deliver 执行处理函数，处理函数 panic 不影响其他订阅者
func deliver(h Handler, event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("变更事件处理函数panic",
				zap.String("table", string(event.Table)),
				zap.String("event_id", event.ID),
				zap.Any("panic", r),
			)
		}
	}()
	h(event)
}
