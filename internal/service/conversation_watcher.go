package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"

	"go.uber.org/zap"
)

// MessageLister 拉取与用户有关的全部消息
type MessageLister interface {
	ListMessages(ctx context.Context, viewerID string) ([]model.DirectMessage, error)
}

// ConversationWatcher 已连接用户的会话镜像
// 先订阅再全量拉取，之后按推送的变更事件增量更新；按消息ID合并，已读标记只会从 false 变为 true，
// 同一事件重复到达不会重复计数。断线重连后调用 Resync 重新拉取。
type ConversationWatcher struct {
	viewerID string
	lister   MessageLister
	feed     realtime.Feed

	mu       sync.Mutex
	messages map[uint]model.DirectMessage
	sub      realtime.Subscription
	onChange func([]ConversationSummary)
}

// NewConversationWatcher 创建会话镜像，调用 Start 后开始工作
func NewConversationWatcher(lister MessageLister, feed realtime.Feed, viewerID string) *ConversationWatcher {
	return &ConversationWatcher{
		viewerID: viewerID,
		lister:   lister,
		feed:     feed,
		messages: make(map[uint]model.DirectMessage),
	}
}

// OnChange 设置会话列表变化时的回调
func (w *ConversationWatcher) OnChange(fn func([]ConversationSummary)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Start 订阅变更并做首次拉取
func (w *ConversationWatcher) Start(ctx context.Context) error {
	filter := realtime.AnyOf(
		realtime.Eq("sender_id", w.viewerID),
		realtime.Eq("receiver_id", w.viewerID),
	)
	sub, err := w.feed.Subscribe(realtime.TableDirectMessages, filter, realtime.Dedup(w.apply, 0))
	if err != nil {
		return fmt.Errorf("subscribe direct messages: %w", err)
	}

	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()

	if err := w.Resync(ctx); err != nil {
		sub.Unsubscribe()
		return err
	}
	return nil
}

// Resync 全量拉取并合并到镜像中
func (w *ConversationWatcher) Resync(ctx context.Context) error {
	msgs, err := w.lister.ListMessages(ctx, w.viewerID)
	if err != nil {
		return fmt.Errorf("resync conversations: %w", err)
	}

	w.mu.Lock()
	for _, m := range msgs {
		w.merge(m)
	}
	summaries, cb := w.summariesLocked(), w.onChange
	w.mu.Unlock()

	if cb != nil {
		cb(summaries)
	}
	return nil
}

// Summaries 当前会话列表
func (w *ConversationWatcher) Summaries() []ConversationSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summariesLocked()
}

// TotalUnread 当前未读总数
func (w *ConversationWatcher) TotalUnread() int64 {
	return TotalUnread(w.Summaries())
}

// Close 取消订阅
func (w *ConversationWatcher) Close() {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (w *ConversationWatcher) apply(event realtime.ChangeEvent) {
	// 私信只追加，不处理删除
	if event.Type == realtime.EventDelete {
		return
	}
	var m model.DirectMessage
	if err := event.Decode(&m); err != nil {
		logger.Warn("解析私信变更事件失败", zap.String("event_id", event.ID), zap.Error(err))
		return
	}
	if m.ID == 0 || (m.SenderID != w.viewerID && m.ReceiverID != w.viewerID) {
		return
	}

	w.mu.Lock()
	w.merge(m)
	summaries, cb := w.summariesLocked(), w.onChange
	w.mu.Unlock()

	if cb != nil {
		cb(summaries)
	}
}

func (w *ConversationWatcher) merge(m model.DirectMessage) {
	if existing, ok := w.messages[m.ID]; ok {
		m.IsRead = existing.IsRead || m.IsRead
	}
	w.messages[m.ID] = m
}

func (w *ConversationWatcher) summariesLocked() []ConversationSummary {
	msgs := make([]model.DirectMessage, 0, len(w.messages))
	for _, m := range w.messages {
		msgs = append(msgs, m)
	}
	return Summarize(w.viewerID, msgs)
}
