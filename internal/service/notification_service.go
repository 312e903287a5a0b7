package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/internal/repository"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"

	"go.uber.org/zap"
)

// PayloadPreview direct_message 通知中作为正文的 payload 键，不会写入存储的 payload
const PayloadPreview = "preview"

// BuildNotification 根据触发事件生成通知（纯函数）
// 以后做批量合并时包装这个函数即可，调用方不受影响
func BuildNotification(eventType model.NotificationType, actorID, recipientID string, payload map[string]interface{}) model.Notification {
	n := model.Notification{
		UserID:  recipientID,
		Type:    eventType,
		Payload: map[string]interface{}{},
	}
	for k, v := range payload {
		n.Payload[k] = v
	}

	switch eventType {
	case model.NotificationFriendRequest:
		n.Title = "New Friend Request"
		n.Message = "Someone wants to be your friend!"
		n.Payload["sender_id"] = actorID
	case model.NotificationFriendAccepted:
		n.Title = "Friend Request Accepted!"
		n.Message = "Your friend request was accepted!"
		n.Payload["user_id"] = actorID
	case model.NotificationDirectMessage:
		n.Title = "New Message"
		if preview, ok := n.Payload[PayloadPreview].(string); ok {
			n.Message = preview
		}
		delete(n.Payload, PayloadPreview)
		n.Payload["sender_id"] = actorID
	default:
		if title, ok := n.Payload["title"].(string); ok {
			n.Title = title
			delete(n.Payload, "title")
		}
		if msg, ok := n.Payload["message"].(string); ok {
			n.Message = msg
			delete(n.Payload, "message")
		}
		n.Payload["actor_id"] = actorID
	}
	return n
}

// RequestFinder 按ID查询好友请求
type RequestFinder interface {
	FindRequest(ctx context.Context, id uint) (*model.FriendRequest, error)
}

// NotificationService 通知服务
type NotificationService struct {
	repo     *repository.NotificationRepository
	requests RequestFinder
	feed     realtime.Feed
}

// NewNotificationService 创建NotificationService实例
// requests 为空时跳过好友请求通知的清理
func NewNotificationService(repo *repository.NotificationRepository, requests RequestFinder, feed realtime.Feed) *NotificationService {
	return &NotificationService{repo: repo, requests: requests, feed: feed}
}

// Notify 保存通知并推送
func (s *NotificationService) Notify(ctx context.Context, n *model.Notification) error {
	if err := validateUserIDs(n.UserID); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	publish(ctx, s.feed, realtime.TableNotifications, realtime.EventInsert, n)
	return nil
}

// List 用户通知列表，先清理已失效的好友请求通知
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if err := validateUserIDs(userID); err != nil {
		return nil, err
	}
	s.settleStaleRequests(ctx, userID)

	list, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// UnreadCount 未读通知数量
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if err := validateUserIDs(userID); err != nil {
		return 0, err
	}
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead 标记单条通知已读，重复调用无副作用
func (s *NotificationService) MarkRead(ctx context.Context, userID string, id uint) error {
	if err := validateUserIDs(userID); err != nil {
		return err
	}
	n, changed, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	if changed {
		publish(ctx, s.feed, realtime.TableNotifications, realtime.EventUpdate, n)
	}
	return nil
}

// MarkAllRead 标记全部通知已读，返回本次标记的数量
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if err := validateUserIDs(userID); err != nil {
		return 0, err
	}
	flipped, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	for i := range flipped {
		publish(ctx, s.feed, realtime.TableNotifications, realtime.EventUpdate, &flipped[i])
	}
	return len(flipped), nil
}

// settleStaleRequests 请求已处理或已撤回时，对应的好友请求通知不再需要处理
func (s *NotificationService) settleStaleRequests(ctx context.Context, userID string) {
	if s.requests == nil {
		return
	}
	unread, err := s.repo.ListUnreadByType(ctx, userID, model.NotificationFriendRequest)
	if err != nil {
		logger.Warn("查询好友请求通知失败", zap.String("user_id", userID), zap.Error(err))
		return
	}

	var stale []model.Notification
	for _, n := range unread {
		id, err := strconv.ParseUint(n.PayloadString("request_id"), 10, 64)
		if err != nil {
			stale = append(stale, n)
			continue
		}
		req, err := s.requests.FindRequest(ctx, uint(id))
		switch {
		case errors.Is(err, repository.ErrNotFound):
			stale = append(stale, n)
		case err != nil:
			logger.Warn("查询好友请求失败", zap.Uint64("request_id", id), zap.Error(err))
		case !req.IsPending():
			stale = append(stale, n)
		}
	}
	if len(stale) == 0 {
		return
	}

	if err := s.repo.MarkReadBatch(ctx, stale); err != nil {
		logger.Warn("清理好友请求通知失败", zap.String("user_id", userID), zap.Error(err))
		return
	}
	logger.Info("已清理失效的好友请求通知", zap.String("user_id", userID), zap.Int("count", len(stale)))
	for i := range stale {
		publish(ctx, s.feed, realtime.TableNotifications, realtime.EventUpdate, &stale[i])
	}
}
