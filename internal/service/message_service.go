package service

import (
	"context"
	"fmt"

	"github.com/mthirumalai2905/clubly-community-hub/config"
	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/internal/repository"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"

	"go.uber.org/zap"
)

// FriendshipChecker 判断两个用户是否为好友
type FriendshipChecker interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// MessageService 私信服务：发送、会话列表、会话详情与已读
type MessageService struct {
	repo     *repository.MessageRepository
	friends  FriendshipChecker
	notifier Notifier
	feed     realtime.Feed
	cfg      config.MessagingConfig
}

// NewMessageService 创建MessageService实例
func NewMessageService(repo *repository.MessageRepository, friends FriendshipChecker, notifier Notifier, feed realtime.Feed, cfg config.MessagingConfig) *MessageService {
	return &MessageService{
		repo:     repo,
		friends:  friends,
		notifier: notifier,
		feed:     feed,
		cfg:      cfg,
	}
}

// SendMessage 发送私信
// 消息落库后才发送通知与推送，二者失败不影响发送结果
func (s *MessageService) SendMessage(ctx context.Context, senderID, receiverID, content string) (*model.DirectMessage, error) {
	if err := validateUserIDs(senderID, receiverID); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}
	content, err := normalizeContent(content, s.cfg.MaxContentLength)
	if err != nil {
		return nil, err
	}

	if s.cfg.RequireFriendship && s.friends != nil {
		ok, err := s.friends.AreFriends(ctx, senderID, receiverID)
		if err != nil {
			return nil, fmt.Errorf("check friendship: %w", err)
		}
		if !ok {
			return nil, ErrNotFriends
		}
	}

	msg := &model.DirectMessage{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	logger.Debug("私信已发送",
		zap.Uint("message_id", msg.ID),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", receiverID),
	)

	notify(ctx, s.notifier, BuildNotification(model.NotificationDirectMessage, senderID, receiverID, map[string]interface{}{
		PayloadPreview: Preview(content, s.cfg.PreviewLength),
	}))
	publish(ctx, s.feed, realtime.TableDirectMessages, realtime.EventInsert, msg)
	return msg, nil
}

// ListConversations 会话列表与未读总数
func (s *MessageService) ListConversations(ctx context.Context, viewerID string) ([]ConversationSummary, error) {
	msgs, err := s.ListMessages(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return Summarize(viewerID, msgs), nil
}

// ListMessages 与 viewer 有关的全部消息
func (s *MessageService) ListMessages(ctx context.Context, viewerID string) ([]model.DirectMessage, error) {
	if err := validateUserIDs(viewerID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// TotalUnread 全部会话未读数之和
func (s *MessageService) TotalUnread(ctx context.Context, viewerID string) (int64, error) {
	summaries, err := s.ListConversations(ctx, viewerID)
	if err != nil {
		return 0, err
	}
	return TotalUnread(summaries), nil
}

// GetThread 打开会话：标记对端发来的未读消息为已读，并返回完整会话（升序）
func (s *MessageService) GetThread(ctx context.Context, viewerID, partnerID string) ([]model.DirectMessage, error) {
	if err := validateUserIDs(viewerID, partnerID); err != nil {
		return nil, err
	}
	messages, flipped, err := s.repo.ReadThread(ctx, viewerID, partnerID)
	if err != nil {
		return nil, fmt.Errorf("read thread: %w", err)
	}
	s.publishRead(ctx, flipped)
	return messages, nil
}

// MarkThreadRead 只标记已读，返回本次标记的数量
func (s *MessageService) MarkThreadRead(ctx context.Context, viewerID, partnerID string) (int64, error) {
	if err := validateUserIDs(viewerID, partnerID); err != nil {
		return 0, err
	}
	flipped, err := s.repo.MarkConversationAsRead(ctx, viewerID, partnerID)
	if err != nil {
		return 0, fmt.Errorf("mark thread read: %w", err)
	}
	s.publishRead(ctx, flipped)
	return int64(len(flipped)), nil
}

func (s *MessageService) publishRead(ctx context.Context, flipped []model.DirectMessage) {
	for i := range flipped {
		publish(ctx, s.feed, realtime.TableDirectMessages, realtime.EventUpdate, &flipped[i])
	}
}
