package repository

import (
	"context"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 私信数据仓储
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建消息
func (r *MessageRepository) Create(ctx context.Context, message *model.DirectMessage) error {
	return r.db.WithContext(context.WithoutCancel(ctx)).Create(message).Error
}

// ListForUser 用户发送或接收的全部私信，按 (created_at, id) 升序
func (r *MessageRepository) ListForUser(ctx context.Context, userID string) ([]model.DirectMessage, error) {
	var messages []model.DirectMessage
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// ReadThread 在一个事务中把 partner 发给 viewer 的未读消息标记为已读并返回完整会话
// flipped 为本次由未读变为已读的消息
func (r *MessageRepository) ReadThread(ctx context.Context, viewerID, partnerID string) (messages, flipped []model.DirectMessage, err error) {
	err = r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var err error
		flipped, err = markRead(tx, viewerID, partnerID)
		if err != nil {
			return err
		}
		messages, err = thread(tx, viewerID, partnerID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, flipped, nil
}

// MarkConversationAsRead 标记整个对话为已读，返回本次翻转的消息
func (r *MessageRepository) MarkConversationAsRead(ctx context.Context, viewerID, partnerID string) ([]model.DirectMessage, error) {
	var flipped []model.DirectMessage
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var err error
		flipped, err = markRead(tx, viewerID, partnerID)
		return err
	})
	return flipped, err
}

func thread(tx *gorm.DB, a, b string) ([]model.DirectMessage, error) {
	var messages []model.DirectMessage
	err := tx.Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		a, b, b, a,
	).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// markRead 只翻转 partner -> viewer 方向的未读消息，返回本次实际被更新的行
// 逐行条件更新：并发标记时同一条消息只会被其中一方计入
func markRead(tx *gorm.DB, viewerID, partnerID string) ([]model.DirectMessage, error) {
	var unread []model.DirectMessage
	err := tx.Where("receiver_id = ? AND sender_id = ? AND is_read = ?", viewerID, partnerID, false).
		Order("id").
		Find(&unread).Error
	if err != nil || len(unread) == 0 {
		return nil, err
	}

	flipped := make([]model.DirectMessage, 0, len(unread))
	for _, m := range unread {
		res := tx.Model(&model.DirectMessage{}).
			Where("id = ? AND is_read = ?", m.ID, false).
			Update("is_read", true)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			m.IsRead = true
			flipped = append(flipped, m)
		}
	}
	return flipped, nil
}
