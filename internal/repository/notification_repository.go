package repository

import (
	"context"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"

	"gorm.io/gorm"
)

// NotificationRepository 通知数据仓储
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建NotificationRepository实例
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create 创建通知
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(context.WithoutCancel(ctx)).Create(n).Error
}

// ListByUser 用户的通知，新的在前；limit <= 0 表示不限制
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	var list []model.Notification
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

// ListUnreadByType 某类型的未读通知
func (r *NotificationRepository) ListUnreadByType(ctx context.Context, userID string, typ model.NotificationType) ([]model.Notification, error) {
	var list []model.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND is_read = ?", userID, typ, false).
		Find(&list).Error
	return list, err
}

// UnreadCount 未读通知数量
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead 标记单条通知已读
// 通知不存在或不属于该用户返回 ErrNotFound；已读时 changed 为 false
func (r *NotificationRepository) MarkRead(ctx context.Context, userID string, id uint) (n *model.Notification, changed bool, err error) {
	var row model.Notification
	err = r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
			return notFound(err)
		}
		if row.IsRead {
			return nil
		}
		res := tx.Model(&model.Notification{}).
			Where("id = ? AND is_read = ?", id, false).
			Update("is_read", true)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		row.IsRead = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &row, changed, nil
}

// MarkAllRead 标记用户全部通知已读，返回本次翻转的通知
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) ([]model.Notification, error) {
	var unread []model.Notification
	err := r.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND is_read = ?", userID, false).Order("id").Find(&unread).Error; err != nil {
			return err
		}
		if len(unread) == 0 {
			return nil
		}
		return markNotificationsRead(tx, unread)
	})
	if err != nil {
		return nil, err
	}
	return unread, nil
}

// MarkReadBatch 把给定通知标记为已读
func (r *NotificationRepository) MarkReadBatch(ctx context.Context, list []model.Notification) error {
	if len(list) == 0 {
		return nil
	}
	return markNotificationsRead(r.db.WithContext(context.WithoutCancel(ctx)), list)
}

func markNotificationsRead(tx *gorm.DB, list []model.Notification) error {
	ids := make([]uint, len(list))
	for i := range list {
		ids[i] = list[i].ID
		list[i].IsRead = true
	}
	return tx.Model(&model.Notification{}).
		Where("id IN ? AND is_read = ?", ids, false).
		Update("is_read", true).Error
}
