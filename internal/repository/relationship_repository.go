package repository

import (
	"context"
	"errors"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelationshipRepository 好友请求与好友关系数据仓储
// 所有状态迁移都是条件写入，未命中时返回 ErrConditionFailed，由上层重新读取判断原因
type RelationshipRepository struct {
	db *gorm.DB
}

// NewRelationshipRepository 创建RelationshipRepository实例
func NewRelationshipRepository(db *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

func (r *RelationshipRepository) reader(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// 写操作一旦发出，不随调用方取消而中断
func (r *RelationshipRepository) writer(ctx context.Context) *gorm.DB {
	return r.db.WithContext(context.WithoutCancel(ctx))
}

func pairScope(a, b string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a)
	}
}

// CreateRequest 创建待处理请求
// 同一事务内检查好友关系与待处理请求，PendingPair 唯一索引兜底并发插入
func (r *RelationshipRepository) CreateRequest(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error) {
	key := model.PairKey(senderID, receiverID)
	req := &model.FriendRequest{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Status:      model.RequestPending,
		PendingPair: &key,
	}

	err := r.writer(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Friendship{}).Scopes(pairScope(senderID, receiverID)).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrPairAreFriends
		}

		if err := tx.Model(&model.FriendRequest{}).Where("pending_pair = ?", key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrPairHasPending
		}

		if err := tx.Create(req).Error; err != nil {
			if IsDuplicate(err) {
				return ErrPairHasPending
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// FindRequest 根据ID获取请求
func (r *RelationshipRepository) FindRequest(ctx context.Context, id uint) (*model.FriendRequest, error) {
	var req model.FriendRequest
	if err := r.reader(ctx).First(&req, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// PendingBetween 获取用户对之间的待处理请求（不区分方向）
func (r *RelationshipRepository) PendingBetween(ctx context.Context, a, b string) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.reader(ctx).
		Where("pending_pair = ? AND status = ?", model.PairKey(a, b), model.RequestPending).
		First(&req).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// ListPendingRequests 用户收到（incoming）或发出的待处理请求，新的在前
func (r *RelationshipRepository) ListPendingRequests(ctx context.Context, userID string, incoming bool) ([]model.FriendRequest, error) {
	column := "sender_id"
	if incoming {
		column = "receiver_id"
	}

	var reqs []model.FriendRequest
	err := r.reader(ctx).
		Where(column+" = ? AND status = ?", userID, model.RequestPending).
		Order("created_at DESC").Order("id DESC").
		Find(&reqs).Error
	return reqs, err
}

// AcceptRequest 接受请求并创建双向好友关系，整体在一个事务中完成
func (r *RelationshipRepository) AcceptRequest(ctx context.Context, id uint, receiverID string) (*model.FriendRequest, []model.Friendship, error) {
	var (
		req  model.FriendRequest
		pair []model.Friendship
	)

	err := r.writer(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.FriendRequest{}).
			Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, model.RequestPending).
			Updates(map[string]interface{}{"status": model.RequestAccepted, "pending_pair": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConditionFailed
		}

		if err := tx.First(&req, id).Error; err != nil {
			return err
		}

		var err error
		pair, err = createPair(tx, req.SenderID, req.ReceiverID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &req, pair, nil
}

// RejectRequest 拒绝请求（pending -> rejected）
func (r *RelationshipRepository) RejectRequest(ctx context.Context, id uint, receiverID string) (*model.FriendRequest, error) {
	var req model.FriendRequest

	err := r.writer(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.FriendRequest{}).
			Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, model.RequestPending).
			Updates(map[string]interface{}{"status": model.RequestRejected, "pending_pair": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConditionFailed
		}
		return tx.First(&req, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// DeletePendingRequest 发送者撤回仍在待处理的请求，返回被删除的记录
func (r *RelationshipRepository) DeletePendingRequest(ctx context.Context, id uint, senderID string) (*model.FriendRequest, error) {
	var req model.FriendRequest

	err := r.writer(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND sender_id = ? AND status = ?", id, senderID, model.RequestPending).
			First(&req).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConditionFailed
			}
			return err
		}

		res := tx.Where("id = ? AND status = ?", id, model.RequestPending).Delete(&model.FriendRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConditionFailed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// SettleAccepted 把仍处于待处理的请求结算为已接受（好友关系已存在时的修复）
func (r *RelationshipRepository) SettleAccepted(ctx context.Context, id uint) (*model.FriendRequest, error) {
	var req model.FriendRequest

	err := r.writer(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.FriendRequest{}).
			Where("id = ? AND status = ?", id, model.RequestPending).
			Updates(map[string]interface{}{"status": model.RequestAccepted, "pending_pair": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConditionFailed
		}
		return tx.First(&req, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FriendshipRows 用户对之间现存的方向行（0、1 或 2 行）
func (r *RelationshipRepository) FriendshipRows(ctx context.Context, a, b string) ([]model.Friendship, error) {
	var rows []model.Friendship
	err := r.reader(ctx).Scopes(pairScope(a, b)).Order("id").Find(&rows).Error
	return rows, err
}

// AreFriends 双向行都存在才算好友
func (r *RelationshipRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.reader(ctx).Model(&model.Friendship{}).Scopes(pairScope(a, b)).Count(&count).Error
	return count == 2, err
}

// ListFriendships 以 userID 为 user_id 的方向行
func (r *RelationshipRepository) ListFriendships(ctx context.Context, userID string) ([]model.Friendship, error) {
	var rows []model.Friendship
	err := r.reader(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// ListInverseFriendships 以 userID 为 friend_id 的方向行
func (r *RelationshipRepository) ListInverseFriendships(ctx context.Context, userID string) ([]model.Friendship, error) {
	var rows []model.Friendship
	err := r.reader(ctx).Where("friend_id = ?", userID).Find(&rows).Error
	return rows, err
}

// CreateFriendshipPair 幂等地补齐双向行
func (r *RelationshipRepository) CreateFriendshipPair(ctx context.Context, a, b string) ([]model.Friendship, error) {
	var pair []model.Friendship
	err := r.writer(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		pair, err = createPair(tx, a, b)
		return err
	})
	return pair, err
}

// DeleteFriendshipPair 在一个事务中删除双向行，返回被删除的行
func (r *RelationshipRepository) DeleteFriendshipPair(ctx context.Context, a, b string) ([]model.Friendship, error) {
	var rows []model.Friendship

	err := r.writer(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(pairScope(a, b)).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Scopes(pairScope(a, b)).Delete(&model.Friendship{}).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteFriendshipRow 删除单个方向行
func (r *RelationshipRepository) DeleteFriendshipRow(ctx context.Context, userID, friendID string) error {
	return r.writer(ctx).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Delete(&model.Friendship{}).Error
}

// createPair 插入双向行，已存在的行忽略
func createPair(tx *gorm.DB, a, b string) ([]model.Friendship, error) {
	rows := []model.Friendship{
		{UserID: a, FriendID: b},
		{UserID: b, FriendID: a},
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return nil, err
	}

	var pair []model.Friendship
	if err := tx.Scopes(pairScope(a, b)).Order("id").Find(&pair).Error; err != nil {
		return nil, err
	}
	return pair, nil
}
