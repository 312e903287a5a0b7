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

// Status 两个用户之间的关系状态（从 viewer 视角）
type Status string

const (
	StatusNone            Status = "none"
	StatusFriends         Status = "friends"
	StatusRequestSent     Status = "request_sent"
	StatusRequestReceived Status = "request_received"
)

// RelationshipService 好友请求与好友关系服务
type RelationshipService struct {
	repo     *repository.RelationshipRepository
	notifier Notifier
	feed     realtime.Feed
	locker   PairLocker
}

// NewRelationshipService 创建RelationshipService实例
// locker 为空时使用进程内锁
func NewRelationshipService(repo *repository.RelationshipRepository, notifier Notifier, feed realtime.Feed, locker PairLocker) *RelationshipService {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &RelationshipService{
		repo:     repo,
		notifier: notifier,
		feed:     feed,
		locker:   locker,
	}
}

func (s *RelationshipService) lockPair(ctx context.Context, a, b string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, model.PairKey(a, b))
	if err != nil {
		return nil, fmt.Errorf("acquire pair lock: %w", err)
	}
	return unlock, nil
}

// SendRequest 发送好友请求
func (s *RelationshipService) SendRequest(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error) {
	if err := validateUserIDs(senderID, receiverID); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, ErrSelfRequest
	}

	unlock, err := s.lockPair(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	req, err := s.repo.CreateRequest(ctx, senderID, receiverID)
	unlock()
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPairAreFriends):
			return nil, ErrAlreadyFriends
		case errors.Is(err, repository.ErrPairHasPending), repository.IsDuplicate(err):
			return nil, ErrRequestAlreadyExists
		}
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	logger.Info("好友请求已发送",
		zap.Uint("request_id", req.ID),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", receiverID),
	)

	notify(ctx, s.notifier, BuildNotification(model.NotificationFriendRequest, senderID, receiverID, map[string]interface{}{
		"request_id": strconv.FormatUint(uint64(req.ID), 10),
	}))
	publish(ctx, s.feed, realtime.TableFriendRequests, realtime.EventInsert, req)
	return req, nil
}

// AcceptRequest 接收者接受请求，发送者由请求记录决定
func (s *RelationshipService) AcceptRequest(ctx context.Context, receiverID string, requestID uint) (*model.FriendRequest, error) {
	if err := validateUserIDs(receiverID); err != nil {
		return nil, err
	}
	existing, err := s.findForReceiver(ctx, receiverID, requestID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockPair(ctx, existing.SenderID, existing.ReceiverID)
	if err != nil {
		return nil, err
	}
	req, pair, err := s.repo.AcceptRequest(ctx, requestID, receiverID)
	unlock()
	if err != nil {
		return nil, s.transitionError(ctx, err, requestID, receiverID, true)
	}

	logger.Info("好友请求已接受",
		zap.Uint("request_id", req.ID),
		zap.String("sender_id", req.SenderID),
		zap.String("receiver_id", req.ReceiverID),
	)

	notify(ctx, s.notifier, BuildNotification(model.NotificationFriendAccepted, receiverID, req.SenderID, nil))
	publish(ctx, s.feed, realtime.TableFriendRequests, realtime.EventUpdate, req)
	for i := range pair {
		publish(ctx, s.feed, realtime.TableFriendships, realtime.EventInsert, &pair[i])
	}
	return req, nil
}

// RejectRequest 接收者拒绝请求
func (s *RelationshipService) RejectRequest(ctx context.Context, receiverID string, requestID uint) (*model.FriendRequest, error) {
	if err := validateUserIDs(receiverID); err != nil {
		return nil, err
	}
	existing, err := s.findForReceiver(ctx, receiverID, requestID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockPair(ctx, existing.SenderID, existing.ReceiverID)
	if err != nil {
		return nil, err
	}
	req, err := s.repo.RejectRequest(ctx, requestID, receiverID)
	unlock()
	if err != nil {
		return nil, s.transitionError(ctx, err, requestID, receiverID, true)
	}

	logger.Info("好友请求已拒绝", zap.Uint("request_id", req.ID), zap.String("receiver_id", receiverID))
	publish(ctx, s.feed, realtime.TableFriendRequests, realtime.EventUpdate, req)
	return req, nil
}

// CancelRequest 发送者撤回仍在待处理的请求
func (s *RelationshipService) CancelRequest(ctx context.Context, senderID string, requestID uint) error {
	if err := validateUserIDs(senderID); err != nil {
		return err
	}
	existing, err := s.repo.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("find friend request: %w", err)
	}
	if existing.SenderID != senderID {
		return ErrNotRequestSender
	}

	unlock, err := s.lockPair(ctx, existing.SenderID, existing.ReceiverID)
	if err != nil {
		return err
	}
	req, err := s.repo.DeletePendingRequest(ctx, requestID, senderID)
	unlock()
	if err != nil {
		return s.transitionError(ctx, err, requestID, senderID, false)
	}

	logger.Info("好友请求已撤回", zap.Uint("request_id", req.ID), zap.String("sender_id", senderID))
	publish(ctx, s.feed, realtime.TableFriendRequests, realtime.EventDelete, req)
	return nil
}

// RemoveFriend 解除好友关系，两个方向的行在同一事务中删除
func (s *RelationshipService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if err := validateUserIDs(userID, friendID); err != nil {
		return err
	}
	if userID == friendID {
		return ErrNotFriends
	}

	unlock, err := s.lockPair(ctx, userID, friendID)
	if err != nil {
		return err
	}
	removed, err := s.repo.DeleteFriendshipPair(ctx, userID, friendID)
	unlock()
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	if len(removed) == 0 {
		return ErrNotFriends
	}

	logger.Info("好友关系已解除", zap.String("user_id", userID), zap.String("friend_id", friendID))
	for i := range removed {
		publish(ctx, s.feed, realtime.TableFriendships, realtime.EventDelete, &removed[i])
	}
	return nil
}

// GetStatus 从 userID 视角查询与 otherID 的关系，读取前修复不一致的状态
func (s *RelationshipService) GetStatus(ctx context.Context, userID, otherID string) (Status, error) {
	if err := validateUserIDs(userID, otherID); err != nil {
		return StatusNone, err
	}
	if userID == otherID {
		return StatusNone, nil
	}

	rows, pending, err := s.loadPair(ctx, userID, otherID)
	if err != nil {
		return StatusNone, err
	}
	if inconsistent(rows, pending) {
		if fixedRows, fixedPending, err := s.repairPair(ctx, userID, otherID); err != nil {
			logger.Warn("修复好友关系失败", zap.String("user_id", userID), zap.String("other_id", otherID), zap.Error(err))
		} else {
			rows, pending = fixedRows, fixedPending
		}
	}

	switch {
	case len(rows) > 0 && pending == nil:
		return StatusFriends, nil
	case pending != nil && pending.SenderID == userID:
		return StatusRequestSent, nil
	case pending != nil:
		return StatusRequestReceived, nil
	default:
		return StatusNone, nil
	}
}

// ListFriends 好友列表（以 userID 为 user_id 的行），遇到单向行时先修复
func (s *RelationshipService) ListFriends(ctx context.Context, userID string) ([]model.Friendship, error) {
	if err := validateUserIDs(userID); err != nil {
		return nil, err
	}

	out, err := s.repo.ListFriendships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	in, err := s.repo.ListInverseFriendships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list inverse friendships: %w", err)
	}

	// 两个方向的对端集合做差，差集即单向行
	outSet := make(map[string]struct{}, len(out))
	for _, f := range out {
		outSet[f.FriendID] = struct{}{}
	}
	inSet := make(map[string]struct{}, len(in))
	for _, f := range in {
		inSet[f.UserID] = struct{}{}
	}
	var asymmetric []string
	for id := range outSet {
		if _, ok := inSet[id]; !ok {
			asymmetric = append(asymmetric, id)
		}
	}
	for id := range inSet {
		if _, ok := outSet[id]; !ok {
			asymmetric = append(asymmetric, id)
		}
	}
	if len(asymmetric) == 0 {
		return out, nil
	}

	for _, other := range asymmetric {
		if _, _, err := s.repairPair(ctx, userID, other); err != nil {
			logger.Warn("修复好友关系失败", zap.String("user_id", userID), zap.String("other_id", other), zap.Error(err))
		}
	}
	out, err = s.repo.ListFriendships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	return out, nil
}

// ListIncomingRequests 收到的待处理请求
func (s *RelationshipService) ListIncomingRequests(ctx context.Context, userID string) ([]model.FriendRequest, error) {
	return s.listPending(ctx, userID, true)
}

// ListOutgoingRequests 发出的待处理请求
func (s *RelationshipService) ListOutgoingRequests(ctx context.Context, userID string) ([]model.FriendRequest, error) {
	return s.listPending(ctx, userID, false)
}

func (s *RelationshipService) listPending(ctx context.Context, userID string, incoming bool) ([]model.FriendRequest, error) {
	if err := validateUserIDs(userID); err != nil {
		return nil, err
	}
	reqs, err := s.repo.ListPendingRequests(ctx, userID, incoming)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	return reqs, nil
}

func (s *RelationshipService) findForReceiver(ctx context.Context, receiverID string, requestID uint) (*model.FriendRequest, error) {
	req, err := s.repo.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("find friend request: %w", err)
	}
	if req.ReceiverID != receiverID {
		return nil, ErrNotRequestReceiver
	}
	return req, nil
}

// transitionError 条件写入未命中时重新读取，区分不存在、无权限与状态已变化
func (s *RelationshipService) transitionError(ctx context.Context, err error, requestID uint, actorID string, asReceiver bool) error {
	if !errors.Is(err, repository.ErrConditionFailed) {
		return fmt.Errorf("update friend request: %w", err)
	}

	req, findErr := s.repo.FindRequest(ctx, requestID)
	switch {
	case errors.Is(findErr, repository.ErrNotFound):
		return ErrRequestNotFound
	case findErr != nil:
		return fmt.Errorf("find friend request: %w", findErr)
	case asReceiver && req.ReceiverID != actorID:
		return ErrNotRequestReceiver
	case !asReceiver && req.SenderID != actorID:
		return ErrNotRequestSender
	default:
		return ErrRequestNotPending
	}
}

func (s *RelationshipService) loadPair(ctx context.Context, a, b string) ([]model.Friendship, *model.FriendRequest, error) {
	rows, err := s.repo.FriendshipRows(ctx, a, b)
	if err != nil {
		return nil, nil, fmt.Errorf("load friendship rows: %w", err)
	}
	pending, err := s.repo.PendingBetween(ctx, a, b)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("load pending request: %w", err)
		}
		pending = nil
	}
	return rows, pending, nil
}

// inconsistent 单向行，或好友关系与待处理请求并存
func inconsistent(rows []model.Friendship, pending *model.FriendRequest) bool {
	return len(rows) == 1 || (len(rows) == 2 && pending != nil)
}

// repairPair 在用户对锁内重新读取并修复：
// 单向行且有待处理请求时删除该行，否则补齐另一行；
// 好友关系与待处理请求并存时把请求结算为已接受。
func (s *RelationshipService) repairPair(ctx context.Context, a, b string) ([]model.Friendship, *model.FriendRequest, error) {
	unlock, err := s.lockPair(ctx, a, b)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	rows, pending, err := s.loadPair(ctx, a, b)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case len(rows) == 1 && pending != nil:
		orphan := rows[0]
		if err := s.repo.DeleteFriendshipRow(ctx, orphan.UserID, orphan.FriendID); err != nil {
			return nil, nil, fmt.Errorf("delete orphan friendship: %w", err)
		}
		logger.Warn("已删除单向好友关系行",
			zap.String("user_id", orphan.UserID),
			zap.String("friend_id", orphan.FriendID),
			zap.Uint("pending_request_id", pending.ID),
		)
		publish(ctx, s.feed, realtime.TableFriendships, realtime.EventDelete, &orphan)
		return nil, pending, nil

	case len(rows) == 1:
		pair, err := s.repo.CreateFriendshipPair(ctx, a, b)
		if err != nil {
			return nil, nil, fmt.Errorf("restore friendship mirror: %w", err)
		}
		logger.Warn("已补齐单向好友关系行", zap.String("user_id", a), zap.String("friend_id", b))
		for i := range pair {
			if pair[i].ID != rows[0].ID {
				publish(ctx, s.feed, realtime.TableFriendships, realtime.EventInsert, &pair[i])
			}
		}
		return pair, nil, nil

	case len(rows) == 2 && pending != nil:
		settled, err := s.repo.SettleAccepted(ctx, pending.ID)
		if err != nil && !errors.Is(err, repository.ErrConditionFailed) {
			return nil, nil, fmt.Errorf("settle pending request: %w", err)
		}
		logger.Warn("好友关系已存在，待处理请求结算为已接受", zap.Uint("request_id", pending.ID))
		if settled != nil {
			publish(ctx, s.feed, realtime.TableFriendRequests, realtime.EventUpdate, settled)
		}
		return rows, nil, nil
	}
	return rows, pending, nil
}
