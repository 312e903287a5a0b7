package service

import (
	"context"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"

	"go.uber.org/zap"
)

// Notifier 通知投递能力
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

// publish 提交后发布变更事件，失败只记录日志
func publish(ctx context.Context, feed realtime.Feed, table realtime.Table, typ realtime.EventType, row interface{}) {
	if feed == nil {
		return
	}
	event, err := realtime.NewChangeEvent(table, typ, row)
	if err != nil {
		logger.Warn("构造变更事件失败", zap.String("table", string(table)), zap.Error(err))
		return
	}
	if err := feed.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("发布变更事件失败",
			zap.String("table", string(table)),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

// notify 提交后发送通知，失败只记录日志，不回滚主操作
func notify(ctx context.Context, notifier Notifier, n model.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(context.WithoutCancel(ctx), &n); err != nil {
		logger.Warn("发送通知失败",
			zap.String("type", string(n.Type)),
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
	}
}
