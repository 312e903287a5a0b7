package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
	NotificationDirectMessage  NotificationType = "direct_message"
	// 以下类型由外部模块（活动、俱乐部）产生，这里只负责存储与已读
	NotificationEventReminder NotificationType = "event_reminder"
	NotificationClubInvite    NotificationType = "club_invite"
)

// Notification 用户通知
// 只追加，唯一的修改是 IsRead 置为 true
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    string            `gorm:"type:varchar(64);not null;index;comment:接收者ID" json:"user_id"`
	Type      NotificationType  `gorm:"type:varchar(32);not null;comment:通知类型" json:"type"`
	Title     string            `gorm:"type:varchar(128);not null;comment:标题" json:"title"`
	Message   string            `gorm:"type:text;comment:内容" json:"message"`
	Payload   datatypes.JSONMap `gorm:"type:json;comment:附加数据" json:"payload"`
	IsRead    bool              `gorm:"not null;default:false;index;comment:是否已读" json:"read"`
	CreatedAt time.Time         `gorm:"index;comment:创建时间" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// PayloadString 读取 payload 中的字符串字段
func (n *Notification) PayloadString(key string) string {
	if n.Payload == nil {
		return ""
	}
	if v, ok := n.Payload[key].(string); ok {
		return v
	}
	return ""
}

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{&FriendRequest{}, &Friendship{}, &DirectMessage{}, &Notification{}}
}
