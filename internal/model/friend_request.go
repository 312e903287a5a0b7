package model

import (
	"time"
)

// RequestStatus 好友请求状态
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendRequest 好友请求
// 状态机：pending -> accepted | rejected，pending 状态下发送者可撤回（删除记录）
// PendingPair 仅在 pending 时写入无序用户对的规范键，唯一索引保证同一对用户最多一条待处理请求；
// 请求结束后置为 NULL（NULL 不参与唯一约束）
type FriendRequest struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	SenderID    string        `gorm:"type:varchar(64);not null;index;comment:发送者ID" json:"sender_id"`
	ReceiverID  string        `gorm:"type:varchar(64);not null;index;comment:接收者ID" json:"receiver_id"`
	Status      RequestStatus `gorm:"type:varchar(16);not null;default:'pending';index;comment:请求状态" json:"status"`
	PendingPair *string       `gorm:"type:varchar(160);uniqueIndex;comment:待处理用户对" json:"-"`
	CreatedAt   time.Time     `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"comment:更新时间" json:"updated_at"`
}

func (FriendRequest) TableName() string { return "friend_requests" }

// IsPending 请求是否仍待处理
func (r *FriendRequest) IsPending() bool { return r.Status == RequestPending }

// PairKey 返回无序用户对的规范键，a、b 顺序无关
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
