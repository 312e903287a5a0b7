package model

import (
	"time"
)

// DirectMessage 私信
// 只追加；创建后唯一允许的修改是接收者打开会话时把 IsRead 从 false 改为 true
type DirectMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   string    `gorm:"type:varchar(64);not null;index:idx_dm_sender_receiver,priority:1;comment:发送者ID" json:"sender_id"`
	ReceiverID string    `gorm:"type:varchar(64);not null;index:idx_dm_sender_receiver,priority:2;index;comment:接收者ID" json:"receiver_id"`
	Content    string    `gorm:"type:text;not null;comment:消息内容" json:"content"`
	IsRead     bool      `gorm:"not null;default:false;index;comment:是否已读" json:"read"`
	CreatedAt  time.Time `gorm:"index;comment:创建时间" json:"created_at"`
}

func (DirectMessage) TableName() string { return "direct_messages" }

// PartnerOf 返回会话中 viewer 的对方
func (m *DirectMessage) PartnerOf(viewerID string) string {
	if m.SenderID == viewerID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Before 按 (created_at, id) 比较先后，时间相同时以插入顺序为准
func (m *DirectMessage) Before(other *DirectMessage) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
