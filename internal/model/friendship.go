package model

import (
	"time"
)

// Friendship 好友关系（单向行）
// 一段好友关系由 (A,B) 与 (B,A) 两行组成，按任一方ID查询即可直接命中，无需 OR 查询。
// 两行只能通过仓储层的成对操作在同一事务中创建或删除。
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_friendship_pair,priority:1;comment:用户ID" json:"user_id"`
	FriendID  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_friendship_pair,priority:2;index;comment:好友ID" json:"friend_id"`
	CreatedAt time.Time `gorm:"comment:创建时间" json:"created_at"`
}

func (Friendship) TableName() string { return "friendships" }
