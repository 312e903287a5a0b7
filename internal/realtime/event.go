// Package realtime 定义行级变更事件以及订阅/发布的抽象。
//
// 事件只保证"同一行的事件按提交顺序到达"，断线期间的事件不会补发，
// 订阅方需要在重连后重新拉取数据，并保证处理函数幂等。
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Table 产生变更事件的表
type Table string

const (
	TableFriendRequests Table = "friend_requests"
	TableFriendships    Table = "friendships"
	TableDirectMessages Table = "direct_messages"
	TableNotifications  Table = "notifications"
)

// EventType 变更类型
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent 行级变更事件
// Record 为变更后的行（删除事件为删除前的行），字段名与行的 JSON 字段一致
type ChangeEvent struct {
	ID          string                 `json:"id"`
	Table       Table                  `json:"table"`
	Type        EventType              `json:"type"`
	Record      map[string]interface{} `json:"record"`
	CommittedAt time.Time              `json:"committed_at"`
}

// NewChangeEvent 根据一行数据构造变更事件
func NewChangeEvent(table Table, typ EventType, row interface{}) (ChangeEvent, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("序列化变更行失败: %w", err)
	}
	record := make(map[string]interface{})
	if err := json.Unmarshal(data, &record); err != nil {
		return ChangeEvent{}, fmt.Errorf("变更行不是对象: %w", err)
	}
	return ChangeEvent{
		ID:          uuid.NewString(),
		Table:       table,
		Type:        typ,
		Record:      record,
		CommittedAt: time.Now(),
	}, nil
}

// Decode 把 Record 解码到目标结构体
func (e ChangeEvent) Decode(v interface{}) error {
	data, err := json.Marshal(e.Record)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Field 以字符串形式读取 Record 中的字段，不存在时返回空串
func (e ChangeEvent) Field(name string) string {
	v, ok := e.Record[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Filter 订阅过滤条件，nil 表示接收该表全部事件
type Filter func(ChangeEvent) bool

// Eq 字段等于给定值
func Eq(field, value string) Filter {
	return func(e ChangeEvent) bool { return e.Field(field) == value }
}

// AnyOf 任一条件满足即可
func AnyOf(filters ...Filter) Filter {
	return func(e ChangeEvent) bool {
		for _, f := range filters {
			if f(e) {
				return true
			}
		}
		return false
	}
}

// Handler 事件处理函数
type Handler func(ChangeEvent)

// Subscription 订阅句柄
type Subscription interface {
	Unsubscribe()
}

// Feed 变更推送能力：写入方发布，客户端会话订阅
type Feed interface {
	Publish(ctx context.Context, event ChangeEvent) error
	Subscribe(table Table, filter Filter, handler Handler) (Subscription, error)
}
