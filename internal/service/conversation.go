package service

import (
	"sort"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
)

// ConversationSummary 会话摘要，由消息推导，不落库
type ConversationSummary struct {
	PartnerID          string    `json:"partner_id"`
	LastMessageContent string    `json:"last_message"`
	LastMessageTime    time.Time `json:"last_message_time"`
	LastMessageID      uint      `json:"last_message_id"`
	UnreadCount        int       `json:"unread_count"`
}

// Summarize 按对端分组推导 viewer 的会话列表
// 最后一条消息按 (created_at, id) 选取；未读数只统计对端发给 viewer 且未读的消息；
// 结果按最后消息时间倒序，时间相同按消息ID倒序。与 viewer 无关的消息被忽略。
func Summarize(viewerID string, msgs []model.DirectMessage) []ConversationSummary {
	type acc struct {
		last   *model.DirectMessage
		unread int
	}
	byPartner := make(map[string]*acc)

	for i := range msgs {
		m := &msgs[i]
		if m.SenderID != viewerID && m.ReceiverID != viewerID {
			continue
		}
		partner := m.PartnerOf(viewerID)
		a, ok := byPartner[partner]
		if !ok {
			a = &acc{}
			byPartner[partner] = a
		}
		if a.last == nil || a.last.Before(m) {
			a.last = m
		}
		if m.ReceiverID == viewerID && m.SenderID == partner && !m.IsRead {
			a.unread++
		}
	}

	out := make([]ConversationSummary, 0, len(byPartner))
	for partner, a := range byPartner {
		out = append(out, ConversationSummary{
			PartnerID:          partner,
			LastMessageContent: a.last.Content,
			LastMessageTime:    a.last.CreatedAt,
			LastMessageID:      a.last.ID,
			UnreadCount:        a.unread,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageTime.Equal(out[j].LastMessageTime) {
			return out[i].LastMessageID > out[j].LastMessageID
		}
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out
}

// TotalUnread 各会话未读数之和
func TotalUnread(summaries []ConversationSummary) int64 {
	var total int64
	for _, s := range summaries {
		total += int64(s.UnreadCount)
	}
	return total
}

// Preview 按字符截断消息作为通知正文，截断时追加省略号
func Preview(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
