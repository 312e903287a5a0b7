package service

import (
	"testing"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dm(id uint, from, to string, at time.Time, read bool) model.DirectMessage {
	return model.DirectMessage{ID: id, SenderID: from, ReceiverID: to, Content: from + "->" + to, CreatedAt: at, IsRead: read}
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize("alice", nil))
	assert.Zero(t, TotalUnread(nil))
}

func TestSummarizeGroupsByPartner(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []model.DirectMessage{
		dm(1, "bob", "alice", base, false),
		dm(2, "alice", "bob", base.Add(time.Minute), false),
		dm(3, "bob", "alice", base.Add(2*time.Minute), true),
		dm(4, "carol", "alice", base.Add(3*time.Minute), false),
		dm(5, "bob", "carol", base.Add(4*time.Minute), false),
	}

	got := Summarize("alice", msgs)
	require.Len(t, got, 2)

	assert.Equal(t, "carol", got[0].PartnerID)
	assert.Equal(t, uint(4), got[0].LastMessageID)
	assert.Equal(t, 1, got[0].UnreadCount)

	assert.Equal(t, "bob", got[1].PartnerID)
	assert.Equal(t, uint(3), got[1].LastMessageID)
	assert.Equal(t, base.Add(2*time.Minute), got[1].LastMessageTime)
	assert.Equal(t, 1, got[1].UnreadCount)

	assert.Equal(t, int64(2), TotalUnread(got))
}

func TestSummarizeBreaksTiesByID(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []model.DirectMessage{
		dm(9, "bob", "alice", at, false),
		dm(7, "alice", "bob", at, false),
		dm(8, "carol", "alice", at, false),
	}

	got := Summarize("alice", msgs)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].PartnerID)
	assert.Equal(t, uint(9), got[0].LastMessageID)
	assert.Equal(t, "carol", got[1].PartnerID)
}

func TestSummarizeIsOrderIndependent(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []model.DirectMessage{
		dm(1, "bob", "alice", base, false),
		dm(2, "bob", "alice", base.Add(time.Second), false),
		dm(3, "dave", "alice", base.Add(2*time.Second), false),
	}
	reversed := []model.DirectMessage{msgs[2], msgs[1], msgs[0]}

	assert.Equal(t, Summarize("alice", msgs), Summarize("alice", reversed))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", Preview("hello", 50))
	assert.Equal(t, "he...", Preview("hello", 2))
	assert.Equal(t, "你好...", Preview("你好世界", 2))
	assert.Equal(t, "hello", Preview("hello", 0))
}
