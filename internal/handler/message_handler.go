package handler

import (
	"github.com/mthirumalai2905/clubly-community-hub/internal/service"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/jwt"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/response"

	"github.com/gin-gonic/gin"
)

// MessageHandler 私信处理器
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler 创建MessageHandler实例
func NewMessageHandler(s *service.MessageService) *MessageHandler {
	return &MessageHandler{service: s}
}

// SendMessage 发送私信
func (h *MessageHandler) SendMessage(c *gin.Context) {
	type req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
		Content    string `json:"content"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), jwt.GetUserID(c), r.ReceiverID, r.Content)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "消息发送成功", message)
}

// ListConversations 会话列表（含未读总数）
func (h *MessageHandler) ListConversations(c *gin.Context) {
	summaries, err := h.service.ListConversations(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"conversations": summaries,
		"total_unread":  service.TotalUnread(summaries),
	})
}

// GetUnreadCount 未读私信总数
func (h *MessageHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.service.TotalUnread(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{"unread_count": count})
}

// GetThread 打开会话：返回完整消息并把对方发来的消息标记为已读
func (h *MessageHandler) GetThread(c *gin.Context) {
	messages, err := h.service.GetThread(c.Request.Context(), jwt.GetUserID(c), c.Param("user_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// MarkThreadRead 标记与某用户的会话为已读
func (h *MessageHandler) MarkThreadRead(c *gin.Context) {
	n, err := h.service.MarkThreadRead(c.Request.Context(), jwt.GetUserID(c), c.Param("user_id"))
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "会话已标记为已读", gin.H{"marked": n})
}
