package handler

import (
	"strconv"

	"github.com/mthirumalai2905/clubly-community-hub/internal/service"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/jwt"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/response"

	"github.com/gin-gonic/gin"
)

// 通知列表默认与最大条数
const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler 创建NotificationHandler实例
func NewNotificationHandler(s *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: s}
}

// List 通知列表
func (h *NotificationHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultNotificationLimit)))
	if err != nil || limit < 1 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	list, err := h.service.List(c.Request.Context(), jwt.GetUserID(c), limit)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, list)
}

// GetUnreadCount 未读通知数量
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{"unread_count": count})
}

// MarkRead 标记单条通知已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid notification id")
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), jwt.GetUserID(c), uint(id)); err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "通知已标记为已读", nil)
}

// MarkAllRead 标记全部通知已读
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.service.MarkAllRead(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "全部通知已标记为已读", gin.H{"marked": n})
}
