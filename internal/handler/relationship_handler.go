package handler

import (
	"strconv"

	"github.com/mthirumalai2905/clubly-community-hub/internal/service"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/jwt"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/response"

	"github.com/gin-gonic/gin"
)

// RelationshipHandler 好友与好友请求处理器
type RelationshipHandler struct {
	service *service.RelationshipService
}

// NewRelationshipHandler 创建RelationshipHandler实例
func NewRelationshipHandler(s *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{service: s}
}

// requestID 解析路径中的请求ID
func requestID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid request id")
		return 0, false
	}
	return uint(id), true
}

// SendRequest 发送好友请求
func (h *RelationshipHandler) SendRequest(c *gin.Context) {
	type req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	fr, err := h.service.SendRequest(c.Request.Context(), jwt.GetUserID(c), r.ReceiverID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "好友请求已发送", fr)
}

// ListRequests 待处理的好友请求，direction=incoming（默认）或 outgoing
func (h *RelationshipHandler) ListRequests(c *gin.Context) {
	userID := jwt.GetUserID(c)

	var err error
	var list interface{}
	switch c.DefaultQuery("direction", "incoming") {
	case "incoming":
		list, err = h.service.ListIncomingRequests(c.Request.Context(), userID)
	case "outgoing":
		list, err = h.service.ListOutgoingRequests(c.Request.Context(), userID)
	default:
		response.BadRequest(c, "direction must be incoming or outgoing")
		return
	}
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, list)
}

// AcceptRequest 接受好友请求
func (h *RelationshipHandler) AcceptRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	fr, err := h.service.AcceptRequest(c.Request.Context(), jwt.GetUserID(c), id)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "已接受好友请求", fr)
}

// RejectRequest 拒绝好友请求
func (h *RelationshipHandler) RejectRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	fr, err := h.service.RejectRequest(c.Request.Context(), jwt.GetUserID(c), id)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "已拒绝好友请求", fr)
}

// CancelRequest 撤回好友请求
func (h *RelationshipHandler) CancelRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	if err := h.service.CancelRequest(c.Request.Context(), jwt.GetUserID(c), id); err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "好友请求已撤回", nil)
}

// ListFriends 好友列表
func (h *RelationshipHandler) ListFriends(c *gin.Context) {
	friends, err := h.service.ListFriends(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, friends)
}

// GetStatus 与某用户的关系状态
func (h *RelationshipHandler) GetStatus(c *gin.Context) {
	other := c.Param("user_id")
	status, err := h.service.GetStatus(c.Request.Context(), jwt.GetUserID(c), other)
	if err != nil {
		response.Fail(c, err)
		return
	}

	response.Success(c, gin.H{"user_id": other, "status": status})
}

// RemoveFriend 解除好友关系
func (h *RelationshipHandler) RemoveFriend(c *gin.Context) {
	if err := h.service.RemoveFriend(c.Request.Context(), jwt.GetUserID(c), c.Param("user_id")); err != nil {
		response.Fail(c, err)
		return
	}

	response.SuccessWithMessage(c, "已解除好友关系", nil)
}
