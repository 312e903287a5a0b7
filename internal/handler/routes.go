package handler

import (
	"github.com/mthirumalai2905/clubly-community-hub/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// Handlers 需要挂载到 /api/v1 下的全部处理器
type Handlers struct {
	Relationships *RelationshipHandler
	Messages      *MessageHandler
	Notifications *NotificationHandler
}

// RegisterRoutes 绑定 /api/v1 路由，全部接口都需要认证
func RegisterRoutes(router gin.IRouter, jwtSvc *jwt.JWTService, h Handlers) {
	v1 := router.Group("/api/v1")
	v1.Use(jwtSvc.AuthMiddleware())

	// 好友
	friends := v1.Group("/friends")
	{
		friends.GET("", h.Relationships.ListFriends)
		friends.GET("/:user_id/status", h.Relationships.GetStatus)
		friends.DELETE("/:user_id", h.Relationships.RemoveFriend)
	}

	// 好友请求
	requests := v1.Group("/friend-requests")
	{
		requests.POST("", h.Relationships.SendRequest)
		requests.GET("", h.Relationships.ListRequests)
		requests.PUT("/:id/accept", h.Relationships.AcceptRequest)
		requests.PUT("/:id/reject", h.Relationships.RejectRequest)
		requests.DELETE("/:id", h.Relationships.CancelRequest)
	}

	// 私信
	messages := v1.Group("/messages")
	{
		messages.POST("", h.Messages.SendMessage)
		messages.GET("/conversations", h.Messages.ListConversations)
		messages.GET("/unread/count", h.Messages.GetUnreadCount)
		messages.GET("/conversations/:user_id", h.Messages.GetThread)
		messages.PUT("/conversations/:user_id/read", h.Messages.MarkThreadRead)
	}

	// 通知
	notifications := v1.Group("/notifications")
	{
		notifications.GET("", h.Notifications.List)
		notifications.GET("/unread/count", h.Notifications.GetUnreadCount)
		notifications.PUT("/read-all", h.Notifications.MarkAllRead)
		notifications.PUT("/:id/read", h.Notifications.MarkRead)
	}
}
