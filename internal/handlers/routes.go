package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the REST API.
func RegisterRoutes(r gin.IRoutes, users *UserHandler, conversations *ConversationHandler, messages *MessageHandler) {
	r.POST("/users", users.CreateUser)
	r.GET("/users/:userId", users.GetUser)
	r.PUT("/users/:userId/profile", users.UpdateProfile)

	r.POST("/conversations", conversations.CreateConversation)
	r.GET("/conversations/:userId", conversations.ListConversations)

	r.POST("/messages", messages.SendMessage)
	r.GET("/messages/unread/:userId", messages.GlobalUnread)
	r.GET("/messages/:conversationId", messages.ListMessages)
	r.GET("/messages/:conversationId/unread/:userId", messages.ConversationUnread)
	r.PUT("/messages/:conversationId/read/:userId", messages.MarkRead)
	r.DELETE("/messages/:conversationId/:messageId", messages.Unsend)
}
