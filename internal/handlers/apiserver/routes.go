package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Handlers groups every REST handler served by the API server.
type Handlers struct {
	Auth          *AuthHandler
	User          *UserHandler
	Friends       *FriendRequestHandler
	Conversation  *ConversationHandler
	Notifications *NotificationHandler
	Posts         *PostHandler
	Upload        *UploadHandler
}

// RegisterRoutes mounts the public auth routes and the authenticated /api/v1 routes on r.
func RegisterRoutes(r *mux.Router, h Handlers, authMW mux.MiddlewareFunc) {
	// 认证路由
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", h.Auth.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)

	// API 子路由 (需要认证)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	apiRouter.HandleFunc("/auth/logout", h.Auth.LogoutHandler).Methods(http.MethodPost)

	// 用户路由
	apiRouter.HandleFunc("/users/me", h.User.GetMyProfileHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", h.User.UpdateMyProfileHandler).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/me", h.User.DeleteAccountHandler).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/users/me/password", h.User.ChangePasswordHandler).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/search", h.User.SearchUsersHandler).Methods(http.MethodGet)

	// 好友路由
	apiRouter.HandleFunc("/friends", h.Friends.ListFriendsHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/friends/{userID:[0-9]+}/status", h.Friends.FriendStatusHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/friends/{userID:[0-9]+}", h.Friends.RemoveFriendHandler).Methods(http.MethodDelete)

	// 好友请求路由
	friendRequestRouter := apiRouter.PathPrefix("/friend-requests").Subrouter()
	friendRequestRouter.HandleFunc("", h.Friends.SendFriendRequestHandler).Methods(http.MethodPost)
	friendRequestRouter.HandleFunc("/received", h.Friends.ListReceivedRequestsHandler).Methods(http.MethodGet)
	friendRequestRouter.HandleFunc("/sent", h.Friends.ListSentRequestsHandler).Methods(http.MethodGet)
	friendRequestRouter.HandleFunc("/{requestID:[0-9]+}/respond", h.Friends.RespondFriendRequestHandler).Methods(http.MethodPost)
	friendRequestRouter.HandleFunc("/{requestID:[0-9]+}/cancel", h.Friends.CancelFriendRequestHandler).Methods(http.MethodPost)

	// 会话与消息路由
	apiRouter.HandleFunc("/conversations/with/{userID:[0-9]+}", h.Conversation.ConversationWithHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/conversations/{conversationID:[0-9]+}/messages", h.Conversation.GetConversationMessagesHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages", h.Conversation.SendMessageHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/read", h.Conversation.MarkReadHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/unread", h.Conversation.UnreadCountsHandler).Methods(http.MethodGet)

	// 通知路由
	apiRouter.HandleFunc("/notifications", h.Notifications.ListNotificationsHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/notifications/cleanup", h.Notifications.CleanupNotificationsHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/notifications/read-all", h.Notifications.MarkAllNotificationsReadHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/notifications/{notificationID:[0-9]+}/read", h.Notifications.MarkNotificationReadHandler).Methods(http.MethodPost)

	// 帖子路由
	apiRouter.HandleFunc("/posts", h.Posts.CreatePostHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}", h.Posts.DeletePostHandler).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}/like", h.Posts.LikePostHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}/like", h.Posts.UnlikePostHandler).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/posts/{postID:[0-9]+}/comments", h.Posts.AddCommentHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/comments/{commentID:[0-9]+}", h.Posts.DeleteCommentHandler).Methods(http.MethodDelete)

	// 文件上传路由
	apiRouter.HandleFunc("/upload", h.Upload.UploadFileHandler).Methods(http.MethodPost)
}
