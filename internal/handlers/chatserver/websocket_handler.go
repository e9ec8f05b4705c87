package chatserver

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"socialnet/internal/config"
	"socialnet/internal/imtypes"
	"socialnet/internal/middleware"
	"socialnet/internal/services"
	ws "socialnet/internal/websocket"
)

// WebSocketHandler 负责处理 WebSocket 连接请求。
type WebSocketHandler struct {
	hub      *ws.Hub
	validate middleware.TokenValidator
	commands ws.CommandHandler
	wsCfg    config.WebSocketConfig
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler 实例。
func NewWebSocketHandler(hub *ws.Hub, validate middleware.TokenValidator, messenger services.MessengerService, wsCfg config.WebSocketConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		validate: validate,
		commands: NewCommandHandler(messenger),
		wsCfg:    wsCfg,
	}
}

// ServeWS 处理传入的 WebSocket 请求。
// 令牌通过 ?token= 查询参数传递，浏览器的 WebSocket API 无法设置 Authorization 头。
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "缺少认证令牌", http.StatusUnauthorized)
		return
	}

	claims, err := h.validate(r.Context(), token)
	if err != nil {
		log.Printf("WebSocket 连接尝试失败：令牌无效: %v", err)
		http.Error(w, "令牌无效", http.StatusUnauthorized)
		return
	}
	log.Printf("用户 %s (ID: %d) 尝试连接 WebSocket", claims.Username, claims.UserID)

	ws.ServeWs(h.hub, h.commands, claims.UserID, w, r, h.wsCfg)
}

// NewCommandHandler routes live client commands to the messenger. The acting
// user is always the connection's authenticated user.
func NewCommandHandler(messenger services.MessengerService) ws.CommandHandler {
	return func(ctx context.Context, userID uint, cmd imtypes.ClientCommand) error {
		switch cmd.Type {
		case imtypes.CommandMarkRead:
			if cmd.FriendID == 0 {
				return fmt.Errorf("mark_read 缺少 friend_id")
			}
			_, err := messenger.MarkRead(ctx, userID, cmd.FriendID)
			return err
		case imtypes.CommandSendMessage:
			_, err := messenger.SendMessage(ctx, userID, services.SendMessageInput{
				ReceiverID: cmd.ReceiverID,
				Content:    cmd.Content,
				ImageURL:   cmd.ImageURL,
			})
			return err
		default:
			return fmt.Errorf("未知的命令类型: %q", cmd.Type)
		}
	}
}
