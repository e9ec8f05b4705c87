package apiserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"socialnet/internal/services"
)

// ConversationHandler 封装了会话和私信相关的 HTTP 处理器方法。
type ConversationHandler struct {
	messenger services.MessengerService
}

// NewConversationHandler 创建一个新的 ConversationHandler 实例。
func NewConversationHandler(messenger services.MessengerService) *ConversationHandler {
	return &ConversationHandler{messenger: messenger}
}

// MarkReadRequest marks everything friend_id sent to the caller as read.
type MarkReadRequest struct {
	FriendID uint `json:"friend_id"`
}

// MarkReadResponse lists the messages this call flipped to read.
type MarkReadResponse struct {
	MessageIDs []uint `json:"message_ids"`
}

// ConversationWithHandler handles GET /api/v1/conversations/with/{userID}
func (h *ConversationHandler) ConversationWithHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	friendID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	conversation, err := h.messenger.ConversationWith(r.Context(), userID, friendID)
	if err != nil {
		writeServiceError(w, err, "获取会话失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, conversation)
}

// GetConversationMessagesHandler handles GET /api/v1/conversations/{conversationID}/messages.
// Fetching the history marks the caller's incoming messages as read.
func (h *ConversationHandler) GetConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	conversationID, ok := pathID(w, r, "conversationID")
	if !ok {
		return
	}

	messages, err := h.messenger.ListMessages(r.Context(), userID, conversationID)
	if err != nil {
		writeServiceError(w, err, "获取会话消息失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

// SendMessageHandler handles POST /api/v1/messages
func (h *ConversationHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var input services.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if input.ReceiverID == 0 {
		writeJSONError(w, "缺少接收者ID (receiver_id)", http.StatusBadRequest)
		return
	}

	message, err := h.messenger.SendMessage(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, err, "发送消息失败")
		return
	}
	writeJSONResponse(w, http.StatusCreated, message)
}

// MarkReadHandler handles POST /api/v1/messages/read
func (h *ConversationHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.FriendID == 0 {
		writeJSONError(w, "缺少好友ID (friend_id)", http.StatusBadRequest)
		return
	}

	ids, err := h.messenger.MarkRead(r.Context(), userID, req.FriendID)
	if err != nil {
		writeServiceError(w, err, "标记消息已读失败")
		return
	}
	if ids == nil {
		ids = []uint{}
	}
	writeJSONResponse(w, http.StatusOK, MarkReadResponse{MessageIDs: ids})
}

// UnreadCountsHandler handles GET /api/v1/messages/unread, keyed by sender id.
func (h *ConversationHandler) UnreadCountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	counts, err := h.messenger.UnreadCounts(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "获取未读消息数失败")
		return
	}
	body := make(map[string]int64, len(counts))
	for senderID, n := range counts {
		body[strconv.FormatUint(uint64(senderID), 10)] = n
	}
	writeJSONResponse(w, http.StatusOK, body)
}
