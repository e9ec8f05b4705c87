package apiserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"socialnet/internal/middleware"
	"socialnet/internal/services"
)

// FriendRequestHandler handles friend requests and the friends list.
type FriendRequestHandler struct {
	friendService services.FriendshipService
}

// NewFriendRequestHandler creates a new FriendRequestHandler.
func NewFriendRequestHandler(fs services.FriendshipService) *FriendRequestHandler {
	return &FriendRequestHandler{friendService: fs}
}

// SendFriendRequestPayload defines the expected JSON body for sending a friend request.
type SendFriendRequestPayload struct {
	UserID uint `json:"user_id"`
}

// RespondFriendRequestPayload carries "accept" or "reject".
type RespondFriendRequestPayload struct {
	Decision string `json:"decision"`
}

// FriendStatusResponse is the relation between the caller and another user.
type FriendStatusResponse struct {
	UserID uint   `json:"user_id"`
	Status string `json:"status"`
}

// SendFriendRequestHandler handles POST /api/v1/friend-requests
func (h *FriendRequestHandler) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var payload SendFriendRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.UserID == 0 {
		writeJSONError(w, "缺少接收者ID (user_id)", http.StatusBadRequest)
		return
	}

	friendship, err := h.friendService.SendRequest(r.Context(), requesterID, payload.UserID)
	if err != nil {
		writeServiceError(w, err, "发送好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusCreated, friendship)
}

// RespondFriendRequestHandler handles POST /api/v1/friend-requests/{requestID}/respond
func (h *FriendRequestHandler) RespondFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}

	var payload RespondFriendRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	friendship, err := h.friendService.RespondToRequest(r.Context(), requestID, userID, payload.Decision)
	if err != nil {
		writeServiceError(w, err, "处理好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, friendship)
}

// CancelFriendRequestHandler handles POST /api/v1/friend-requests/{requestID}/cancel
func (h *FriendRequestHandler) CancelFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), requestID, userID); err != nil {
		writeServiceError(w, err, "取消好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "好友请求已取消"})
}

// ListReceivedRequestsHandler handles GET /api/v1/friend-requests/received
func (h *FriendRequestHandler) ListReceivedRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	requests, err := h.friendService.ListReceivedRequests(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "获取收到的好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// ListSentRequestsHandler handles GET /api/v1/friend-requests/sent
func (h *FriendRequestHandler) ListSentRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	requests, err := h.friendService.ListSentRequests(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "获取已发送的好友请求失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// ListFriendsHandler handles GET /api/v1/friends
func (h *FriendRequestHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "获取好友列表失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// FriendStatusHandler handles GET /api/v1/friends/{userID}/status
func (h *FriendRequestHandler) FriendStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	otherID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	status, err := h.friendService.FriendshipStatus(r.Context(), userID, otherID)
	if err != nil {
		writeServiceError(w, err, "获取好友状态失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, FriendStatusResponse{UserID: otherID, Status: string(status)})
}

// RemoveFriendHandler handles DELETE /api/v1/friends/{userID}
func (h *FriendRequestHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	friendID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.friendService.RemoveFriend(r.Context(), userID, friendID); err != nil {
		writeServiceError(w, err, "删除好友失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "好友已删除"})
}

// currentUserID writes a 401 when the request carries no authenticated user.
func currentUserID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

// pathID parses the named mux path variable as a positive id, writing a 400 otherwise.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		writeJSONError(w, "缺少路径参数 "+name, http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeJSONError(w, "无效的ID格式: "+name, http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}
