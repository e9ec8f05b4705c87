package apiserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"socialnet/internal/middleware"
	"socialnet/internal/services"
)

// UserHandler 封装了用户相关的 HTTP 处理器方法。
type UserHandler struct {
	userService services.UserService
	authService services.AuthService
}

// NewUserHandler 创建一个新的 UserHandler 实例。authService 用于删除账号后吊销当前令牌。
func NewUserHandler(userService services.UserService, authService services.AuthService) *UserHandler {
	return &UserHandler{userService: userService, authService: authService}
}

// GetMyProfileHandler 处理获取当前登录用户信息的请求。
func (h *UserHandler) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "获取用户信息失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateMyProfileRequest 是更新用户信息的请求结构体。空字段保持不变。
type UpdateMyProfileRequest struct {
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// UpdateMyProfileHandler 处理更新当前登录用户信息的请求。
func (h *UserHandler) UpdateMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req UpdateMyProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, err := h.userService.UpdateUserProfile(r.Context(), userID, req.Nickname, req.AvatarURL, req.Bio)
	if err != nil {
		writeServiceError(w, err, "更新用户信息失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// SearchUsersHandler handles GET /api/v1/users/search?q=
func (h *UserHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := h.userService.SearchUsers(r.Context(), query, userID)
	if err != nil {
		writeServiceError(w, err, "搜索用户失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, results)
}

// ChangePasswordRequest 是修改密码的请求结构体。
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordHandler handles PUT /api/v1/users/me/password
func (h *UserHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.userService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, err, "修改密码失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "密码已更新"})
}

// DeleteAccountRequest 需要当前密码确认。
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccountHandler handles DELETE /api/v1/users/me
func (h *UserHandler) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.userService.DeleteAccount(r.Context(), userID, req.Password); err != nil {
		writeServiceError(w, err, "删除账号失败")
		return
	}

	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok && h.authService != nil {
		if err := h.authService.Logout(r.Context(), claims); err != nil {
			log.Printf("用户 %d 删除账号后吊销令牌失败: %v", userID, err)
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "账号已删除"})
}
