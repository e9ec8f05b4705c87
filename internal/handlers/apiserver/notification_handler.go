package apiserver

import (
	"net/http"

	"socialnet/internal/services"
)

// NotificationHandler serves the notification inbox.
type NotificationHandler struct {
	notifications services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotificationsHandler handles GET /api/v1/notifications
func (h *NotificationHandler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	list, err := h.notifications.ListNotifications(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "获取通知失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, list)
}

// CleanupNotificationsHandler handles POST /api/v1/notifications/cleanup
func (h *NotificationHandler) CleanupNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	removed, err := h.notifications.CleanupStale(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "清理通知失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"removed": removed})
}

// MarkNotificationReadHandler handles POST /api/v1/notifications/{notificationID}/read
func (h *NotificationHandler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	notificationID, ok := pathID(w, r, "notificationID")
	if !ok {
		return
	}

	if err := h.notifications.MarkNotificationRead(r.Context(), userID, notificationID); err != nil {
		writeServiceError(w, err, "标记通知已读失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "通知已读"})
}

// MarkAllNotificationsReadHandler handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllNotificationsRead(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "标记全部通知已读失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"updated": updated})
}
