package apiserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"socialnet/internal/config"
	"socialnet/internal/services"
)

// PostHandler serves image posts, likes and comments.
type PostHandler struct {
	posts services.PostService
	cfg   config.StorageConfig
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts services.PostService, cfg config.StorageConfig) *PostHandler {
	return &PostHandler{posts: posts, cfg: cfg}
}

// AddCommentRequest is the body of POST /api/v1/posts/{postID}/comments.
type AddCommentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id,omitempty"`
}

// CreatePostHandler handles POST /api/v1/posts as multipart form with an
// optional "image" file and a "description" field.
func (h *PostHandler) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	maxUploadSize := uploadLimit(h.cfg)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20), http.StatusRequestEntityTooLarge)
		} else {
			writeJSONError(w, fmt.Sprintf("解析表单失败: %v", err), http.StatusBadRequest)
		}
		return
	}

	input := services.CreatePostInput{Description: r.FormValue("description")}
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		input.Image = file
		input.ImageSize = header.Size
		input.ImageName = header.Filename
		input.ImageMime = header.Header.Get("Content-Type")
	case !errors.Is(err, http.ErrMissingFile):
		writeJSONError(w, fmt.Sprintf("获取图片失败: %v", err), http.StatusBadRequest)
		return
	}

	post, err := h.posts.CreatePost(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, err, "创建帖子失败")
		return
	}
	writeJSONResponse(w, http.StatusCreated, post)
}

// DeletePostHandler handles DELETE /api/v1/posts/{postID}
func (h *PostHandler) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}

	if err := h.posts.DeletePost(r.Context(), userID, postID); err != nil {
		writeServiceError(w, err, "删除帖子失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "帖子已删除"})
}

// LikePostHandler handles POST /api/v1/posts/{postID}/like
func (h *PostHandler) LikePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}

	counts, err := h.posts.LikePost(r.Context(), userID, postID)
	if err != nil {
		writeServiceError(w, err, "点赞失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, counts)
}

// UnlikePostHandler handles DELETE /api/v1/posts/{postID}/like
func (h *PostHandler) UnlikePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}

	counts, err := h.posts.UnlikePost(r.Context(), userID, postID)
	if err != nil {
		writeServiceError(w, err, "取消点赞失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, counts)
}

// AddCommentHandler handles POST /api/v1/posts/{postID}/comments
func (h *PostHandler) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	comment, err := h.posts.AddComment(r.Context(), userID, postID, req.Content, req.ParentID)
	if err != nil {
		writeServiceError(w, err, "评论失败")
		return
	}
	writeJSONResponse(w, http.StatusCreated, comment)
}

// DeleteCommentHandler handles DELETE /api/v1/comments/{commentID}
func (h *PostHandler) DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}

	if err := h.posts.DeleteComment(r.Context(), userID, commentID); err != nil {
		writeServiceError(w, err, "删除评论失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "评论已删除"})
}
