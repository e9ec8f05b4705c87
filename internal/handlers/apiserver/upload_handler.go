package apiserver

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"socialnet/internal/config"
	"socialnet/internal/imtypes"
	"socialnet/internal/storage"
)

const (
	defaultMaxMemory = 32 << 20 // 32 MB default max memory for multipart forms
)

// UploadHandler 封装了文件上传相关的 HTTP 处理器方法。
type UploadHandler struct {
	storageService imtypes.StorageService
	cfg            config.StorageConfig
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(storageService imtypes.StorageService, cfg config.StorageConfig) *UploadHandler {
	return &UploadHandler{
		storageService: storageService,
		cfg:            cfg,
	}
}

// UploadFileHandler 处理消息附件上传，只接受图片。
func (h *UploadHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUserID(w, r); !ok {
		return
	}

	// 1. 限制请求体大小
	maxUploadSize := uploadLimit(h.cfg)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	// 2. 解析 multipart form
	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg := fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20)
			writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		} else {
			writeJSONError(w, fmt.Sprintf("解析表单失败: %v", err), http.StatusBadRequest)
		}
		return
	}

	// 3. 获取文件 "file" 是表单中文件的 key
	file, handler, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeJSONError(w, "请求中缺少 'file' 字段", http.StatusBadRequest)
		} else {
			writeJSONError(w, fmt.Sprintf("获取文件失败: %v", err), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	// 4. 检查文件类型
	mimeType := handler.Header.Get("Content-Type")
	log.Printf("收到上传文件: 名称=%s, 大小=%d, 类型=%s", handler.Filename, handler.Size, mimeType)
	probe := imtypes.FileInfo{MimeType: mimeType}
	if !probe.IsImage() {
		writeJSONError(w, "只能上传图片文件", http.StatusBadRequest)
		return
	}

	// 5. 调用存储服务上传文件
	fileInfo, err := h.storageService.UploadFile(r.Context(), file, handler.Size, handler.Filename, mimeType)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			msg := fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20)
			writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
			return
		}
		log.Printf("存储文件失败: %v", err)
		writeJSONError(w, "存储文件失败", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, fileInfo)
}

// uploadLimit is the request body limit for multipart uploads.
func uploadLimit(cfg config.StorageConfig) int64 {
	if cfg.MaxFileSizeMB <= 0 {
		return defaultMaxMemory
	}
	// 表单字段和 multipart 边界额外留 1 MB
	return (cfg.MaxFileSizeMB + 1) << 20
}
