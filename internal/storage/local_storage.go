package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"socialnet/internal/config"
	"socialnet/internal/imtypes"
)

// ErrFileTooLarge is returned when an upload exceeds STORAGE.MAX_FILE_SIZE_MB.
var ErrFileTooLarge = errors.New("file exceeds the configured size limit")

// LocalStorageService 实现了 imtypes.StorageService 接口。
type LocalStorageService struct {
	basePath string // 本地存储的基础路径，例如 "./uploads"
	baseURL  string // 用于构建文件访问 URL 的基础 URL，例如 "/uploads"
	maxBytes int64
}

// NewLocalStorageService 创建一个新的 LocalStorageService 实例。
func NewLocalStorageService(cfg config.StorageConfig) (*LocalStorageService, error) {
	// 确保 basePath 存在
	if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败 '%s': %w", cfg.LocalPath, err)
	}
	return &LocalStorageService{
		basePath: cfg.LocalPath,
		baseURL:  cfg.BaseURL,
		maxBytes: cfg.MaxFileSizeMB << 20,
	}, nil
}

// BasePath is the directory the service writes to; the API server serves it under BaseURL.
func (s *LocalStorageService) BasePath() string { return s.basePath }

// BaseURL is the URL prefix of stored files.
func (s *LocalStorageService) BaseURL() string { return s.baseURL }

// UploadFile 将文件保存到本地文件系统。
func (s *LocalStorageService) UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*imtypes.FileInfo, error) {
	if s.maxBytes > 0 && fileSize > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	// 生成一个唯一的文件名，保留原始扩展名
	ext := filepath.Ext(fileName)
	if ext == "" {
		extensions, _ := mime.ExtensionsByType(mimeType)
		if len(extensions) > 0 {
			ext = extensions[0]
		}
	}
	uniqueFileName := uuid.New().String() + ext
	dstPath := filepath.Join(s.basePath, uniqueFileName)

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("创建目标文件失败 '%s': %w", dstPath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, reader)
	if err != nil {
		os.Remove(dstPath)
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}
	if written != fileSize {
		os.Remove(dstPath)
		return nil, fmt.Errorf("文件大小不匹配: 预期 %d, 实际写入 %d", fileSize, written)
	}

	return &imtypes.FileInfo{
		URL:      strings.TrimSuffix(s.baseURL, "/") + "/" + url.PathEscape(uniqueFileName),
		Path:     dstPath,
		Size:     fileSize,
		MimeType: mimeType,
		FileName: fileName,
	}, nil
}

// DeleteFile removes a file addressed by the URL UploadFile returned. Missing files are not an error.
func (s *LocalStorageService) DeleteFile(ctx context.Context, fileURL string) error {
	prefix := strings.TrimSuffix(s.baseURL, "/") + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return fmt.Errorf("not a local storage url: %s", fileURL)
	}
	name, err := url.PathUnescape(strings.TrimPrefix(fileURL, prefix))
	if err != nil {
		return fmt.Errorf("invalid file url %q: %w", fileURL, err)
	}
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid file name %q", name)
	}

	err = os.Remove(filepath.Join(s.basePath, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}
