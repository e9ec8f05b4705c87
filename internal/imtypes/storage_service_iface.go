// internal/imtypes/storage_service_iface.go
package imtypes

import (
	"context"
	"io"
)

// StorageService 定义了文件存储操作的接口。
type StorageService interface {
	// UploadFile stores the reader's content and returns its public URL in FileInfo.
	UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*FileInfo, error)

	// DeleteFile removes a file previously returned by UploadFile, addressed by its URL.
	DeleteFile(ctx context.Context, url string) error
}
