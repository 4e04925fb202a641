package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrUnsupportedImageType = errors.New("unsupported image content type")

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader кладёт публичные файлы (логотипы команд) в объектное хранилище.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// TeamLogoKey returns teams/{id}/logo{ext} for a supported image type.
func TeamLogoKey(teamID, contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := imageExtensions[ct]
	if !ok {
		return "", ErrUnsupportedImageType
	}
	return path.Join("teams", teamID, "logo"+ext), nil
}
