package files

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"cloudnotes/internal/types"
)

const maxExtensionLen = 16

// ObjectClient is the subset of the S3 API used for file bodies.
type ObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Metadata is implemented by MetadataStore.
type Metadata interface {
	Put(ctx context.Context, meta *types.FileMetadata) error
	Get(ctx context.Context, userID, fileID string) (*types.FileMetadata, error)
	Delete(ctx context.Context, userID, fileID string) error
	ListByUser(ctx context.Context, userID string) ([]types.FileMetadata, error)
}

// Upload is one received file.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service coordinates the object bucket and the metadata table.
type Service struct {
	objects ObjectClient
	meta    Metadata
	bucket  string
	region  string
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewService(objects ObjectClient, meta Metadata, bucket, region string, logger *slog.Logger) *Service {
	return &Service{
		objects: objects,
		meta:    meta,
		bucket:  bucket,
		region:  region,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Upload stores the body under users/<userID>/<fileID><ext> and records its
// metadata. If the metadata write fails the object is removed again.
func (s *Service) Upload(ctx context.Context, userID string, up Upload) (*types.FileMetadata, error) {
	fileID := s.newID()
	key := fmt.Sprintf("users/%s/%s%s", userID, fileID, safeExtension(up.Name))
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(up.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(up.Data))),
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalObjectStore, "failed to store file", err)
	}

	meta := &types.FileMetadata{
		UserID:          userID,
		FileID:          fileID,
		S3Key:           key,
		OriginalName:    up.Name,
		ContentType:     contentType,
		Size:            int64(len(up.Data)),
		UploadTimestamp: s.now().UTC(),
		S3URL:           s.objectURL(key),
	}
	if err := s.meta.Put(ctx, meta); err != nil {
		s.removeObject(ctx, key, fileID)
		return nil, types.NewAppError(types.ErrCodeInternalDocumentStore, "failed to record file", err)
	}

	s.logger.InfoContext(ctx, "file uploaded",
		"file_id", fileID,
		"user_id", userID,
		"size", meta.Size,
	)
	return meta, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]types.FileMetadata, error) {
	files, err := s.meta.ListByUser(ctx, userID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDocumentStore, "failed to list files", err)
	}
	return files, nil
}

// Delete removes the file's object and metadata. A failed object delete is
// logged and the metadata is removed anyway.
func (s *Service) Delete(ctx context.Context, userID, fileID string) error {
	meta, err := s.meta.Get(ctx, userID, fileID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDocumentStore, "failed to look up file", err)
	}
	if meta == nil {
		return types.NewAppError(types.ErrCodeNotFoundFile, "file not found", nil)
	}

	s.removeObject(ctx, meta.S3Key, fileID)

	if err := s.meta.Delete(ctx, userID, fileID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDocumentStore, "failed to delete file", err)
	}
	s.logger.InfoContext(ctx, "file deleted", "file_id", fileID, "user_id", userID)
	return nil
}

func (s *Service) removeObject(ctx context.Context, key, fileID string) {
	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete file object",
			"file_id", fileID,
			"s3_key", key,
			"error", err,
		)
	}
}

func (s *Service) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// safeExtension keeps a short alphanumeric extension from name, including
// the dot, or returns "".
func safeExtension(name string) string {
	ext := filepath.Ext(filepath.Base(name))
	if len(ext) < 2 || len(ext) > maxExtensionLen {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}
