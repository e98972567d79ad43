package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ObjectStorage object store behind S3AttachmentStore (pkg/storage.S3Client)
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3AttachmentStore keeps attachment files in S3-compatible object storage
type S3AttachmentStore struct {
	attachmentLimits
	objects ObjectStorage
	logger  zerolog.Logger
	now     func() time.Time
}

// NewS3AttachmentStore creates an attachment subsystem over objects
func NewS3AttachmentStore(objects ObjectStorage, cfg config.UploadsConfig, logger zerolog.Logger) *S3AttachmentStore {
	return &S3AttachmentStore{
		attachmentLimits: attachmentLimits{maxFileBytes: cfg.MaxFileBytes, maxFiles: cfg.MaxFiles},
		objects:          objects,
		logger:           logger.With().Str("component", "attachments").Logger(),
		now:              time.Now,
	}
}

// Store uploads every file; objects already uploaded are removed when a later one fails.
// Each body is buffered (bounded by the size limit) so the upload is signed over a seekable payload.
func (s *S3AttachmentStore) Store(ctx context.Context, req AttachmentRequest) ([]domain.Attachment, error) {
	if err := s.checkAll(req.Files); err != nil {
		return nil, err
	}

	yearMonth := s.now().Format("200601")
	uploaded := make([]string, 0, len(req.Files))
	rollback := func() {
		// 요청 취소와 무관하게 정리
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		for _, key := range uploaded {
			if err := s.objects.Delete(cleanupCtx, key); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("orphaned attachment object")
			}
		}
	}

	attachments := make([]domain.Attachment, 0, len(req.Files))
	for _, f := range req.Files {
		if err := ctx.Err(); err != nil {
			rollback()
			return nil, err
		}

		var buf bytes.Buffer
		n, err := buf.ReadFrom(s.limit(f.Body))
		if err != nil {
			rollback()
			return nil, fmt.Errorf("%w: 파일 읽기 실패: %w", common.ErrTransientIO, err)
		}
		if err := s.tooLarge(n); err != nil {
			rollback()
			return nil, err
		}

		storedAs := uuid.NewString() + strings.ToLower(filepath.Ext(f.FileName))
		key := path.Join(req.ConversationID, yearMonth, storedAs)
		att := describe(f, req, storedAs, "", n, s.now())

		url, err := s.objects.Upload(ctx, key, bytes.NewReader(buf.Bytes()), att.MimeType)
		if err != nil {
			rollback()
			return nil, fmt.Errorf("%w: %w", common.ErrTransientIO, err)
		}
		uploaded = append(uploaded, key)

		att.URL = url
		attachments = append(attachments, att)
	}
	return attachments, nil
}
