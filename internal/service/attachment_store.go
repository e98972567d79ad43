package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// File extension constants
const (
	extJPG  = ".jpg"
	extJPEG = ".jpeg"
	extPNG  = ".png"
	extGIF  = ".gif"
	extWebP = ".webp"
	extPDF  = ".pdf"
	extZip  = ".zip"
	extTxt  = ".txt"
)

// 위험한 확장자 차단
var blockedExts = map[string]bool{".exe": true, ".bat": true, ".cmd": true, ".sh": true, ".php": true, ".jsp": true, ".asp": true}

// attachmentLimits upload limits shared by every store
type attachmentLimits struct {
	maxFileBytes int64
	maxFiles     int
}

func (l attachmentLimits) checkAll(files []AttachmentFile) error {
	if l.maxFiles > 0 && len(files) > l.maxFiles {
		return fmt.Errorf("%w: at most %d files per message", common.ErrInvalidInput, l.maxFiles)
	}
	for _, f := range files {
		if err := l.check(f); err != nil {
			return err
		}
	}
	return nil
}

func (l attachmentLimits) check(f AttachmentFile) error {
	if strings.TrimSpace(f.FileName) == "" || f.Body == nil {
		return fmt.Errorf("%w: file name and body are required", common.ErrInvalidInput)
	}
	ext := strings.ToLower(filepath.Ext(f.FileName))
	if blockedExts[ext] {
		return fmt.Errorf("%w: 허용되지 않는 파일 형식입니다: %s", common.ErrInvalidInput, ext)
	}
	if l.maxFileBytes > 0 && f.Size > l.maxFileBytes {
		return fmt.Errorf("%w: %s exceeds %d bytes", common.ErrInvalidInput, f.FileName, l.maxFileBytes)
	}
	return nil
}

// limit caps body at maxFileBytes+1 so an oversized upload is detectable
func (l attachmentLimits) limit(body io.Reader) io.Reader {
	if l.maxFileBytes > 0 {
		return io.LimitReader(body, l.maxFileBytes+1)
	}
	return body
}

func (l attachmentLimits) tooLarge(n int64) error {
	if l.maxFileBytes > 0 && n > l.maxFileBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", common.ErrInvalidInput, l.maxFileBytes)
	}
	return nil
}

// describe builds the attachment record for a stored file
func describe(f AttachmentFile, req AttachmentRequest, storedAs, url string, size int64, now time.Time) domain.Attachment {
	mimeType := f.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = detectContentType(filepath.Ext(f.FileName))
	}
	meta, _ := json.Marshal(map[string]string{"uploaded_by": req.ActorID, "stored_as": storedAs})
	return domain.Attachment{
		FileName:  filepath.Base(f.FileName),
		MimeType:  mimeType,
		Size:      size,
		URL:       url,
		Meta:      datatypes.JSON(meta),
		CreatedAt: now,
	}
}

// DiskAttachmentStore keeps attachment files on the local filesystem
type DiskAttachmentStore struct {
	attachmentLimits
	dir     string
	baseURL string
	now     func() time.Time
}

// NewDiskAttachmentStore creates an attachment subsystem rooted at cfg.Dir
func NewDiskAttachmentStore(cfg config.UploadsConfig) *DiskAttachmentStore {
	return &DiskAttachmentStore{
		attachmentLimits: attachmentLimits{maxFileBytes: cfg.MaxFileBytes, maxFiles: cfg.MaxFiles},
		dir:              cfg.Dir,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		now:              time.Now,
	}
}

// Store validates and saves every file. Nothing is left on disk when any file fails.
func (s *DiskAttachmentStore) Store(ctx context.Context, req AttachmentRequest) ([]domain.Attachment, error) {
	if err := s.checkAll(req.Files); err != nil {
		return nil, err
	}

	yearMonth := s.now().Format("200601")
	dirPath := filepath.Join(s.dir, req.ConversationID, yearMonth)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: 디렉토리 생성 실패: %w", common.ErrTransientIO, err)
	}

	saved := make([]string, 0, len(req.Files))
	cleanup := func() {
		for _, p := range saved {
			os.Remove(p)
		}
	}

	attachments := make([]domain.Attachment, 0, len(req.Files))
	for _, f := range req.Files {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}

		ext := strings.ToLower(filepath.Ext(f.FileName))
		savedName := uuid.NewString() + ext
		savePath := filepath.Join(dirPath, savedName)
		size, err := s.save(savePath, f.Body)
		if err != nil {
			os.Remove(savePath)
			cleanup()
			return nil, err
		}
		saved = append(saved, savePath)

		url := s.baseURL + "/" + path.Join(req.ConversationID, yearMonth, savedName)
		attachments = append(attachments, describe(f, req, savedName, url, size, s.now()))
	}
	return attachments, nil
}

// save copies body to savePath; the declared size is not trusted
func (s *DiskAttachmentStore) save(savePath string, body io.Reader) (int64, error) {
	dst, err := os.Create(savePath)
	if err != nil {
		return 0, fmt.Errorf("%w: 파일 생성 실패: %w", common.ErrTransientIO, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, s.limit(body))
	if err != nil {
		return 0, fmt.Errorf("%w: 파일 저장 실패: %w", common.ErrTransientIO, err)
	}
	if err := s.tooLarge(n); err != nil {
		return 0, err
	}
	return n, nil
}

// detectContentType returns content type from file extension
func detectContentType(ext string) string {
	switch strings.ToLower(ext) {
	case extJPG, extJPEG:
		return "image/jpeg"
	case extPNG:
		return "image/png"
	case extGIF:
		return "image/gif"
	case extWebP:
		return "image/webp"
	case extPDF:
		return "application/pdf"
	case extZip:
		return "application/zip"
	case extTxt:
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
