package service

import (
	"context"
	"io"

	"github.com/damoang/angple-messenger/internal/domain"
)

// AttachmentFile one uploaded file handed to the attachment subsystem
type AttachmentFile struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

// AttachmentRequest files to validate, store and describe for one message
type AttachmentRequest struct {
	ConversationID string
	ActorID        string
	Content        string
	Files          []AttachmentFile
}

// AttachmentSubsystem stores files and returns their attachment records.
// Validation, virus scanning and image processing happen behind this interface.
type AttachmentSubsystem interface {
	Store(ctx context.Context, req AttachmentRequest) ([]domain.Attachment, error)
}
