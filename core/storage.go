package core

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrEmptyFile       = NewError(KindValidation, "uploaded file is empty")
	ErrInvalidFileType = NewError(KindValidation, "file type not allowed")

	// accepted upload types; children of these (e.g. docx < zip) are accepted too
	allowedMIMETypes = []string{
		"application/pdf",
		"application/zip",
		"application/msword",
		"application/vnd.oasis.opendocument.text",
		"application/vnd.ms-excel",
		"application/vnd.ms-powerpoint",
		"text/plain",
		"text/csv",
		"image/png",
		"image/jpeg",
		"image/gif",
	}
)

type (
	// Upload is a file received from a client, held in memory.
	Upload struct {
		Filename string
		Content  []byte
	}

	// FileStorage stores uploaded bytes and hands back a reference to them.
	FileStorage interface {
		Store(ctx context.Context, scope, filename string, content []byte) (string, error)
		Delete(ctx context.Context, ref string) error
	}
)

// Validate checks that the upload is not empty and that its sniffed content type is allowed.
func (u Upload) Validate() error {
	if len(u.Content) == 0 {
		return ErrEmptyFile
	}
	for mtype := mimetype.Detect(u.Content); mtype != nil; mtype = mtype.Parent() {
		for _, allowed := range allowedMIMETypes {
			if mtype.Is(allowed) {
				return nil
			}
		}
	}
	return ErrInvalidFileType
}

// ValidateUploads reports the first invalid upload under field, as "<file name>: <reason>".
func ValidateUploads(field string, uploads []Upload) error {
	for _, u := range uploads {
		if err := u.Validate(); err != nil {
			return NewValidationError(err, FieldError{Field: field, Error: u.Filename + ": " + err.Error()})
		}
	}
	return nil
}

// DeleteFiles removes stored files; failures are logged and otherwise ignored.
func DeleteFiles(ctx context.Context, storage FileStorage, logger Logger, refs ...string) {
	for _, ref := range refs {
		if err := storage.Delete(ctx, ref); err != nil {
			logger.Warn(fmt.Sprintf("deleting file %q: %v", ref, err), err)
		}
	}
}
