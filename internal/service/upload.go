package service

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/exam-marker-api/internal/observability"
)

var (
	// ErrUploadRequired indicates no file was attached.
	ErrUploadRequired = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// upload is a fully buffered multipart file with its sniffed MIME type.
type upload struct {
	Name string
	Data []byte
	Mime string
}

// readUpload buffers at most maxSize bytes of file and checks the sniffed type
// against allow, which receives the lowercase MIME type without parameters.
func readUpload(file *multipart.FileHeader, maxSize int64, allow func(mime string) bool) (upload, error) {
	if file == nil {
		return upload{}, ErrUploadRequired
	}
	if file.Size > maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return upload{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return upload{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxSize+1)); err != nil {
		return upload{}, err
	}
	if int64(buf.Len()) > maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return upload{}, ErrUploadTooLarge
	}
	if buf.Len() == 0 {
		observability.UploadRejected().WithLabelValues("empty").Inc()
		return upload{}, ErrUploadRequired
	}

	detected := normalizeMime(mimetype.Detect(buf.Bytes()).String())
	if !allow(detected) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return upload{}, ErrUploadTypeNotAllowed
	}

	return upload{Name: strings.TrimSpace(file.Filename), Data: buf.Bytes(), Mime: detected}, nil
}

func normalizeMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.IndexByte(lower, ';'); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	return lower
}

func isImageMime(m string) bool {
	return strings.HasPrefix(m, "image/")
}

func isSyllabusMime(m string) bool {
	return m == "text/plain" || m == "text/html"
}
