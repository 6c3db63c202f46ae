package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jotbill/jotbill-server/src/logger"
)

// isBinaryContent reports whether a buffer looks like binary rather than
// a text statement export.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	return !utf8.Valid(buf)
}

// allowedDetectedTypes lists the sniffed content types accepted for a
// bill CSV upload.
var allowedDetectedTypes = map[string]bool{
	"text/plain":      true,
	"text/csv":        true,
	"application/csv": true,
}

// ValidateTextUpload inspects the first kilobyte of an uploaded file and
// rejects anything that is not plain text. The read pointer is rewound
// so the parser sees the full file afterwards.
func ValidateTextUpload(file io.ReadSeeker) error {
	if file == nil {
		return fmt.Errorf("file is nil")
	}
	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for content checking: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file read pointer: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file is empty")
	}
	if isBinaryContent(buffer[:n]) {
		logger.L.Warn("Upload rejected: binary content in text upload")
		return fmt.Errorf("file appears to be binary, not a text CSV")
	}
	detected := strings.ToLower(strings.Split(http.DetectContentType(buffer[:n]), ";")[0])
	if !allowedDetectedTypes[detected] {
		logger.L.Warn("Upload rejected: disallowed content type", "detected", detected)
		return fmt.Errorf("detected file content type %q is not allowed", detected)
	}
	return nil
}
