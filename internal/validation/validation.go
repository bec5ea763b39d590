// Package validation checks user input at the service edges: uploaded files,
// questions and filenames.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/docker/go-units"
)

const (
	DefaultMaxFileSize       int64 = 10 * units.MiB
	DefaultMaxQuestionLength       = 1000
	DefaultFilename                = "document.pdf"

	maxFilenameLength = 255
	magicWindow       = 1024
)

var (
	ErrNoFile          = errors.New("no file provided")
	ErrNotPDF          = errors.New("only PDF files are supported")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidPDF      = errors.New("file is not a valid PDF")
	ErrEmptyQuestion   = errors.New("question cannot be empty")
	ErrQuestionTooLong = errors.New("question too long")
	ErrQuestionContent = errors.New("question contains invalid content")
)

var suspiciousPatterns = []string{"<script", "javascript:", "data:", "vbscript:"}

// PDFFile checks an upload before extraction. head holds the first bytes of the file
// and may be nil to skip the signature check.
func PDFFile(filename string, size int64, head []byte, maxSize int64) error {
	if strings.TrimSpace(filename) == "" {
		return ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return ErrNotPDF
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if size > maxSize {
		return fmt.Errorf("%w: file size exceeds %s limit", ErrFileTooLarge, units.BytesSize(float64(maxSize)))
	}
	if size == 0 {
		return ErrEmptyFile
	}
	if head != nil && !LooksLikePDF(head) {
		return ErrInvalidPDF
	}
	return nil
}

// LooksLikePDF reports whether the PDF header appears near the start of head.
func LooksLikePDF(head []byte) bool {
	if len(head) > magicWindow {
		head = head[:magicWindow]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// Question trims q and checks it. It returns the trimmed question.
func Question(q string, maxLength int) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrEmptyQuestion
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxQuestionLength
	}
	if utf8.RuneCountInString(q) > maxLength {
		return "", fmt.Errorf("%w: question exceeds %d character limit", ErrQuestionTooLong, maxLength)
	}
	lower := strings.ToLower(q)
	for _, p := range suspiciousPatterns {
		if strings.Contains(lower, p) {
			return "", ErrQuestionContent
		}
	}
	return q, nil
}

// SanitizeFilename strips directories and characters that are unsafe in filenames,
// and caps the length while keeping the extension.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return DefaultFilename
	}
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) || r < 0x20 {
			return '_'
		}
		return r
	}, name)

	if utf8.RuneCountInString(name) > maxFilenameLength {
		ext := path.Ext(name)
		if utf8.RuneCountInString(ext) > 10 {
			ext = ""
		}
		base := []rune(strings.TrimSuffix(name, ext))
		name = string(base[:maxFilenameLength-utf8.RuneCountInString(ext)]) + ext
	}
	return name
}
