// Package extract turns uploaded files into plain text for diligence review.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedType is returned for any MIME type other than PDF or
	// plain text. Word documents are explicitly not supported.
	ErrUnsupportedType = errors.New("unsupported file type: only PDF and plain text files are supported")
	// ErrEmptyDocument is returned when extraction succeeds but yields no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// Result is the outcome of a successful extraction.
type Result struct {
	Text           string
	CharacterCount int
	WordCount      int
}

// FromBytes extracts plain text from a file based on its declared MIME type.
func FromBytes(data []byte, mimeType string) (Result, error) {
	mimeType = normalizeMIME(mimeType)

	var (
		text string
		err  error
	)
	switch mimeType {
	case "application/pdf":
		text, err = pdfText(data)
		if err != nil {
			return Result{}, fmt.Errorf("parse pdf: %w", err)
		}
	case "text/plain":
		text = string(data)
	default:
		return Result{}, ErrUnsupportedType
	}

	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyDocument
	}

	return Result{
		Text:           text,
		CharacterCount: len(text),
		WordCount:      len(strings.Fields(text)),
	}, nil
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		builder.WriteString(content)
		if i < pages {
			builder.WriteString("\n")
		}
	}
	return builder.String(), nil
}
