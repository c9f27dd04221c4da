package extract

import (
	"errors"
	"testing"
)

func TestFromBytesPlainText(t *testing.T) {
	result, err := FromBytes([]byte("hello world"), "text/plain")
	if err != nil {
		t.Fatalf("FromBytes() error = %v", err)
	}
	if result.CharacterCount != 11 {
		t.Fatalf("expected 11 characters, got %d", result.CharacterCount)
	}
	if result.WordCount != 2 {
		t.Fatalf("expected 2 words, got %d", result.WordCount)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected text %q", result.Text)
	}
}

func TestFromBytesCharsetParameter(t *testing.T) {
	result, err := FromBytes([]byte("hello"), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("FromBytes() error = %v", err)
	}
	if result.CharacterCount != 5 {
		t.Fatalf("expected 5 characters, got %d", result.CharacterCount)
	}
}

func TestFromBytesWordCountCollapsesWhitespace(t *testing.T) {
	result, err := FromBytes([]byte("  one\ttwo\n\nthree  "), "text/plain")
	if err != nil {
		t.Fatalf("FromBytes() error = %v", err)
	}
	if result.WordCount != 3 {
		t.Fatalf("expected 3 words, got %d", result.WordCount)
	}
}

func TestFromBytesRejectsWordDocuments(t *testing.T) {
	_, err := FromBytes([]byte("x"), "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestFromBytesRejectsEmptyText(t *testing.T) {
	_, err := FromBytes([]byte("   \n\t  "), "text/plain")
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestFromBytesRejectsCorruptPDF(t *testing.T) {
	_, err := FromBytes([]byte("not a pdf"), "application/pdf")
	if err == nil {
		t.Fatal("expected error for corrupt PDF data")
	}
}
