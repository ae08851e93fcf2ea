package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/submission-vault/internal/core/ports"
)

const pageSeparator = "\f"

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Extract returns the plain text of every page, pages joined with a form feed.
func (e *Extractor) Extract(ctx context.Context, objectID, filename string) (string, error) {
	reader, err := e.storage.Open(ctx, objectID)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source file: %w", err)
	}
	return extractText(ctx, raw, filename)
}

func extractText(ctx context.Context, raw []byte, filename string) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", filename, err)
	}

	pages := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d of %s: %w", i, filename, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return strings.Join(pages, pageSeparator), nil
}
