package spreadsheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/submission-vault/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Extract flattens every sheet into lines of tab-separated cells; sheets are separated by a form feed.
func (e *Extractor) Extract(ctx context.Context, objectID, filename string) (string, error) {
	reader, err := e.storage.Open(ctx, objectID)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer reader.Close()

	book, err := excelize.OpenReader(reader)
	if err != nil {
		return "", fmt.Errorf("parse workbook %s: %w", filename, err)
	}
	defer book.Close()

	sheets := make([]string, 0, len(book.GetSheetList()))
	for _, name := range book.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := book.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("read sheet %q of %s: %w", name, filename, err)
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		sheets = append(sheets, strings.Join(lines, "\n"))
	}
	return strings.Join(sheets, "\f"), nil
}
