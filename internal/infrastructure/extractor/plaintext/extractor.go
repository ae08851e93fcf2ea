package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/submission-vault/internal/core/ports"
)

// maxTextBytes caps how much of a text file is read for validation.
const maxTextBytes = 16 << 20

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, objectID, filename string) (string, error) {
	reader, err := e.storage.Open(ctx, objectID)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxTextBytes))
	if err != nil {
		return "", fmt.Errorf("read source file: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file %s is not valid utf-8 text", filename)
	}
	return strings.TrimSpace(string(raw)), nil
}
