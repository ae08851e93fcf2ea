package extractor

import (
	"context"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

// Router picks an extractor by file extension. Files with no registered
// extractor yield empty text, which the validator treats as zero words.
type Router struct {
	byExtension map[string]ports.TextExtractor
}

func NewRouter() *Router {
	return &Router{byExtension: make(map[string]ports.TextExtractor)}
}

// Register binds extractor to each extension; later registrations win.
func (r *Router) Register(extractor ports.TextExtractor, extensions ...string) *Router {
	for _, ext := range extensions {
		if normalized := domain.NormalizeExtension(ext); normalized != "" {
			r.byExtension[normalized] = extractor
		}
	}
	return r
}

func (r *Router) Extract(ctx context.Context, objectID, filename string) (string, error) {
	extractor, ok := r.byExtension[domain.ExtensionOf(filename)]
	if !ok {
		return "", nil
	}
	return extractor.Extract(ctx, objectID, filename)
}
