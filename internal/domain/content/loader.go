package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
)

// Loader turns a URL or path into a Content.
type Loader interface {
	Load(ctx context.Context, urlOrPath string) (*Content, error)
}

// FileLoader reads Content previously serialized as JSON.
type FileLoader struct{}

func (FileLoader) Load(ctx context.Context, path string) (*Content, error) {
	op := "load " + path
	if err := ctx.Err(); err != nil {
		return nil, apperr.Load(op, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Load(op, err)
	}
	var c Content
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, apperr.Load(op, fmt.Errorf("decode content json: %w", err))
	}
	if c.Source.Format != "" && !c.Source.Format.Valid() {
		return nil, apperr.Load(op, fmt.Errorf("unsupported format %q", c.Source.Format))
	}
	if strings.TrimSpace(c.PromptText()) == "" {
		return nil, apperr.Load(op, fmt.Errorf("content has neither text nor summary"))
	}
	return &c, nil
}
