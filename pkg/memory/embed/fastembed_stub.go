//go:build !fastembed

package embed

import (
	"context"
	"errors"
)

// NewFastEmbedder is unavailable unless the binary is built with -tags fastembed.
func NewFastEmbedder(context.Context, *Options) (Embedder, error) {
	return nil, errors.New("fastembed support not included; rebuild with -tags fastembed")
}
