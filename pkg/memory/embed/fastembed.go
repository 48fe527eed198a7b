//go:build fastembed

package embed

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedder runs a local ONNX embedding model. Queries and stored turns
// are embedded with the same query prefix so they share one vector space.
type FastEmbedder struct {
	m  *fastembed.FlagEmbedding
	bs int
}

func NewFastEmbedder(_ context.Context, opt *Options) (Embedder, error) {
	init := &fastembed.InitOptions{Model: fastembed.BGESmallENV15, CacheDir: ".fastembed"}
	if opt != nil {
		if m := strings.TrimSpace(opt.Model); m != "" {
			init.Model = fastembed.EmbeddingModel(m)
		}
		if opt.CacheDir != "" {
			init.CacheDir = opt.CacheDir
		}
		init.MaxLength = opt.MaxLength
	}
	m, err := fastembed.NewFlagEmbedding(init)
	if err != nil {
		return nil, fmt.Errorf("fastembed init: %w", err)
	}
	bs := 64
	if opt != nil && opt.BatchSize > 0 {
		bs = opt.BatchSize
	}
	if bs > 4*runtime.GOMAXPROCS(0) {
		bs = 4 * runtime.GOMAXPROCS(0)
	}
	return &FastEmbedder{m: m, bs: bs}, nil
}

func (e *FastEmbedder) Close() error {
	if e.m != nil {
		e.m.Destroy()
	}
	return nil
}

func (e *FastEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, err := e.m.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("query embed: %w", err)
	}
	return vec, nil
}
