//go:build !fastembed

package embed

import (
	"context"
	"errors"
)

var errFastEmbedMissing = errors.New("fastembed support not included; rebuild with -tags fastembed")

type FastEmbedder struct{}

func defaultFastEmbedOptions() *Options { return nil }

func NewFastEmbedder(context.Context, *Options) (*FastEmbedder, error) {
	return nil, errFastEmbedMissing
}

func (*FastEmbedder) Close() error { return nil }

func (*FastEmbedder) EmbedPassages(context.Context, []string) ([][]float32, error) {
	return nil, errFastEmbedMissing
}

func (*FastEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errFastEmbedMissing
}
