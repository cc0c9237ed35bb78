package uploads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

// Loader reads text files from disk and chunks them by format.
type Loader struct {
	Text     Chunker
	Markdown Chunker
}

// textOverlapWords is how many trailing words each plain-text chunk shares
// with the next.
const textOverlapWords = 16

// NewLoader returns a loader with the default chunkers.
func NewLoader(maxTokens int) *Loader {
	return &Loader{
		Text:     TextChunker{MaxTokens: maxTokens, Overlap: textOverlapWords},
		Markdown: MarkdownChunker{MaxTokens: maxTokens},
	}
}

func (l *Loader) chunkerFor(path string) (Chunker, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return l.Markdown, nil
	case "", ".txt", ".text", ".log", ".csv", ".json", ".yaml", ".yml", ".rst":
		return l.Text, nil
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
}

// LoadFile reads and chunks a single UTF-8 text file.
func (l *Loader) LoadFile(path string) ([]DocumentChunk, error) {
	chunker, err := l.chunkerFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not UTF-8 text: %w", path, ErrUnsupported)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	src := Source{Name: filepath.Base(path), URI: "file://" + filepath.ToSlash(abs)}
	return chunker.Chunk(ReaderWithName{Name: filepath.Base(path), Reader: strings.NewReader(string(data))}, src)
}

// LoadDocuments chunks every path and returns index documents in path order.
func (l *Loader) LoadDocuments(ctx context.Context, paths []string) ([]model.Document, error) {
	var docs []model.Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			docs = append(docs, c.Document())
		}
	}
	return docs, nil
}
