package uploads

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

// DocumentChunk represents a single chunk of text with provenance metadata.
type DocumentChunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// WithProvenance ensures provenance fields exist on the metadata map.
func (c DocumentChunk) WithProvenance(src Source, ingestedAt time.Time) DocumentChunk {
	meta := make(map[string]any, len(c.Metadata)+len(src.Additional)+4)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	if src.Name != "" {
		meta["source"] = src.Name
	}
	if src.URI != "" {
		meta["uri"] = src.URI
	}
	for k, v := range src.Additional {
		meta[k] = v
	}
	if _, ok := meta["ingested_at"]; !ok {
		meta["ingested_at"] = ingestedAt.UTC().Format(time.RFC3339)
	}
	if _, ok := meta["checksum"]; !ok {
		meta["checksum"] = checksum(c.Content)
	}
	c.Metadata = meta
	return c
}

// Document converts the chunk into an index document.
func (c DocumentChunk) Document() model.Document {
	return model.Document{ID: c.ID, Content: c.Content, Metadata: model.CloneMetadata(c.Metadata)}
}

// checksum calculates a deterministic checksum for provenance tracking.
func checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Source describes the logical origin of an upload.
type Source struct {
	Name       string
	URI        string
	Additional map[string]any
}

// ReaderWithName couples an io.Reader with an optional filename for chunkers.
type ReaderWithName struct {
	Name   string
	Reader io.Reader
}

// Chunker is implemented by upload chunkers.
type Chunker interface {
	Chunk(reader ReaderWithName, src Source) ([]DocumentChunk, error)
}

// ErrUnsupported is returned when no chunker handles a file.
var ErrUnsupported = errors.New("uploads: unsupported format")
