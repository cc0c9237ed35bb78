package uploads

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

const defaultTextBudget = 512

// TextChunker packs the paragraphs of a plain-text file into chunks of at
// most MaxTokens estimated tokens. A paragraph that fits in a fresh chunk is
// never split; longer ones break at word boundaries. Overlap words from the
// tail of a chunk are repeated at the head of the next so a sentence cut at a
// boundary stays retrievable.
type TextChunker struct {
	MaxTokens int
	Overlap   int
	Now       func() time.Time
}

func (t TextChunker) Chunk(reader ReaderWithName, src Source) ([]DocumentChunk, error) {
	raw, err := io.ReadAll(reader.Reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", reader.Name, err)
	}
	budget := t.MaxTokens
	if budget <= 0 {
		budget = defaultTextBudget
	}
	p := &paragraphPacker{budget: budget, overlap: max(t.Overlap, 0)}
	for _, para := range splitParagraphs(string(raw)) {
		p.addParagraph(para)
	}
	p.flush()
	if len(p.bodies) == 0 {
		return nil, nil
	}

	stamp := clock(t.Now)
	chunks := make([]DocumentChunk, len(p.bodies))
	for i, body := range p.bodies {
		chunks[i] = newChunk(i, body, reader.Name, src, stamp)
	}
	return chunks, nil
}

// splitParagraphs returns the words of each blank-line separated block.
func splitParagraphs(text string) [][]string {
	var (
		out [][]string
		cur []string
	)
	for _, line := range strings.Split(text, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, words...)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

type paragraphPacker struct {
	budget  int
	overlap int

	paras  [][]string // pending chunk; paragraphs rejoin with a blank line
	tokens int
	dirty  bool // pending holds words beyond the carried overlap
	bodies []string
}

func (p *paragraphPacker) addParagraph(words []string) {
	cost := 0
	for _, w := range words {
		cost += tokenEstimate(w)
	}
	if p.dirty && p.tokens+cost > p.budget && cost <= p.budget {
		p.flush()
	}
	for i, w := range words {
		p.addWord(w, i == 0)
	}
}

func (p *paragraphPacker) addWord(word string, startsParagraph bool) {
	cost := tokenEstimate(word)
	if p.tokens+cost > p.budget {
		if p.dirty {
			p.flush()
		}
		// the carried overlap alone leaves no room
		if p.tokens+cost > p.budget {
			p.paras, p.tokens = nil, 0
		}
	}
	if startsParagraph || len(p.paras) == 0 {
		p.paras = append(p.paras, nil)
	}
	last := len(p.paras) - 1
	p.paras[last] = append(p.paras[last], word)
	p.tokens += cost
	p.dirty = true
}

func (p *paragraphPacker) flush() {
	if !p.dirty {
		return
	}
	blocks := make([]string, len(p.paras))
	for i, para := range p.paras {
		blocks[i] = strings.Join(para, " ")
	}
	p.bodies = append(p.bodies, strings.Join(blocks, "\n\n"))

	var carry []string
	if p.overlap > 0 && len(p.paras) > 0 {
		tail := p.paras[len(p.paras)-1]
		carry = append(carry, tail[max(len(tail)-p.overlap, 0):]...)
	}
	p.paras, p.tokens, p.dirty = nil, 0, false
	if len(carry) == 0 {
		return
	}
	p.paras = [][]string{carry}
	for _, w := range carry {
		p.tokens += tokenEstimate(w)
	}
}

// tokenEstimate assumes roughly four characters per token, minimum one.
func tokenEstimate(word string) int {
	n := utf8.RuneCountInString(word)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

func newChunk(idx int, body, name string, src Source, stamp time.Time) DocumentChunk {
	return DocumentChunk{
		ID:       chunkID(name, idx),
		Content:  strings.TrimSpace(body),
		Metadata: map[string]any{"chunk_index": idx},
	}.WithProvenance(src, stamp)
}

var idUnsafe = strings.NewReplacer(" ", "_", "/", "_", "\\", "_")

// chunkID is "<file>#<n>", or "chunk-<n>" for anonymous readers.
func chunkID(name string, idx int) string {
	base := idUnsafe.Replace(strings.TrimSpace(name))
	if base == "" {
		return fmt.Sprintf("chunk-%d", idx)
	}
	return fmt.Sprintf("%s#%d", base, idx)
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
