package uploads

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"time"
)

var headingRegexp = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// MarkdownChunker groups text under headings while respecting the token budget.
type MarkdownChunker struct {
	MaxTokens int
	Now       func() time.Time
}

func (m MarkdownChunker) Chunk(reader ReaderWithName, src Source) ([]DocumentChunk, error) {
	budget := m.MaxTokens
	if budget <= 0 {
		budget = 400
	}
	now := clock(m.Now)
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader.Reader); err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(strings.NewReader(buf.String()))

	var (
		chunks     []DocumentChunk
		builder    strings.Builder
		heading    string
		tokenCount int
	)

	emit := func() {
		if strings.TrimSpace(builder.String()) == "" {
			builder.Reset()
			return
		}
		chunk := newChunk(len(chunks), builder.String(), reader.Name, src, now)
		if heading != "" {
			chunk.Metadata["section_heading"] = heading
		}
		chunks = append(chunks, chunk)
		builder.Reset()
		tokenCount = 0
	}

	for scanner.Scan() {
		line := scanner.Text()
		if matches := headingRegexp.FindStringSubmatch(line); len(matches) == 3 {
			emit()
			heading = strings.TrimSpace(matches[2])
			continue
		}
		if strings.TrimSpace(line) == "" {
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			continue
		}
		estimated := 0
		for _, w := range strings.Fields(line) {
			estimated += tokenEstimate(w)
		}
		if tokenCount+estimated > budget && builder.Len() > 0 {
			emit()
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(line)
		tokenCount += estimated
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	emit()
	return chunks, nil
}
