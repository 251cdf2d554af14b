package services

import (
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSizeTokens    = 512
	DefaultChunkOverlapTokens = 50
	DefaultSeparator          = "\n\n"

	// charsPerToken approximates token counts from character counts.
	charsPerToken = 4
)

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// TextChunker splits text on a paragraph separator and packs the sections
// into chunks of at most targetChars characters. Each chunk after the first
// starts with the trailing sentence of the previous one.
type TextChunker struct {
	targetChars  int
	overlapChars int
	separator    string
	logger       *slog.Logger
}

var _ Chunker = (*TextChunker)(nil)

// NewTextChunker creates a paragraph chunker. Sizes are given in tokens and
// converted to characters at four characters per token. An empty separator
// selects DefaultSeparator.
func NewTextChunker(chunkSizeTokens, overlapTokens int, separator string) (*TextChunker, error) {
	if chunkSizeTokens <= 0 {
		return nil, &ConfigurationError{Component: "chunker", Reason: fmt.Sprintf("chunk size must be positive, got %d", chunkSizeTokens)}
	}
	if overlapTokens < 0 || overlapTokens >= chunkSizeTokens {
		return nil, &ConfigurationError{Component: "chunker", Reason: fmt.Sprintf("overlap %d must be in [0, %d)", overlapTokens, chunkSizeTokens)}
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	return &TextChunker{
		targetChars:  chunkSizeTokens * charsPerToken,
		overlapChars: overlapTokens * charsPerToken,
		separator:    separator,
		logger:       slog.Default().With("component", "chunker"),
	}, nil
}

// TargetChars returns the chunk size budget in characters.
func (c *TextChunker) TargetChars() int { return c.targetChars }

// OverlapChars returns the overlap budget in characters.
func (c *TextChunker) OverlapChars() int { return c.overlapChars }

// Chunk splits text into chunks carrying a copy of metadata plus chunk_index
// and chunk_size. A section longer than the budget becomes a chunk of its own
// and is never truncated.
func (c *TextChunker) Chunk(text string, metadata map[string]any) []models.Chunk {
	var chunks []models.Chunk
	sepLen := utf8.RuneCountInString(c.separator)
	current := ""

	for _, raw := range strings.Split(text, c.separator) {
		section := strings.TrimSpace(raw)
		if section == "" {
			continue
		}
		if current == "" {
			current = section
			continue
		}
		if utf8.RuneCountInString(current)+sepLen+utf8.RuneCountInString(section) > c.targetChars {
			chunks = append(chunks, newChunk(current, metadata, len(chunks)))
			current = c.seed(current, section)
			continue
		}
		current += c.separator + section
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, newChunk(current, metadata, len(chunks)))
	}
	return chunks
}

// ChunkDocuments chunks every document in order.
func (c *TextChunker) ChunkDocuments(docs []models.Document) []models.Chunk {
	return chunkDocuments(c, docs, c.logger)
}

// seed starts the buffer that follows closed. The overlap is dropped when it
// would push the new buffer past the budget on its own.
func (c *TextChunker) seed(closed, section string) string {
	overlap := c.overlap(closed)
	if overlap == "" {
		return section
	}
	size := utf8.RuneCountInString(overlap) + utf8.RuneCountInString(c.separator) + utf8.RuneCountInString(section)
	if size > c.targetChars {
		return section
	}
	return overlap + c.separator + section
}

// overlap returns the tail of text to repeat at the start of the next chunk,
// cut at the last sentence boundary when the tail contains one.
func (c *TextChunker) overlap(text string) string {
	if c.overlapChars == 0 {
		return ""
	}
	tail := text
	if runes := []rune(text); len(runes) > c.overlapChars {
		tail = string(runes[len(runes)-c.overlapChars:])
	}
	if parts := sentenceBoundary.Split(tail, -1); len(parts) > 1 {
		tail = parts[len(parts)-1]
	}
	return strings.TrimSpace(tail)
}

// RecursiveChunker delegates splitting to langchaingo's recursive character
// splitter and applies the same chunk metadata contract as TextChunker.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
	logger   *slog.Logger
}

var _ Chunker = (*RecursiveChunker)(nil)

// NewRecursiveChunker creates a recursive chunker with token-denominated sizes.
func NewRecursiveChunker(chunkSizeTokens, overlapTokens int) (*RecursiveChunker, error) {
	if chunkSizeTokens <= 0 {
		return nil, &ConfigurationError{Component: "chunker", Reason: fmt.Sprintf("chunk size must be positive, got %d", chunkSizeTokens)}
	}
	if overlapTokens < 0 || overlapTokens >= chunkSizeTokens {
		return nil, &ConfigurationError{Component: "chunker", Reason: fmt.Sprintf("overlap %d must be in [0, %d)", overlapTokens, chunkSizeTokens)}
	}
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSizeTokens*charsPerToken),
			textsplitter.WithChunkOverlap(overlapTokens*charsPerToken),
		),
		logger: slog.Default().With("component", "chunker"),
	}, nil
}

func (c *RecursiveChunker) Chunk(text string, metadata map[string]any) []models.Chunk {
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		c.logger.Warn("recursive split failed", "error", err)
		return nil
	}
	chunks := make([]models.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, newChunk(part, metadata, len(chunks)))
	}
	return chunks
}

func (c *RecursiveChunker) ChunkDocuments(docs []models.Document) []models.Chunk {
	return chunkDocuments(c, docs, c.logger)
}

// ChunkStats summarizes chunk sizes. An empty input yields the zero value.
func ChunkStats(chunks []models.Chunk) models.ChunkStats {
	if len(chunks) == 0 {
		return models.ChunkStats{}
	}
	stats := models.ChunkStats{TotalChunks: len(chunks)}
	for i, chunk := range chunks {
		size := utf8.RuneCountInString(chunk.Text)
		stats.TotalCharacters += size
		if i == 0 || size < stats.MinChunkSize {
			stats.MinChunkSize = size
		}
		if size > stats.MaxChunkSize {
			stats.MaxChunkSize = size
		}
	}
	stats.AvgChunkSize = float64(stats.TotalCharacters) / float64(len(chunks))
	return stats
}

func chunkDocuments(c Chunker, docs []models.Document, logger *slog.Logger) []models.Chunk {
	var all []models.Chunk
	for _, doc := range docs {
		metadata := doc.Metadata
		if _, ok := metadata["source"]; !ok && doc.Source != "" {
			metadata = maps.Clone(metadata)
			if metadata == nil {
				metadata = map[string]any{}
			}
			metadata["source"] = doc.Source
		}
		all = append(all, c.Chunk(doc.Content, metadata)...)
	}
	logger.Info("chunked documents", "documents", len(docs), "chunks", len(all))
	return all
}

func newChunk(text string, metadata map[string]any, index int) models.Chunk {
	text = strings.TrimSpace(text)
	meta := make(map[string]any, len(metadata)+2)
	maps.Copy(meta, metadata)
	meta["chunk_index"] = index
	meta["chunk_size"] = utf8.RuneCountInString(text)
	return models.Chunk{Text: text, Metadata: meta, ChunkIndex: index}
}
