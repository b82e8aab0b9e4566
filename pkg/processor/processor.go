package processor

import (
	"strings"

	"github.com/xhad/notesqa/internal/models"
)

type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

// Processor splits answers into overlapping, sentence-aligned chunks for
// embedding.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 1
	}

	return Processor{
		config: config,
	}
}

// Process chunks each record's response. The question is prefixed to the
// first chunk so it is searchable too. Records with an empty response are
// skipped.
func (p *Processor) Process(records []models.AnswerRecord) ([]models.ProcessedAnswer, error) {
	var processed []models.ProcessedAnswer

	for _, record := range records {
		text := cleanText(record.Response)
		if text == "" {
			continue
		}

		chunks := p.splitIntoChunks(text)
		if q := cleanText(record.Question); q != "" && len(chunks) > 0 {
			chunks[0] = q + "\n" + chunks[0]
		}

		processed = append(processed, models.ProcessedAnswer{
			AnswerRecord: record,
			Chunks:       chunks,
		})
	}

	return processed, nil
}

func cleanText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string
	current := strings.Builder{}

	for _, sentence := range splitIntoSentences(text) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > p.config.ChunkSize {
			chunk := strings.TrimSpace(current.String())
			if len(chunk) >= p.config.MinChunkLength {
				chunks = append(chunks, chunk)
			}

			// Carry the tail of the previous chunk over, starting on a word.
			overlap := tail(chunk, p.config.ChunkOverlap)
			current.Reset()
			if overlap != "" {
				current.WriteString(overlap)
				current.WriteString(" ")
			}
		}

		current.WriteString(sentence)
		current.WriteString(" ")
	}

	if chunk := strings.TrimSpace(current.String()); len(chunk) >= p.config.MinChunkLength {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// tail returns at most n trailing bytes of s, trimmed forward to a word start.
func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	t := s[len(s)-n:]
	if i := strings.IndexByte(t, ' '); i >= 0 {
		t = t[i+1:]
	} else {
		t = ""
	}
	return strings.TrimSpace(t)
}

func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
