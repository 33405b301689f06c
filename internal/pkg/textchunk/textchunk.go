package textchunk

import (
	"strings"

	"gopherai-study/internal/model"
	"gopherai-study/internal/pkg/pdfextract"
)

const (
	DefaultSize    = 800
	DefaultOverlap = 80
)

// ChunkPages splits every page into overlapping windows of at most size runes.
// Windows never span pages so each chunk carries the page it came from.
func ChunkPages(pages []pdfextract.Page, size, overlap int) []model.ChunkInput {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 2
	}
	var out []model.ChunkInput
	for _, p := range pages {
		page := p.Number
		for _, text := range Split(p.Text, size, overlap) {
			out = append(out, model.ChunkInput{Content: text, PageNumber: &page})
		}
	}
	return out
}

// Split splits text into overlapping chunks by rune count. Blank windows are
// dropped.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[i:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		i += size - overlap
	}
	return chunks
}
