package ai

import (
	"context"
	"fmt"
	"strings"

	"gopherai-study/internal/model"
)

const boundarySystemPrompt = `You split study documents into sections.
The document is given as numbered chunks in the form [chunk N] text.
Reply with JSON only: {"sections":[{"title":string,"level":integer,"page_number":integer|null,"start_chunk":integer,"end_chunk":integer,"parent":integer|null}]}.
level 1 is a top-level heading. parent is the index in your sections list of the enclosing section.
Sections must be ordered by start_chunk and use chunk numbers from the document.`

// maxBoundaryInputChars caps the text sent to the model.
const maxBoundaryInputChars = 24000

type BoundaryExtractor struct {
	llm Completer
}

func NewBoundaryExtractor(llm Completer) *BoundaryExtractor {
	return &BoundaryExtractor{llm: llm}
}

// RenderChunks lays chunks out with their indexes so the model can refer to them.
func RenderChunks(chunks []model.ChunkInput) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[chunk %d] %s\n", i, strings.TrimSpace(c.Content))
		if b.Len() >= maxBoundaryInputChars {
			break
		}
	}
	out := b.String()
	if len(out) > maxBoundaryInputChars {
		out = out[:maxBoundaryInputChars]
	}
	return out
}

// ExtractSections asks the model for section proposals. The reply is only
// checked for shape; ranges are left for the normalizer to judge.
func (e *BoundaryExtractor) ExtractSections(ctx context.Context, documentText string, chunkCount int) ([]model.RawSectionProposal, error) {
	messages := []ChatMessage{
		{Role: "system", Content: boundarySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("The document has %d chunks.\n\n%s", chunkCount, documentText)},
	}
	reply, err := e.llm.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("extract sections failed: %w", err)
	}
	var parsed struct {
		Sections []model.RawSectionProposal `json:"sections"`
	}
	if err := decodeValidated(boundarySchemaName, reply, &parsed); err != nil {
		return nil, err
	}
	return parsed.Sections, nil
}
