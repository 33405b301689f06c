package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"

	"gopherai-study/internal/ai"
	"gopherai-study/internal/model"
)

const defaultTopK = 5

var ErrNoContent = errors.New("session has no content to answer from")

type AskService struct {
	filter   *ContentFilter
	sessions SessionToucher
	llm      ai.Completer
}

func NewAskService(filter *ContentFilter, sessions SessionToucher, llm ai.Completer) *AskService {
	return &AskService{filter: filter, sessions: sessions, llm: llm}
}

// AskInput is a question about the session's documents, optionally scoped to
// some sections.
type AskInput struct {
	SessionID  string
	SectionIDs []string
	Question   string
	TopK       int
}

type AskResult struct {
	Answer string                `json:"answer"`
	Chunks []model.DocumentChunk `json:"chunks"`
}

// Ask ranks the scoped chunks by term overlap with the question and answers
// from the best ones.
func (s *AskService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrInvalidInput
	}
	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if err := s.sessions.Touch(ctx, sessionID, nil); err != nil {
		return nil, err
	}

	chunks, err := s.filter.ChunksForChat(ctx, sessionID, dedupe(input.SectionIDs))
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}
	selected := rankChunks(chunks, question, topK)

	var contextBlock strings.Builder
	for _, c := range selected {
		contextBlock.WriteString("\n---\n")
		if c.SectionTitle != "" {
			contextBlock.WriteString("[" + c.Filename + " / " + c.SectionTitle + "]\n")
		}
		contextBlock.WriteString(c.Content)
	}
	contextBlock.WriteString("\n---")

	systemContent := "You are a study assistant. Answer the user's question based only on the following context. If the context does not contain enough information, say so. Do not make up facts."
	userContent := "Context:" + contextBlock.String() + "\n\nQuestion: " + question + "\n\nAnswer:"

	answer, err := s.llm.Complete(ctx, []ai.ChatMessage{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	})
	if err != nil {
		return nil, err
	}
	return &AskResult{
		Answer: strings.TrimSpace(answer),
		Chunks: selected,
	}, nil
}

// rankChunks orders chunks by how many distinct question terms they contain,
// keeping document order among equals.
func rankChunks(chunks []model.DocumentChunk, question string, k int) []model.DocumentChunk {
	want := terms(question)
	type scored struct {
		chunk model.DocumentChunk
		score int
	}
	list := make([]scored, len(chunks))
	for i, c := range chunks {
		words := terms(c.Content + " " + c.SectionTitle)
		n := 0
		for t := range want {
			if _, ok := words[t]; ok {
				n++
			}
		}
		list[i] = scored{chunk: c, score: n}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })
	if k > len(list) {
		k = len(list)
	}
	out := make([]model.DocumentChunk, k)
	for i := 0; i < k; i++ {
		out[i] = list[i].chunk
	}
	return out
}

func terms(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 3 {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}
