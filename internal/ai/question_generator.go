package ai

import (
	"context"
	"fmt"
	"strings"

	"gopherai-study/internal/model"
	"gopherai-study/internal/pkg/fingerprint"
)

const questionReplyFormat = `Reply with JSON only: {"questions":[{"prompt":string,"options":[4 strings],"correct_index":0-3,"explanation":string,"source":string}]}.`

type QuestionGenerator struct {
	llm Completer
}

func NewQuestionGenerator(llm Completer) *QuestionGenerator {
	return &QuestionGenerator{llm: llm}
}

type generatedQuestion struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	Source       string   `json:"source"`
}

// FromContent writes count questions answerable from content alone.
func (g *QuestionGenerator) FromContent(ctx context.Context, content string, count int, difficulty string) ([]model.Question, error) {
	if count <= 0 || strings.TrimSpace(content) == "" {
		return nil, nil
	}
	system := fmt.Sprintf("You write %s multiple choice quiz questions strictly grounded in the provided study material. Each question has exactly 4 options and one correct answer. %s",
		difficultyOrDefault(difficulty), questionReplyFormat)
	user := fmt.Sprintf("Write %d questions.\n\nMaterial:\n%s", count, content)
	questions, err := g.generate(ctx, system, user)
	if err != nil {
		return nil, err
	}
	contentFP := fingerprint.Text(content)
	for i := range questions {
		questions[i].Origin = model.QuestionOriginDocument
		questions[i].ContentFingerprint = contentFP
	}
	return questions, nil
}

// FromTopic writes count questions about topic without any source material.
func (g *QuestionGenerator) FromTopic(ctx context.Context, topic string, count int, difficulty string) ([]model.Question, error) {
	if count <= 0 {
		return nil, nil
	}
	system := fmt.Sprintf("You write %s multiple choice quiz questions about a study topic using general knowledge. Each question has exactly 4 options and one correct answer. %s",
		difficultyOrDefault(difficulty), questionReplyFormat)
	user := fmt.Sprintf("Write %d questions about: %s", count, topic)
	questions, err := g.generate(ctx, system, user)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Origin = model.QuestionOriginExternal
	}
	return questions, nil
}

func (g *QuestionGenerator) generate(ctx context.Context, system, user string) ([]model.Question, error) {
	reply, err := g.llm.Complete(ctx, []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions failed: %w", err)
	}
	var parsed struct {
		Questions []generatedQuestion `json:"questions"`
	}
	if err := decodeValidated(questionSchemaName, reply, &parsed); err != nil {
		return nil, err
	}
	out := make([]model.Question, 0, len(parsed.Questions))
	for _, q := range parsed.Questions {
		out = append(out, model.Question{
			ID:           fingerprint.Text(q.Prompt),
			Prompt:       strings.TrimSpace(q.Prompt),
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
			Source:       q.Source,
		})
	}
	return out, nil
}

func difficultyOrDefault(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "easy", "medium", "hard":
		return strings.ToLower(strings.TrimSpace(d))
	default:
		return "medium"
	}
}
