package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gopherai-study/internal/ai"
	"gopherai-study/internal/model"
)

type recordingLLM struct {
	reply    string
	err      error
	messages []ai.ChatMessage
}

func (r *recordingLLM) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	r.messages = messages
	return r.reply, r.err
}

func TestAskService_RanksChunksByOverlap(t *testing.T) {
	h := newHarness(t, nil)
	h.ingest(t, "s1", "bio.pdf", pagedChunks(
		"The mitochondria produce energy for the cell.",
		"Chloroplasts capture light in plants.",
		"Ribosomes assemble proteins.",
	))
	llm := &recordingLLM{reply: "  Energy.  "}
	svc := NewAskService(h.filter, h.lifecycle, llm)

	res, err := svc.Ask(context.Background(), AskInput{SessionID: "s1", Question: "What do mitochondria produce?", TopK: 1})

	require.NoError(t, err)
	require.Equal(t, "Energy.", res.Answer)
	require.Len(t, res.Chunks, 1)
	require.Contains(t, res.Chunks[0].Content, "mitochondria")
	require.Len(t, llm.messages, 2)
	require.True(t, strings.Contains(llm.messages[1].Content, "mitochondria produce energy"))
}

func TestAskService_Errors(t *testing.T) {
	h := newHarness(t, nil)
	svc := NewAskService(h.filter, h.lifecycle, &recordingLLM{err: errors.New("down")})
	ctx := context.Background()

	_, err := svc.Ask(ctx, AskInput{SessionID: "s1"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Ask(ctx, AskInput{SessionID: "s1", Question: "anything?"})
	require.ErrorIs(t, err, ErrNoContent)

	h.ingest(t, "s1", "a.pdf", pagedChunks("content"))
	_, err = svc.Ask(ctx, AskInput{SessionID: "s1", Question: "anything?"})
	require.ErrorContains(t, err, "down")
}

func TestRankChunks_KeepsOrderAmongEquals(t *testing.T) {
	chunks := []model.DocumentChunk{{Content: "alpha"}, {Content: "beta"}, {Content: "gamma beta"}}

	got := rankChunks(chunks, "beta gamma", 3)

	require.Equal(t, "gamma beta", got[0].Content)
	require.Equal(t, "beta", got[1].Content)
	require.Equal(t, "alpha", got[2].Content)
}
