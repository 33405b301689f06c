package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"gopherai-study/internal/app"
	"gopherai-study/internal/model"
)

type fakeIngester struct {
	err   error
	calls []app.IngestInput
}

func (f *fakeIngester) Ingest(_ context.Context, input app.IngestInput) (*app.IngestResult, error) {
	f.calls = append(f.calls, input)
	if f.err != nil {
		return nil, f.err
	}
	return &app.IngestResult{SessionID: input.SessionID, Filename: input.Filename}, nil
}

func jobBody(t *testing.T) []byte {
	t.Helper()
	uid := uint(4)
	body, err := json.Marshal(model.IngestJob{
		SessionID: "s1",
		Filename:  "a.pdf",
		UserID:    &uid,
		Chunks:    []model.ChunkInput{{Content: "hello"}},
	})
	require.NoError(t, err)
	return body
}

func TestIngestWorkerHandle(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want disposition
	}{
		{"stored", nil, ack},
		{"invalid input is not retried", app.ErrUnsupportedContent, ack},
		{"storage outage is requeued", fmt.Errorf("store chunks: %w: %w", app.ErrStorageUnavailable, errors.New("conn refused")), requeue},
		{"unknown failure is dropped", errors.New("boom"), drop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &fakeIngester{err: tt.err}
			w := NewIngestWorker(nil, ing, "q")

			require.Equal(t, tt.want, w.handle(context.Background(), jobBody(t)))
			require.Len(t, ing.calls, 1)
			require.Equal(t, "s1", ing.calls[0].SessionID)
			require.EqualValues(t, 4, *ing.calls[0].UserID)
		})
	}
}

func TestIngestWorkerDropsUndecodableJob(t *testing.T) {
	ing := &fakeIngester{}
	w := NewIngestWorker(nil, ing, "q")

	require.Equal(t, drop, w.handle(context.Background(), []byte("{not json")))
	require.Empty(t, ing.calls)
}
