package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uavlogviewer/chatbot/pkg/docindex"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float64, error) {
	f.calls++
	out := make([][]float64, len(inputs))
	for i := range inputs {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

func TestRunAllRefreshesDocs(t *testing.T) {
	embedder := &fakeEmbedder{}
	idx := docindex.New(docindex.Config{CacheDir: t.TempDir()}, embedder)

	svc := NewService(time.Hour, idx)
	svc.runAll(context.Background())

	status := idx.Status()
	assert.True(t, status.UsingSeed)
	assert.Greater(t, status.ChunkCount, 0)
	assert.Greater(t, embedder.calls, 0)
}

func TestRunAllToleratesNilIndex(t *testing.T) {
	svc := NewService(time.Hour, nil)
	assert.NotPanics(t, func() { svc.runAll(context.Background()) })
}

func TestStartStopRunsOnSchedule(t *testing.T) {
	embedder := &fakeEmbedder{}
	idx := docindex.New(docindex.Config{CacheDir: t.TempDir()}, embedder)

	svc := NewService(10*time.Millisecond, idx)
	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return embedder.calls > 0
	}, time.Second, 5*time.Millisecond)
}
