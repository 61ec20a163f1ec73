package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uavlogviewer/chatbot/pkg/ingest"
	"github.com/uavlogviewer/chatbot/pkg/validator"
)

func sampleLog() ingest.ParsedLog {
	return ingest.ParsedLog{
		"ATT": map[string]any{
			"time_boot_ms": map[string]any{"0": 1000.0, "1": 2000.0},
			"Roll":         map[string]any{"0": 1.0, "1": 2.0},
		},
	}
}

func TestCreateIngestsAndRegistersSession(t *testing.T) {
	r := NewRegistry(time.Hour)
	sess, err := r.Create(context.Background(), sampleLog())
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	assert.Contains(t, sess.TablesAvailable, "att_data")
	assert.Equal(t, 1, r.Count())

	res, err := sess.Store().Query(context.Background(), "SELECT COUNT(*) FROM att_data")
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Rows[0][0].Real)
}

func TestGetTouchesLastAccess(t *testing.T) {
	r := NewRegistry(time.Hour)
	sess, err := r.Create(context.Background(), sampleLog())
	require.NoError(t, err)

	first := sess.LastAccess()
	time.Sleep(2 * time.Millisecond)

	got := r.Get(sess.ID)
	require.NotNil(t, got)
	assert.True(t, got.LastAccess().After(first))
}

func TestGetReturnsNilForUnknownID(t *testing.T) {
	r := NewRegistry(time.Hour)
	assert.Nil(t, r.Get("does-not-exist"))
}

func TestGetEvictsExpiredSession(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	sess, err := r.Create(context.Background(), sampleLog())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, r.Get(sess.ID))
	assert.Equal(t, 0, r.Count())
}

func TestSweepEvictsAllExpiredSessions(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	_, err := r.Create(context.Background(), sampleLog())
	require.NoError(t, err)
	_, err = r.Create(context.Background(), sampleLog())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	evicted := r.Sweep()
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, r.Count())
}

func TestAppendTurnTrimsToTrailingWindow(t *testing.T) {
	r := NewRegistry(time.Hour)
	sess, err := r.Create(context.Background(), sampleLog())
	require.NoError(t, err)

	for i := 0; i < maxHistoryTurns+5; i++ {
		sess.AppendTurn(RoleUser, "turn")
	}
	assert.Len(t, sess.History(), maxHistoryTurns)
}

func TestAppendValidationTrimsToTrailingWindow(t *testing.T) {
	r := NewRegistry(time.Hour)
	sess, err := r.Create(context.Background(), sampleLog())
	require.NoError(t, err)

	for i := 0; i < maxValidationHistory+5; i++ {
		sess.AppendValidation(validator.Report{TotalQueries: i})
	}
	history := sess.ValidationHistory()
	require.Len(t, history, maxValidationHistory)
	assert.Equal(t, maxValidationHistory+4, history[len(history)-1].TotalQueries)
}

func TestStartSweeperEvictsExpiredSessions(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	_, err := r.Create(context.Background(), sampleLog())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r.StartSweeper(ctx)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, r.Count())
	cancel()
}
