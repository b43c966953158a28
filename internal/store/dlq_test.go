package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/readiness-engine/internal/resilience"
)

func dlqEntry(id, errType string, nextRetry time.Time) resilience.DLQEntry {
	now := time.Now()
	return resilience.DLQEntry{
		ID:           id,
		CompanyID:    "acme",
		Operation:    "assess",
		Input:        json.RawMessage(`{"company_id":"acme"}`),
		Error:        "database is locked",
		ErrorType:    errType,
		MaxRetries:   3,
		NextRetryAt:  nextRetry,
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

func TestSQLite_DLQ_EnqueueAndDequeue(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnqueueDLQ(ctx, dlqEntry("dlq-1", resilience.ErrorTransient, time.Now().Add(-time.Minute))))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dlq-1", entries[0].ID)
	assert.Equal(t, "acme", entries[0].CompanyID)
	assert.Equal(t, "assess", entries[0].Operation)
	assert.JSONEq(t, `{"company_id":"acme"}`, string(entries[0].Input))
	assert.Equal(t, 0, entries[0].RetryCount)
}

func TestSQLite_DLQ_DequeueFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)

	require.NoError(t, st.EnqueueDLQ(ctx, dlqEntry("t", resilience.ErrorTransient, past)))
	require.NoError(t, st.EnqueueDLQ(ctx, dlqEntry("p", resilience.ErrorPermanent, past)))
	drift := dlqEntry("d", resilience.ErrorTransient, past)
	drift.Operation = "drift"
	require.NoError(t, st.EnqueueDLQ(ctx, drift))
	require.NoError(t, st.EnqueueDLQ(ctx, dlqEntry("future", resilience.ErrorTransient, time.Now().Add(time.Hour))))
	exhausted := dlqEntry("x", resilience.ErrorTransient, past)
	exhausted.RetryCount = 3
	require.NoError(t, st.EnqueueDLQ(ctx, exhausted))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: resilience.ErrorTransient})
	require.NoError(t, err)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	assert.ElementsMatch(t, []string{"t", "d"}, ids)

	entries, err = st.DequeueDLQ(ctx, resilience.DLQFilter{Operation: "drift"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "d", entries[0].ID)
}

func TestSQLite_DLQ_IncrementRemoveCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.EnqueueDLQ(ctx, dlqEntry("dlq-1", resilience.ErrorTransient, time.Now().Add(-time.Minute))))

	require.NoError(t, st.IncrementDLQRetry(ctx, "dlq-1", time.Now().Add(-time.Second), "still locked"))
	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.Equal(t, "still locked", entries[0].Error)

	err = st.IncrementDLQRetry(ctx, "missing", time.Now(), "x")
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, st.RemoveDLQ(ctx, "dlq-1"))
	n, err = st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_DLQ_EnqueueReplace(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e := dlqEntry("dlq-1", resilience.ErrorTransient, time.Now().Add(-time.Minute))
	require.NoError(t, st.EnqueueDLQ(ctx, e))
	e.Error = "deadlock detected"
	e.RetryCount = 2
	require.NoError(t, st.EnqueueDLQ(ctx, e))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "deadlock detected", entries[0].Error)
	assert.Equal(t, 2, entries[0].RetryCount)
}
