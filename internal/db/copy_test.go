package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var signalColumns = []string{"id", "company_id", "severity", "payload"}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "signals", signalColumns, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_NoColumns(t *testing.T) {
	_, err := CopyFrom(context.Background(), nil, "signals", nil, [][]any{{"s1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"signals"}, signalColumns).WillReturnResult(2)

	rows := [][]any{
		{"s1", "acme", "HIGH", []byte(`{}`)},
		{"s2", "acme", "LOW", []byte(`{}`)},
	}
	n, err := CopyFrom(context.Background(), mock, "signals", signalColumns, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"readiness", "signals"}, signalColumns).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "readiness.signals", signalColumns, [][]any{{"s1", "acme", "HIGH", []byte(`{}`)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"signals"}, signalColumns).WillReturnError(errors.New("permission denied"))

	_, err = CopyFrom(context.Background(), mock, "signals", signalColumns, [][]any{{"s1", "acme", "HIGH", []byte(`{}`)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO signals")
	assert.NoError(t, mock.ExpectationsWereMet())
}
