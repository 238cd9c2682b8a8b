package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"autoshutdown/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Rows ---

type mockRows struct {
	data    [][]string
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]string) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	for i, d := range dest {
		*(d.(*string)) = r.data[r.idx][i]
	}
	return nil
}

func (r *mockRows) Close() { r.closed = true }

func (r *mockRows) Err() error { return r.errVal }

func (r *mockRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *mockRows) RawValues() [][]byte { return nil }

func (r *mockRows) Values() ([]any, error) { return nil, nil }

func (r *mockRows) Conn() *pgx.Conn { return nil }

// --- PostgresStore Tests ---

func TestPostgresStore_Load(t *testing.T) {
	db := new(mockDBTX)
	s := NewPostgresStore(db, "survival-1")

	rows := newMockRows([][]string{
		{"enable-timer", "true"},
		{"timer", "05:00:00"},
	})
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{"survival-1"}).Return(rows, nil)

	settings, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"enable-timer": "true", "timer": "05:00:00"}, settings)
	assert.True(t, rows.closed)
	db.AssertExpectations(t)
}

func TestPostgresStore_LoadEmpty(t *testing.T) {
	db := new(mockDBTX)
	s := NewPostgresStore(db, "srv")
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(newMockRows(nil), nil)

	settings, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, settings)
}

func TestPostgresStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(db *mockDBTX)
	}{
		{
			name: "query",
			setup: func(db *mockDBTX) {
				db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
			},
		},
		{
			name: "scan",
			setup: func(db *mockDBTX) {
				rows := newMockRows([][]string{{"timer", "x"}})
				rows.scanErr = errors.New("bad column")
				db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)
			},
		},
		{
			name: "iterate",
			setup: func(db *mockDBTX) {
				rows := newMockRows(nil)
				rows.errVal = errors.New("conn reset")
				db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			tt.setup(db)

			_, err := NewPostgresStore(db, "srv").Load(context.Background())

			assert.Equal(t, types.ErrCodeInternalPersistenceRead, types.CodeOf(err))
		})
	}
}

func TestPostgresStore_SaveUpsertsSortedKeys(t *testing.T) {
	db := new(mockDBTX)
	s := NewPostgresStore(db, "srv")

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ON CONFLICT (server, key)")
	}), []any{"srv", []string{"enable-timer", "timer"}, []string{"false", "23:59:00"}}).
		Return(pgconn.NewCommandTag("INSERT 0 2"), nil)

	err := s.Save(context.Background(), map[string]string{
		"timer":        "23:59:00",
		"enable-timer": "false",
	})

	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPostgresStore_SaveEmptyIsNoop(t *testing.T) {
	db := new(mockDBTX)

	require.NoError(t, NewPostgresStore(db, "srv").Save(context.Background(), nil))
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostgresStore_SaveError(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, errors.New("read-only transaction"))

	err := NewPostgresStore(db, "srv").Save(context.Background(), map[string]string{"timer": "00:00:00"})

	assert.Equal(t, types.ErrCodeInternalPersistenceWrite, types.CodeOf(err))
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, Schema, []any(nil)).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, NewPostgresStore(db, "srv").EnsureSchema(context.Background()))
	db.AssertExpectations(t)
}
