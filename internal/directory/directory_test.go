package directory

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-placement/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "dir.db") + "?_pragma=busy_timeout(5000)"
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func seedStudents(t *testing.T, h *sql.DB) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()
	for _, s := range []struct {
		id, name, roll string
		verified       int
	}{
		{"s1", "Asha", "R1", 1},
		{"s2", "Ben", "R2", 0},
	} {
		_, err := h.ExecContext(ctx,
			`INSERT INTO students (id, name, roll_no, password_hash, verified) VALUES ($1,$2,$3,$4,$5)`,
			s.id, s.name, s.roll, string(hash), s.verified)
		require.NoError(t, err)
	}
	_, err = h.ExecContext(ctx, `INSERT INTO drive_applications (student_id, drive_id) VALUES ($1,$2)`, "s1", 7)
	require.NoError(t, err)
}

func TestSQLDirectory(t *testing.T) {
	h := openTestDB(t)
	seedStudents(t, h)
	d := NewSQLDirectory(h)
	ctx := context.Background()

	ok, err := d.IsApplied(ctx, "s1", 7)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.IsApplied(ctx, "s2", 7)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := d.Lookup(ctx, []string{"s1", "s2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, Student{ID: "s1", Name: "Asha", RollNo: "R1"}, got["s1"])

	empty, err := d.Lookup(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	s, err := d.Authenticate(ctx, "s1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Asha", s.Name)
	_, err = d.Authenticate(ctx, "s1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = d.Authenticate(ctx, "ghost", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = d.Authenticate(ctx, "s2", "pw")
	assert.ErrorIs(t, err, ErrNotVerified)

	v, err := d.IsVerified(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, v)
	v, err = d.IsVerified(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, v)
}

func TestIsAppliedPropagatesErrors(t *testing.T) {
	h, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer h.Close()

	mock.ExpectQuery(`SELECT 1 FROM drive_applications`).
		WithArgs("s1", int64(7)).
		WillReturnError(errors.New("conn reset"))

	_, err = NewSQLDirectory(h).IsApplied(context.Background(), "s1", 7)
	assert.EqualError(t, err, "conn reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupPlaceholders(t *testing.T) {
	h, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer h.Close()

	mock.ExpectQuery(`SELECT id, name, roll_no FROM students WHERE id IN \(\$1,\$2\)`).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "roll_no"}).AddRow("a", "Ann", "R9"))

	got, err := NewSQLDirectory(h).Lookup(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]Student{"a": {ID: "a", Name: "Ann", RollNo: "R9"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
