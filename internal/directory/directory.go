// Package directory reads student and drive-application records owned by
// the profile and drive subsystems. The engine never writes these tables.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("student not verified")
)

type Student struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	RollNo string `json:"roll_no"`
}

type SQLDirectory struct{ db *sql.DB }

func NewSQLDirectory(db *sql.DB) *SQLDirectory { return &SQLDirectory{db: db} }

// IsApplied reports whether the student has an application against driveID.
func (d *SQLDirectory) IsApplied(ctx context.Context, studentID string, driveID int64) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM drive_applications WHERE student_id=$1 AND drive_id=$2`,
		studentID, driveID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Lookup returns the known students among ids. Unknown ids are absent.
func (d *SQLDirectory) Lookup(ctx context.Context, ids []string) (map[string]Student, error) {
	out := make(map[string]Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, roll_no FROM students WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.RollNo); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

// Authenticate checks a student's password and that their identity has
// been verified by the profile approval workflow.
func (d *SQLDirectory) Authenticate(ctx context.Context, id, password string) (Student, error) {
	var (
		s        Student
		hash     string
		verified bool
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, roll_no, password_hash, verified FROM students WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.RollNo, &hash, &verified)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrInvalidCredentials
	}
	if err != nil {
		return Student{}, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Student{}, ErrInvalidCredentials
	}
	if !verified {
		return Student{}, ErrNotVerified
	}
	return s, nil
}

// IsVerified is false for unknown students.
func (d *SQLDirectory) IsVerified(ctx context.Context, id string) (bool, error) {
	var verified bool
	err := d.db.QueryRowContext(ctx, `SELECT verified FROM students WHERE id=$1`, id).Scan(&verified)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return verified, err
}
