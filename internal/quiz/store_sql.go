package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-placement/internal/db"
	syncx "github.com/mind-engage/mindengage-placement/internal/sync"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	clock  Clock
}

type SQLStoreOption func(*SQLStore)

// WithStoreClock stamps store-generated times (event log rows, default
// created_at) from c instead of the wall clock.
func WithStoreClock(c Clock) SQLStoreOption {
	return func(s *SQLStore) { s.clock = c }
}

func NewSQLStore(dbh *sql.DB, driver string, opts ...SQLStoreOption) *SQLStore {
	s := &SQLStore{db: dbh, driver: driver, clock: SystemClock()}
	for _, o := range opts {
		o(s)
	}
	return s
}

const quizColumns = `q.id, q.title, q.description, q.time_limit_min, q.pass_threshold, q.is_live, q.live_at, q.drive_id, q.created_at,
	(SELECT COUNT(*) FROM questions qq WHERE qq.quiz_id = q.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(r rowScanner) (Quiz, error) {
	var (
		q       Quiz
		liveAt  sql.NullInt64
		driveID sql.NullInt64
		created int64
	)
	if err := r.Scan(&q.ID, &q.Title, &q.Description, &q.TimeLimitMin, &q.PassThreshold,
		&q.IsLive, &liveAt, &driveID, &created, &q.QuestionCount); err != nil {
		return Quiz{}, err
	}
	if liveAt.Valid {
		t := time.Unix(liveAt.Int64, 0).UTC()
		q.LiveAt = &t
	}
	if driveID.Valid {
		id := driveID.Int64
		q.DriveID = &id
	}
	q.CreatedAt = time.Unix(created, 0).UTC()
	return q, nil
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func (s *SQLStore) CreateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.clock.Now()
	}
	err := s.db.QueryRowContext(ctx, `INSERT INTO quizzes
		(title, description, time_limit_min, pass_threshold, is_live, live_at, drive_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		q.Title, q.Description, q.TimeLimitMin, q.PassThreshold, q.IsLive,
		nullUnix(q.LiveAt), nullID(q.DriveID), q.CreatedAt.Unix(),
	).Scan(&q.ID)
	if err != nil {
		return Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return s.GetQuiz(ctx, q.ID)
}

func (s *SQLStore) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	return getQuiz(ctx, s.db, id)
}

func getQuiz(ctx context.Context, qr queryer, id int64) (Quiz, error) {
	q, err := scanQuiz(qr.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes q WHERE q.id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+quizColumns+` FROM quizzes q ORDER BY q.created_at DESC, q.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE quizzes SET title=$1, description=$2, time_limit_min=$3,
		pass_threshold=$4, is_live=$5, live_at=$6, drive_id=$7 WHERE id=$8`,
		q.Title, q.Description, q.TimeLimitMin, q.PassThreshold, q.IsLive,
		nullUnix(q.LiveAt), nullID(q.DriveID), q.ID)
	if err != nil {
		return Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Quiz{}, ErrNotFound
	}
	return s.GetQuiz(ctx, q.ID)
}

// DeleteQuiz removes dependents explicitly; sqlite only honours ON DELETE
// CASCADE on connections that enabled foreign_keys.
func (s *SQLStore) DeleteQuiz(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if _, err := getQuiz(ctx, tx, id); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM attempts WHERE quiz_id=$1`,
			`DELETE FROM attempt_starts WHERE quiz_id=$1`,
			`DELETE FROM questions WHERE quiz_id=$1`,
			`DELETE FROM quizzes WHERE id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]int64{"quiz_id": id})
		return syncx.Append(ctx, tx, syncx.Event{
			Type:      syncx.TypeQuizDeleted,
			Key:       strconv.FormatInt(id, 10),
			Data:      data,
			CreatedAt: s.clock.Now().Unix(),
		})
	})
}

const questionColumns = `id, quiz_id, text, option_a, option_b, option_c, option_d, correct_option, marks, created_at`

func scanQuestion(r rowScanner) (Question, error) {
	var (
		q       Question
		correct string
		created int64
	)
	if err := r.Scan(&q.ID, &q.QuizID, &q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3],
		&correct, &q.Marks, &created); err != nil {
		return Question{}, err
	}
	q.Correct = Option(correct)
	q.CreatedAt = time.Unix(created, 0).UTC()
	return q, nil
}

func (s *SQLStore) AddQuestions(ctx context.Context, qs []Question) ([]Question, error) {
	out := make([]Question, 0, len(qs))
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		seen := map[int64]bool{}
		for _, q := range qs {
			if !seen[q.QuizID] {
				if _, err := getQuiz(ctx, tx, q.QuizID); err != nil {
					return err
				}
				seen[q.QuizID] = true
			}
			if q.CreatedAt.IsZero() {
				q.CreatedAt = s.clock.Now()
			}
			err := tx.QueryRowContext(ctx, `INSERT INTO questions
				(quiz_id, text, option_a, option_b, option_c, option_d, correct_option, marks, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
				q.QuizID, q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3],
				string(q.Correct), q.Marks, q.CreatedAt.Unix(),
			).Scan(&q.ID)
			if err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
			q.CreatedAt = time.Unix(q.CreatedAt.Unix(), 0).UTC()
			out = append(out, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id int64) (Question, error) {
	return getQuestion(ctx, s.db, id)
}

func getQuestion(ctx context.Context, qr queryer, id int64) (Question, error) {
	q, err := scanQuestion(qr.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrNotFound
		}
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) (Question, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET text=$1, option_a=$2, option_b=$3, option_c=$4,
		option_d=$5, correct_option=$6, marks=$7 WHERE id=$8`,
		q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], string(q.Correct), q.Marks, q.ID)
	if err != nil {
		return Question{}, fmt.Errorf("update question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Question{}, ErrNotFound
	}
	return s.GetQuestion(ctx, q.ID)
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id int64) (Question, error) {
	var deleted Question
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		q, err := getQuestion(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id); err != nil {
			return err
		}
		var left int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE quiz_id=$1`, q.QuizID).Scan(&left); err != nil {
			return err
		}
		if left == 0 {
			if _, err := tx.ExecContext(ctx, `UPDATE quizzes SET is_live=$1, live_at=NULL WHERE id=$2`, false, q.QuizID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM attempt_starts WHERE quiz_id=$1`, q.QuizID); err != nil {
				return err
			}
		}
		deleted = q
		return nil
	})
	return deleted, err
}

func (s *SQLStore) ListQuestions(ctx context.Context, quizID int64) ([]Question, error) {
	if _, err := s.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return listQuestions(ctx, s.db, quizID)
}

func listQuestions(ctx context.Context, qr queryer, quizID int64) ([]Question, error) {
	rows, err := qr.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE quiz_id=$1 ORDER BY id ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) RecordStart(ctx context.Context, quizID int64, studentID string, at time.Time) (time.Time, error) {
	var first time.Time
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if _, err := getQuiz(ctx, tx, quizID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO attempt_starts (quiz_id, student_id, started_at)
			VALUES ($1,$2,$3) ON CONFLICT (quiz_id, student_id) DO NOTHING`,
			quizID, studentID, at.Unix()); err != nil {
			return err
		}
		var ts int64
		if err := tx.QueryRowContext(ctx, `SELECT started_at FROM attempt_starts WHERE quiz_id=$1 AND student_id=$2`,
			quizID, studentID).Scan(&ts); err != nil {
			return err
		}
		first = time.Unix(ts, 0).UTC()
		return nil
	})
	return first, err
}

func (s *SQLStore) GetStart(ctx context.Context, quizID int64, studentID string) (time.Time, bool, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT started_at FROM attempt_starts WHERE quiz_id=$1 AND student_id=$2`,
		quizID, studentID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

func (s *SQLStore) ClearStarts(ctx context.Context, quizID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attempt_starts WHERE quiz_id=$1`, quizID)
	return err
}

// SubmitAttempt grades against the bank read inside the transaction and
// relies on UNIQUE (quiz_id, student_id) for at-most-once: the insert is
// ON CONFLICT DO NOTHING and zero affected rows means another submission
// won.
func (s *SQLStore) SubmitAttempt(ctx context.Context, quizID int64, studentID string, grade GradeFunc) (Attempt, error) {
	var out Attempt
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		q, err := getQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		bank, err := listQuestions(ctx, tx, quizID)
		if err != nil {
			return err
		}
		a, err := grade(q, bank)
		if err != nil {
			return err
		}
		a.ID = uuid.NewString()
		a.QuizID = quizID
		a.StudentID = studentID
		if a.Answers == nil {
			a.Answers = map[int64]Option{}
		}
		answers, err := json.Marshal(a.Answers)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO attempts
			(id, quiz_id, student_id, score, total_marks, passed, answers_json, started_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (quiz_id, student_id) DO NOTHING`,
			a.ID, quizID, studentID, a.Score, a.TotalMarks, a.Passed, string(answers),
			a.StartedAt.Unix(), a.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrSubmissionConflict
		}
		payload, _ := json.Marshal(a.Result())
		if err := syncx.Append(ctx, tx, syncx.Event{
			Type:      syncx.TypeAttemptSubmitted,
			Key:       a.ID,
			Data:      payload,
			CreatedAt: a.CreatedAt.Unix(),
		}); err != nil {
			return err
		}
		a.StartedAt = time.Unix(a.StartedAt.Unix(), 0).UTC()
		a.CreatedAt = time.Unix(a.CreatedAt.Unix(), 0).UTC()
		out = a
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	return out, nil
}

const attemptColumns = `id, quiz_id, student_id, score, total_marks, passed, answers_json, started_at, created_at`

func scanAttempt(r rowScanner) (Attempt, error) {
	var (
		a                Attempt
		answers          string
		started, created int64
	)
	if err := r.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Score, &a.TotalMarks, &a.Passed, &answers, &started, &created); err != nil {
		return Attempt{}, err
	}
	a.Answers = map[int64]Option{}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		a.Answers = map[int64]Option{}
	}
	a.StartedAt = time.Unix(started, 0).UTC()
	a.CreatedAt = time.Unix(created, 0).UTC()
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, quizID int64, studentID string) (Attempt, error) {
	return s.oneAttempt(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID)
}

func (s *SQLStore) GetAttemptByID(ctx context.Context, id string) (Attempt, error) {
	return s.oneAttempt(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, id)
}

func (s *SQLStore) oneAttempt(ctx context.Context, query string, args ...any) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, quizID int64) ([]Attempt, error) {
	if _, err := s.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return s.manyAttempts(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE quiz_id=$1 ORDER BY created_at ASC, id ASC`, quizID)
}

func (s *SQLStore) ListStudentAttempts(ctx context.Context, studentID string) ([]Attempt, error) {
	return s.manyAttempts(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE student_id=$1 ORDER BY created_at ASC, id ASC`, studentID)
}

func (s *SQLStore) manyAttempts(ctx context.Context, query string, args ...any) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
