package quiz

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type attemptKey struct {
	quizID    int64
	studentID string
}

type memoryStore struct {
	mu        sync.RWMutex
	nextQuiz  int64
	nextQ     int64
	quizzes   map[int64]Quiz
	questions map[int64]Question
	starts    map[attemptKey]time.Time
	attempts  map[attemptKey]Attempt
}

// NewInMemoryStore returns a Store kept in process memory. The attempt map
// is keyed by (quiz, student), which gives the same insert-if-absent
// guarantee as the SQL unique constraint.
func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:   map[int64]Quiz{},
		questions: map[int64]Question{},
		starts:    map[attemptKey]time.Time{},
		attempts:  map[attemptKey]Attempt{},
	}
}

func (m *memoryStore) CreateQuiz(_ context.Context, q Quiz) (Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuiz++
	q.ID = m.nextQuiz
	q.QuestionCount = 0
	m.quizzes[q.ID] = q
	return q, nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id int64) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	q.QuestionCount = m.countLocked(id)
	return q, nil
}

func (m *memoryStore) ListQuizzes(_ context.Context) ([]Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Quiz, 0, len(m.quizzes))
	for _, q := range m.quizzes {
		q.QuestionCount = m.countLocked(q.ID)
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryStore) UpdateQuiz(_ context.Context, q Quiz) (Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.quizzes[q.ID]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	q.CreatedAt = cur.CreatedAt
	m.quizzes[q.ID] = q
	q.QuestionCount = m.countLocked(q.ID)
	return q, nil
}

func (m *memoryStore) DeleteQuiz(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[id]; !ok {
		return ErrNotFound
	}
	delete(m.quizzes, id)
	for qid, q := range m.questions {
		if q.QuizID == id {
			delete(m.questions, qid)
		}
	}
	m.clearStartsLocked(id)
	for k := range m.attempts {
		if k.quizID == id {
			delete(m.attempts, k)
		}
	}
	return nil
}

func (m *memoryStore) AddQuestions(_ context.Context, qs []Question) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		if _, ok := m.quizzes[q.QuizID]; !ok {
			return nil, ErrNotFound
		}
	}
	for _, q := range qs {
		m.nextQ++
		q.ID = m.nextQ
		m.questions[q.ID] = q
		out = append(out, q)
	}
	return out, nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id int64) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	return q, nil
}

func (m *memoryStore) UpdateQuestion(_ context.Context, q Question) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.questions[q.ID]
	if !ok {
		return Question{}, ErrNotFound
	}
	q.QuizID = cur.QuizID
	q.CreatedAt = cur.CreatedAt
	m.questions[q.ID] = q
	return q, nil
}

func (m *memoryStore) DeleteQuestion(_ context.Context, id int64) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	delete(m.questions, id)
	if m.countLocked(q.QuizID) == 0 {
		if qz, ok := m.quizzes[q.QuizID]; ok {
			qz.IsLive = false
			qz.LiveAt = nil
			m.quizzes[q.QuizID] = qz
		}
		m.clearStartsLocked(q.QuizID)
	}
	return q, nil
}

func (m *memoryStore) ListQuestions(_ context.Context, quizID int64) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return nil, ErrNotFound
	}
	return m.bankLocked(quizID), nil
}

func (m *memoryStore) RecordStart(_ context.Context, quizID int64, studentID string, at time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return time.Time{}, ErrNotFound
	}
	k := attemptKey{quizID, studentID}
	if first, ok := m.starts[k]; ok {
		return first, nil
	}
	m.starts[k] = at
	return at, nil
}

func (m *memoryStore) GetStart(_ context.Context, quizID int64, studentID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.starts[attemptKey{quizID, studentID}]
	return t, ok, nil
}

func (m *memoryStore) ClearStarts(_ context.Context, quizID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearStartsLocked(quizID)
	return nil
}

func (m *memoryStore) clearStartsLocked(quizID int64) {
	for k := range m.starts {
		if k.quizID == quizID {
			delete(m.starts, k)
		}
	}
}

func (m *memoryStore) SubmitAttempt(_ context.Context, quizID int64, studentID string, grade GradeFunc) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[quizID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	k := attemptKey{quizID, studentID}
	if _, exists := m.attempts[k]; exists {
		return Attempt{}, ErrSubmissionConflict
	}
	bank := m.bankLocked(quizID)
	q.QuestionCount = len(bank)
	a, err := grade(q, bank)
	if err != nil {
		return Attempt{}, err
	}
	a.ID = uuid.NewString()
	a.QuizID = quizID
	a.StudentID = studentID
	a = cloneAttempt(a)
	m.attempts[k] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) GetAttempt(_ context.Context, quizID int64, studentID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptKey{quizID, studentID}]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) GetAttemptByID(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.ID == id {
			return cloneAttempt(a), nil
		}
	}
	return Attempt{}, ErrNotFound
}

func (m *memoryStore) ListAttempts(_ context.Context, quizID int64) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return nil, ErrNotFound
	}
	out := []Attempt{}
	for k, a := range m.attempts {
		if k.quizID == quizID {
			out = append(out, cloneAttempt(a))
		}
	}
	sortAttempts(out)
	return out, nil
}

func (m *memoryStore) ListStudentAttempts(_ context.Context, studentID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for k, a := range m.attempts {
		if k.studentID == studentID {
			out = append(out, cloneAttempt(a))
		}
	}
	sortAttempts(out)
	return out, nil
}

func (m *memoryStore) countLocked(quizID int64) int {
	n := 0
	for _, q := range m.questions {
		if q.QuizID == quizID {
			n++
		}
	}
	return n
}

func (m *memoryStore) bankLocked(quizID int64) []Question {
	out := []Question{}
	for _, q := range m.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// cloneAttempt copies the answer map so callers never share it with the store.
func cloneAttempt(a Attempt) Attempt {
	answers := make(map[int64]Option, len(a.Answers))
	for id, o := range a.Answers {
		answers[id] = o
	}
	a.Answers = answers
	return a
}

// sortAttempts orders by creation time, then id, matching the SQL store.
func sortAttempts(as []Attempt) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].ID < as[j].ID
		}
		return as[i].CreatedAt.Before(as[j].CreatedAt)
	})
}
