package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"simuladohub/internal/grading"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrExamNotFound = errors.New("exam not found")
	ErrKeyLocked    = errors.New("answer key is locked: corrections exist for this exam")
)

type Service struct {
	db *sql.DB
}

// Exam is a simulado: a named, ordered, area-tagged answer key. KeyGaps
// lists question numbers missing from 1..N; gaps are legal but worth
// surfacing to the administrator.
type Exam struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	AnswerKey []grading.AnswerKeyItem `json:"answer_key"`
	KeyGaps   []int                   `json:"key_gaps,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type CreateExamInput struct {
	Name      string
	AnswerKey []grading.AnswerKeyItem
}

type UpdateExamInput struct {
	ID        string
	Name      string
	AnswerKey []grading.AnswerKeyItem
	// ForceKeyUpdate bypasses the published-key lock. Existing corrections
	// are NOT regraded; the caller owns that decision.
	ForceKeyUpdate bool
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, in CreateExamInput) (*Exam, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	if err := grading.ValidateKey(in.AnswerKey); err != nil {
		return nil, err
	}

	keyJSON, err := json.Marshal(keyOrEmpty(in.AnswerKey))
	if err != nil {
		return nil, fmt.Errorf("encode answer key: %w", err)
	}

	now := time.Now().UTC()
	e := Exam{
		ID:        uuid.NewString(),
		Name:      name,
		AnswerKey: keyOrEmpty(in.AnswerKey),
		KeyGaps:   grading.KeyGaps(in.AnswerKey),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO exams (id, name, answer_key_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Name, string(keyJSON), now.Unix(), now.Unix()); err != nil {
		return nil, fmt.Errorf("insert exam: %w", err)
	}
	return &e, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Exam, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, answer_key_json, created_at, updated_at
		FROM exams
		WHERE id = $1
	`, id)

	var e Exam
	var keyJSON string
	var created, updated int64
	if err := row.Scan(&e.ID, &e.Name, &keyJSON, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if err := json.Unmarshal([]byte(keyJSON), &e.AnswerKey); err != nil {
		return nil, fmt.Errorf("decode answer key: %w", err)
	}
	e.KeyGaps = grading.KeyGaps(e.AnswerKey)
	e.CreatedAt = time.Unix(created, 0).UTC()
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	return &e, nil
}

// AnswerKey loads just the ordered key for scoring.
func (s *Service) AnswerKey(ctx context.Context, id string) ([]grading.AnswerKeyItem, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.AnswerKey, nil
}

type ExamListItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Questions   int       `json:"questions"`
	Corrections int       `json:"corrections"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Service) List(ctx context.Context) ([]ExamListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.answer_key_json, e.created_at,
			(SELECT COUNT(*) FROM objective_corrections oc WHERE oc.exam_id = e.id)
		FROM exams e
		ORDER BY e.created_at DESC, e.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query exams: %w", err)
	}
	defer rows.Close()

	out := make([]ExamListItem, 0)
	for rows.Next() {
		var item ExamListItem
		var keyJSON string
		var created int64
		if err := rows.Scan(&item.ID, &item.Name, &keyJSON, &created, &item.Corrections); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		var key []grading.AnswerKeyItem
		if err := json.Unmarshal([]byte(keyJSON), &key); err != nil {
			return nil, fmt.Errorf("decode answer key: %w", err)
		}
		item.Questions = len(key)
		item.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exams: %w", err)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, in UpdateExamInput) (*Exam, error) {
	name := strings.TrimSpace(in.Name)
	if in.ID == "" || name == "" {
		return nil, ErrInvalidInput
	}
	if err := grading.ValidateKey(in.AnswerKey); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	// Editing a key after grading desyncs existing results, so a key with
	// corrections behind it is immutable unless explicitly forced.
	if !keysEqual(current.AnswerKey, in.AnswerKey) && !in.ForceKeyUpdate {
		locked, err := s.hasCorrections(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		if locked {
			return nil, ErrKeyLocked
		}
	}

	keyJSON, err := json.Marshal(keyOrEmpty(in.AnswerKey))
	if err != nil {
		return nil, fmt.Errorf("encode answer key: %w", err)
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		UPDATE exams
		SET name = $1, answer_key_json = $2, updated_at = $3
		WHERE id = $4
	`, name, string(keyJSON), now.Unix(), in.ID); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return s.Get(ctx, in.ID)
}

// Delete removes the exam; its corrections cascade at the schema level.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExamNotFound
	}
	return nil
}

func (s *Service) hasCorrections(ctx context.Context, examID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM objective_corrections WHERE exam_id = $1) +
			(SELECT COUNT(*) FROM essay_corrections WHERE exam_id = $1)
	`, examID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count corrections: %w", err)
	}
	return count > 0, nil
}

func keyOrEmpty(key []grading.AnswerKeyItem) []grading.AnswerKeyItem {
	if key == nil {
		return []grading.AnswerKeyItem{}
	}
	return key
}

func keysEqual(a, b []grading.AnswerKeyItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
