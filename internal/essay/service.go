package essay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrTopicNotFound = errors.New("essay topic not found")
)

// Service manages the catalog of essay topics (redações) students write on.
type Service struct {
	db *sql.DB
}

type Topic struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, title, prompt string) (*Topic, error) {
	title = strings.TrimSpace(title)
	prompt = strings.TrimSpace(prompt)
	if title == "" || prompt == "" {
		return nil, ErrInvalidInput
	}

	now := time.Now().UTC()
	t := Topic{ID: uuid.NewString(), Title: title, Prompt: prompt, CreatedAt: now}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO essay_topics (id, title, prompt, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.Title, t.Prompt, now.Unix()); err != nil {
		return nil, fmt.Errorf("insert essay topic: %w", err)
	}
	return &t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Topic, error) {
	var t Topic
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, prompt, created_at
		FROM essay_topics
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Title, &t.Prompt, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("load essay topic: %w", err)
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	return &t, nil
}

func (s *Service) List(ctx context.Context) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, prompt, created_at
		FROM essay_topics
		ORDER BY created_at DESC, title ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query essay topics: %w", err)
	}
	defer rows.Close()

	out := make([]Topic, 0)
	for rows.Next() {
		var t Topic
		var created int64
		if err := rows.Scan(&t.ID, &t.Title, &t.Prompt, &created); err != nil {
			return nil, fmt.Errorf("scan essay topic: %w", err)
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate essay topics: %w", err)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id, title, prompt string) (*Topic, error) {
	title = strings.TrimSpace(title)
	prompt = strings.TrimSpace(prompt)
	if id == "" || title == "" || prompt == "" {
		return nil, ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE essay_topics SET title = $1, prompt = $2 WHERE id = $3
	`, title, prompt, id)
	if err != nil {
		return nil, fmt.Errorf("update essay topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrTopicNotFound
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM essay_topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete essay topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTopicNotFound
	}
	return nil
}
