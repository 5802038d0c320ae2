package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrStudentNotFound = errors.New("student not found")
	ErrDuplicateLogin  = errors.New("cpf or login already registered")
)

type Service struct {
	db         *sql.DB
	bcryptCost int
}

type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf"`
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateStudentInput struct {
	Name       string
	CPF        string
	Login      string
	AccessCode string
}

type UpdateStudentInput struct {
	ID         string
	Name       string
	CPF        string
	Login      string
	AccessCode string // optional; empty keeps the current hash
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, bcryptCost: bcrypt.DefaultCost}
}

func (s *Service) Create(ctx context.Context, in CreateStudentInput) (*Student, error) {
	name := strings.TrimSpace(in.Name)
	cpf := normalizeCPF(in.CPF)
	login := strings.ToLower(strings.TrimSpace(in.Login))
	if name == "" || cpf == "" || login == "" {
		return nil, ErrInvalidInput
	}

	taken, err := s.identityTaken(ctx, cpf, login, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateLogin
	}

	hash := ""
	if code := strings.TrimSpace(in.AccessCode); code != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash access code: %w", err)
		}
		hash = string(b)
	}

	now := time.Now().UTC()
	st := Student{
		ID:        uuid.NewString(),
		Name:      name,
		CPF:       cpf,
		Login:     login,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, cpf, login, access_code_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, st.ID, st.Name, st.CPF, st.Login, hash, now.Unix(), now.Unix()); err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}
	return &st, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, cpf, login, created_at, updated_at
		FROM students
		WHERE id = $1
	`, id)
	return scanStudent(row)
}

func (s *Service) List(ctx context.Context, q string) ([]Student, error) {
	query := `
		SELECT id, name, cpf, login, created_at, updated_at
		FROM students
	`
	args := []interface{}{}
	if q = strings.TrimSpace(q); q != "" {
		query += ` WHERE LOWER(name) LIKE $1 OR login LIKE $1 OR cpf LIKE $1`
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	out := make([]Student, 0)
	for rows.Next() {
		var st Student
		var created, updated int64
		if err := rows.Scan(&st.ID, &st.Name, &st.CPF, &st.Login, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		st.CreatedAt = time.Unix(created, 0).UTC()
		st.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, in UpdateStudentInput) (*Student, error) {
	name := strings.TrimSpace(in.Name)
	cpf := normalizeCPF(in.CPF)
	login := strings.ToLower(strings.TrimSpace(in.Login))
	if in.ID == "" || name == "" || cpf == "" || login == "" {
		return nil, ErrInvalidInput
	}

	taken, err := s.identityTaken(ctx, cpf, login, in.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateLogin
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE students
		SET name = $1, cpf = $2, login = $3, updated_at = $4
		WHERE id = $5
	`, name, cpf, login, now.Unix(), in.ID)
	if err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrStudentNotFound
	}

	if code := strings.TrimSpace(in.AccessCode); code != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash access code: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `
			UPDATE students SET access_code_hash = $1 WHERE id = $2
		`, string(b), in.ID); err != nil {
			return nil, fmt.Errorf("update access code: %w", err)
		}
	}

	return s.Get(ctx, in.ID)
}

// Delete removes the student; correction results cascade at the schema level.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (s *Service) identityTaken(ctx context.Context, cpf, login, excludeID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM students
		WHERE (cpf = $1 OR login = $2) AND id <> $3
	`, cpf, login, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check student identity: %w", err)
	}
	return count > 0, nil
}

func scanStudent(row *sql.Row) (*Student, error) {
	var st Student
	var created, updated int64
	if err := row.Scan(&st.ID, &st.Name, &st.CPF, &st.Login, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	st.CreatedAt = time.Unix(created, 0).UTC()
	st.UpdatedAt = time.Unix(updated, 0).UTC()
	return &st, nil
}

func normalizeCPF(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
