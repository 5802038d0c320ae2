package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	internaldb "simuladohub/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	conn, err := internaldb.Open(context.Background(), internaldb.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestCreateAndGetStudent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	created, err := svc.Create(ctx, CreateStudentInput{
		Name:       "  Maria Souza ",
		CPF:        "123.456.789-09",
		Login:      "Maria.Souza",
		AccessCode: "segredo123",
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if created.Name != "Maria Souza" {
		t.Fatalf("name not trimmed: %q", created.Name)
	}
	if created.CPF != "12345678909" {
		t.Fatalf("cpf not normalized: %q", created.CPF)
	}
	if created.Login != "maria.souza" {
		t.Fatalf("login not lowercased: %q", created.Login)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get student: %v", err)
	}
	if got.ID != created.ID || got.Name != created.Name || got.CPF != created.CPF {
		t.Fatalf("get returned %+v, want %+v", got, created)
	}
}

func TestCreateStudentRejectsDuplicateIdentity(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	if _, err := svc.Create(ctx, CreateStudentInput{Name: "A", CPF: "11111111111", Login: "a"}); err != nil {
		t.Fatalf("create first: %v", err)
	}

	cases := []struct {
		name string
		in   CreateStudentInput
	}{
		{"same cpf", CreateStudentInput{Name: "B", CPF: "111.111.111-11", Login: "b"}},
		{"same login", CreateStudentInput{Name: "C", CPF: "22222222222", Login: "A"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.in); !errors.Is(err, ErrDuplicateLogin) {
				t.Fatalf("expected ErrDuplicateLogin, got %v", err)
			}
		})
	}
}

func TestCreateStudentRejectsEmptyFields(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	cases := []CreateStudentInput{
		{Name: "", CPF: "11111111111", Login: "x"},
		{Name: "X", CPF: "", Login: "x"},
		{Name: "X", CPF: "abc", Login: "x"}, // no digits left after normalization
		{Name: "X", CPF: "11111111111", Login: "   "},
	}
	for i, in := range cases {
		if _, err := svc.Create(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestUpdateStudent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	created, err := svc.Create(ctx, CreateStudentInput{Name: "A", CPF: "11111111111", Login: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, UpdateStudentInput{
		ID:    created.ID,
		Name:  "A Renamed",
		CPF:   "11111111111",
		Login: "a.renamed",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "A Renamed" || updated.Login != "a.renamed" {
		t.Fatalf("update not applied: %+v", updated)
	}

	_, err = svc.Update(ctx, UpdateStudentInput{ID: "missing", Name: "X", CPF: "22222222222", Login: "x"})
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestUpdateStudentRejectsTakenIdentity(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	if _, err := svc.Create(ctx, CreateStudentInput{Name: "A", CPF: "11111111111", Login: "a"}); err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := svc.Create(ctx, CreateStudentInput{Name: "B", CPF: "22222222222", Login: "b"})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	_, err = svc.Update(ctx, UpdateStudentInput{ID: b.ID, Name: "B", CPF: "11111111111", Login: "b"})
	if !errors.Is(err, ErrDuplicateLogin) {
		t.Fatalf("expected ErrDuplicateLogin, got %v", err)
	}

	// Keeping your own identity is not a conflict.
	if _, err := svc.Update(ctx, UpdateStudentInput{ID: b.ID, Name: "B2", CPF: "22222222222", Login: "b"}); err != nil {
		t.Fatalf("self update: %v", err)
	}
}

func TestDeleteStudent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	created, err := svc.Create(ctx, CreateStudentInput{Name: "A", CPF: "11111111111", Login: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, created.ID); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound on second delete, got %v", err)
	}
}

func TestListStudentsFilters(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestDB(t))

	seed := []CreateStudentInput{
		{Name: "Ana Lima", CPF: "11111111111", Login: "ana"},
		{Name: "Bruno Costa", CPF: "22222222222", Login: "bruno"},
		{Name: "Carla Lima", CPF: "33333333333", Login: "carla"},
	}
	for _, in := range seed {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("seed %s: %v", in.Login, err)
		}
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 students, got %d", len(all))
	}
	if all[0].Name != "Ana Lima" || all[2].Name != "Carla Lima" {
		t.Fatalf("expected name order, got %q..%q", all[0].Name, all[2].Name)
	}

	limas, err := svc.List(ctx, "lima")
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(limas) != 2 {
		t.Fatalf("expected 2 matches for %q, got %d", "lima", len(limas))
	}
}
