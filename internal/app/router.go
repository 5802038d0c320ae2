package app

import (
	"database/sql"
	"net/http"
	"time"

	"simuladohub/internal/app/observability"
	"simuladohub/internal/correction"
	"simuladohub/internal/essay"
	"simuladohub/internal/exam"
	"simuladohub/internal/report"
	"simuladohub/internal/student"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limiter := NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute)

	studentSvc := student.NewService(db)
	studentHandler := student.NewHandler(studentSvc)

	examSvc := exam.NewService(db)
	examHandler := exam.NewHandler(examSvc)

	topicSvc := essay.NewService(db)
	topicHandler := essay.NewHandler(topicSvc)

	correctionSvc := correction.NewService(db, examSvc)
	correctionHandler := correction.NewHandler(correctionSvc)

	reportSvc := report.NewService(db, examSvc, correctionSvc)
	reportHandler := report.NewHandler(reportSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(limiter.Middleware)
		api.Use(RequireAdminToken(cfg.AdminToken))

		api.Get("/students", studentHandler.List)
		api.Post("/students", studentHandler.Create)
		api.Get("/students/{id}", studentHandler.Get)
		api.Put("/students/{id}", studentHandler.Update)
		api.Delete("/students/{id}", studentHandler.Delete)

		api.Get("/exams", examHandler.List)
		api.Post("/exams", examHandler.Create)
		api.Get("/exams/{id}", examHandler.Get)
		api.Put("/exams/{id}", examHandler.Update)
		api.Delete("/exams/{id}", examHandler.Delete)

		api.Get("/essay-topics", topicHandler.List)
		api.Post("/essay-topics", topicHandler.Create)
		api.Get("/essay-topics/{id}", topicHandler.Get)
		api.Put("/essay-topics/{id}", topicHandler.Update)
		api.Delete("/essay-topics/{id}", topicHandler.Delete)

		api.Post("/corrections/objective", correctionHandler.GradeObjective)
		api.Post("/corrections/essay", correctionHandler.GradeEssay)
		api.Get("/exams/{examID}/corrections/objective", correctionHandler.ListObjectiveByExam)
		api.Get("/exams/{examID}/corrections/essay", correctionHandler.ListEssaysByExam)
		api.Get("/exams/{examID}/corrections/objective/{studentID}", correctionHandler.GetObjective)
		api.Get("/exams/{examID}/corrections/essay/{studentID}", correctionHandler.GetEssay)
		api.Get("/students/{studentID}/corrections", correctionHandler.StudentHistory)

		api.Get("/reports/exams/{examID}/summary", reportHandler.ExamSummary)
		api.Get("/reports/exams/{examID}/ranking", reportHandler.Ranking)
		api.Get("/reports/exams/{examID}/export.xlsx", reportHandler.ExportExamExcel)
		api.Get("/reports/students/{studentID}/areas", reportHandler.StudentAreas)
	})

	return r
}
