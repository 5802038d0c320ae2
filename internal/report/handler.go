package report

import (
	"errors"
	"fmt"
	"net/http"

	"simuladohub/internal/app/apiresp"
	"simuladohub/internal/exam"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ExamSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.ExamSummary(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeReportError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, summary)
}

func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Ranking(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeReportError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, rows)
}

func (h *Handler) StudentAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.svc.StudentAreas(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		writeReportError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, areas)
}

func (h *Handler) ExportExamExcel(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	data, err := h.svc.ExportExamExcel(r.Context(), examID)
	if err != nil {
		writeReportError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="resultados-%s.xlsx"`, examID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, exam.ErrExamNotFound) {
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		return
	}
	apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
}
