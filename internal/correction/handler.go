package correction

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"simuladohub/internal/app/apiresp"
	"simuladohub/internal/exam"
	"simuladohub/internal/grading"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

type gradeObjectiveRequest struct {
	ExamID    string `json:"exam_id"`
	StudentID string `json:"student_id"`
	// Marks is the manual-grader shape: question number -> mark.
	Marks map[string]string `json:"marks,omitempty"`
	// Extraction is the raw oracle payload; when present it wins over Marks.
	Extraction     json.RawMessage `json:"extraction,omitempty"`
	AnswerSheetURL string          `json:"answer_sheet_url,omitempty"`
}

type gradeEssayRequest struct {
	ExamID        string          `json:"exam_id"`
	StudentID     string          `json:"student_id"`
	TopicID       string          `json:"topic_id,omitempty"`
	Levels        *grading.Levels `json:"levels,omitempty"`
	Situation     string          `json:"situation,omitempty"`
	Observations  string          `json:"observations,omitempty"`
	EssayImageURL string          `json:"essay_image_url,omitempty"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) GradeObjective(w http.ResponseWriter, r *http.Request) {
	var req gradeObjectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExamID == "" || req.StudentID == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "exam_id and student_id are required")
		return
	}
	if len(req.Extraction) == 0 && req.Marks == nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "marks or extraction is required")
		return
	}

	marks := make(map[int]grading.Mark, len(req.Marks))
	for qs, m := range req.Marks {
		q, err := strconv.Atoi(qs)
		if err != nil || q < 1 {
			apiresp.WriteError(w, r, http.StatusBadRequest, "marks keys must be positive question numbers")
			return
		}
		marks[q] = grading.Mark(m)
	}

	res, err := h.svc.GradeObjective(r.Context(), GradeObjectiveInput{
		ExamID:         req.ExamID,
		StudentID:      req.StudentID,
		Marks:          marks,
		Extraction:     req.Extraction,
		AnswerSheetURL: req.AnswerSheetURL,
	})
	if err != nil {
		writeGradeError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, res)
}

func (h *Handler) GradeEssay(w http.ResponseWriter, r *http.Request) {
	var req gradeEssayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExamID == "" || req.StudentID == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "exam_id and student_id are required")
		return
	}

	situation, err := grading.ParseSituation(req.Situation)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// Completeness guard: either every competency has a level or a
	// situation nullifies the essay. The scorer stays independently exact.
	if situation == grading.SituationNone && req.Levels == nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "levels are required unless a situation is set")
		return
	}
	var levels grading.Levels
	if req.Levels != nil {
		levels = *req.Levels
	}

	res, err := h.svc.GradeEssay(r.Context(), GradeEssayInput{
		ExamID:        req.ExamID,
		StudentID:     req.StudentID,
		TopicID:       req.TopicID,
		Levels:        levels,
		Situation:     situation,
		Observations:  req.Observations,
		EssayImageURL: req.EssayImageURL,
	})
	if err != nil {
		writeGradeError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, res)
}

func (h *Handler) ListObjectiveByExam(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ObjectiveByExam(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) ListEssaysByExam(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.EssaysByExam(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) GetObjective(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetObjective(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "studentID"))
	if err != nil {
		if errors.Is(err, ErrCorrectionNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, res)
}

func (h *Handler) GetEssay(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetEssay(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "studentID"))
	if err != nil {
		if errors.Is(err, ErrCorrectionNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, res)
}

func (h *Handler) StudentHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.svc.HistoryByStudent(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, hist)
}

func writeGradeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		apiresp.WriteError(w, r, http.StatusBadRequest, "exam_id and student_id are required")
	case errors.Is(err, ErrStudentNotFound), errors.Is(err, exam.ErrExamNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, grading.ErrMalformedExtraction),
		errors.Is(err, grading.ErrInvalidMark),
		errors.Is(err, grading.ErrMalformedKey),
		errors.Is(err, grading.ErrInvalidCompetencyLevel),
		errors.Is(err, grading.ErrInvalidSituation):
		apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}
