// Package http adapts the exam engine's use cases to a JSON API. The
// routing layer stays thin: decode, call the service, map the error.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strconv"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/parser"
)

// CacheInvalidator drops a cached bank after its content changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, collectionID string)
}

type Handler struct {
	bank   *app.BankService
	engine *app.AttemptEngine
	cache  CacheInvalidator
	ws     *WSHandler
}

func NewHandler(bank *app.BankService, engine *app.AttemptEngine, cache CacheInvalidator) *Handler {
	return &Handler{
		bank:   bank,
		engine: engine,
		cache:  cache,
		ws:     NewWSHandler(bank, engine),
	}
}

// Register wires every route onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /collections", h.importNew)
	mux.HandleFunc("POST /collections/preview", h.preview)
	mux.HandleFunc("POST /collections/{id}/import", h.importInto)
	mux.HandleFunc("GET /collections/{id}/test", h.composeTest)
	mux.HandleFunc("GET /collections/{id}/export", h.exportBank)
	mux.HandleFunc("PUT /collections/{id}/questions/{questionID}/answers", h.updateAnswers)
	mux.HandleFunc("DELETE /collections/{id}/questions/{questionID}", h.deleteQuestion)
	mux.HandleFunc("POST /attempts/answers", h.submitAnswer)
	mux.HandleFunc("POST /attempts/sweep", h.sweep)
	mux.HandleFunc("GET /attempts", h.listAttempts)
	mux.HandleFunc("GET /attempts/{id}", h.findAttempt)
	mux.HandleFunc("DELETE /attempts/{id}", h.deleteAttempt)
	mux.HandleFunc("GET /exam/ws", h.ws.ServeWS)
}

type importNewRequest struct {
	Name         string `json:"name"`
	AmountInTest int    `json:"amountInTest"`
	GivenMinutes int    `json:"givenMinutes"`
	MaxAttempts  int    `json:"maxAttempts"`
	Language     string `json:"language"`
	AdminID      string `json:"adminId"`
	ScienceID    string `json:"scienceId"`
	Text         string `json:"text"`
	Dialect      string `json:"dialect"`
}

func (h *Handler) importNew(w http.ResponseWriter, r *http.Request) {
	var req importNewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" || req.AmountInTest <= 0 || req.GivenMinutes <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("name, amountInTest and givenMinutes are required"))
		return
	}

	collection, err := h.bank.ImportNew(r.Context(), domain.Collection{
		Name:         req.Name,
		AmountInTest: req.AmountInTest,
		GivenMinutes: req.GivenMinutes,
		MaxAttempts:  req.MaxAttempts,
		Language:     req.Language,
		AdminID:      req.AdminID,
		ScienceID:    req.ScienceID,
	}, req.Text, parser.Dialect(req.Dialect))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, collection)
}

type importRequest struct {
	Text    string `json:"text"`
	Dialect string `json:"dialect"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	questions, err := h.bank.Preview(req.Text, parser.Dialect(req.Dialect))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) importInto(w http.ResponseWriter, r *http.Request) {
	collectionID := r.PathValue("id")
	var req importRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.bank.ImportInto(r.Context(), collectionID, req.Text, parser.Dialect(req.Dialect))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.cache.Invalidate(r.Context(), collectionID)
	writeJSON(w, http.StatusCreated, map[string]int{"created": created})
}

func (h *Handler) composeTest(w http.ResponseWriter, r *http.Request) {
	instances, err := h.bank.ComposeTest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (h *Handler) exportBank(w http.ResponseWriter, r *http.Request) {
	name, content, err := h.bank.ExportBank(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + ".txt"}))
	_, _ = w.Write([]byte(content))
}

type updateAnswersRequest struct {
	Answers []domain.AnswerInput `json:"answers"`
}

func (h *Handler) updateAnswers(w http.ResponseWriter, r *http.Request) {
	var req updateAnswersRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.bank.UpdateAnswers(r.Context(), r.PathValue("questionID"), req.Answers); err != nil {
		writeServiceError(w, err)
		return
	}
	h.cache.Invalidate(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.bank.DeleteQuestion(r.Context(), r.PathValue("questionID")); err != nil {
		writeServiceError(w, err)
		return
	}
	h.cache.Invalidate(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

type submitAnswerRequest struct {
	UserID            string   `json:"userId"`
	QuestionID        string   `json:"questionId"`
	QuestionNumber    int      `json:"questionNumber"`
	SelectedAnswerIDs []string `json:"selectedAnswerIds"`
	ElapsedTime       string   `json:"elapsedTime"`
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" || req.QuestionID == "" || req.QuestionNumber < 1 {
		writeError(w, http.StatusBadRequest, errors.New("userId, questionId and questionNumber are required"))
		return
	}
	attempt, err := h.engine.SubmitAnswer(r.Context(), app.SubmitAnswerInput{
		UserID:            req.UserID,
		QuestionID:        req.QuestionID,
		QuestionNumber:    req.QuestionNumber,
		SelectedAnswerIDs: req.SelectedAnswerIDs,
		ElapsedTime:       req.ElapsedTime,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.SweepAbandoned(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AttemptFilter{
		UserID:       q.Get("userId"),
		CollectionID: q.Get("collectionId"),
		FullName:     q.Get("fullName"),
		GroupName:    q.Get("group"),
		FacultyName:  q.Get("faculty"),
		HemisID:      q.Get("hemisId"),
	}
	filter.Course, _ = strconv.Atoi(q.Get("course"))
	filter.PageNumber, _ = strconv.Atoi(q.Get("pageNumber"))
	filter.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
	if raw := q.Get("hasFinished"); raw != "" {
		finished, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid hasFinished value %q", raw))
			return
		}
		filter.HasFinished = &finished
	}

	page, err := h.engine.ListAttempts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) findAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.engine.FindAttempt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) deleteAttempt(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteAttempt(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

type errorPayload struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

// writeServiceError maps domain errors onto HTTP statuses. Parser and
// import errors carry the offending question texts verbatim, the admins
// fix their files from these messages.
func writeServiceError(w http.ResponseWriter, err error) {
	var malformed *domain.MalformedQuestionError
	var duplicate *domain.DuplicateQuestionError
	switch {
	case errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrCollectionNotFound),
		errors.Is(err, domain.ErrAnswerNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &malformed),
		errors.As(err, &duplicate),
		errors.Is(err, domain.ErrEmptyBank),
		errors.Is(err, domain.ErrCollectionExists):
		writeError(w, http.StatusBadRequest, err)
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
