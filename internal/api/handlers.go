package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/LeventeLantos/sms-questionnaire/internal/gateway"
	"github.com/LeventeLantos/sms-questionnaire/internal/model"
	"github.com/LeventeLantos/sms-questionnaire/internal/repo"
	"github.com/LeventeLantos/sms-questionnaire/internal/scheduler"
	"github.com/LeventeLantos/sms-questionnaire/internal/service"
)

const maxListLimit = 200

// Questionnaire is the part of the orchestrator the HTTP layer drives.
type Questionnaire interface {
	Dispatch(ctx context.Context, phone string, userID *int64) error
	Resolve(ctx context.Context, in model.InboundMessage) (bool, error)
}

// Ledger gives read and ingest access to stored messages and questions.
type Ledger interface {
	Messages() repo.MessageRepository
	Questions() repo.QuestionRepository
}

type Handler struct {
	sched    *scheduler.Scheduler
	ledger   Ledger
	quiz     Questionnaire
	validate *validator.Validate
}

func NewHandler(s *scheduler.Scheduler, l Ledger, q Questionnaire) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return model.ValidPhone(fl.Field().String())
	})
	return &Handler{
		sched:    s,
		ledger:   l,
		quiz:     q,
		validate: v,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	if h.sched.Start() {
		slog.Info("scheduler started via api")
	}
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	if h.sched.Stop() {
		slog.Info("scheduler stopped via api")
	}
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dir := model.Direction(q.Get("direction"))
	switch dir {
	case "", model.Incoming, model.Outgoing:
	default:
		writeError(w, http.StatusBadRequest, "direction must be incoming or outgoing")
		return
	}

	limit := parseInt(q.Get("limit"), 50)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := parseInt(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	items, err := h.ledger.Messages().List(r.Context(), repo.ListFilter{
		Direction: dir,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		slog.Error("list messages failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list messages")
		return
	}
	if items == nil {
		items = []model.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	items, err := h.ledger.Questions().List(r.Context())
	if err != nil {
		slog.Error("list questions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list questions")
		return
	}
	if items == nil {
		items = []model.Question{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type dispatchRequest struct {
	Phone  string `json:"phone" validate:"required,phone"`
	UserID *int64 `json:"userId" validate:"omitempty,gt=0"`
}

func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": validationFields(err),
		})
		return
	}

	err := h.quiz.Dispatch(r.Context(), req.Phone, req.UserID)
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if errors.Is(err, service.ErrUnrecorded) {
		writeError(w, http.StatusInternalServerError, "the message was sent but could not be recorded")
		return
	}
	if ge, ok := gateway.AsError(err); ok {
		status := http.StatusBadGateway
		if ge.Kind == gateway.RateLimited {
			status = http.StatusTooManyRequests
		}
		slog.Warn("dispatch rejected by gateway", "phone", req.Phone, "kind", ge.Kind, "code", ge.Code, "err", err)
		writeJSON(w, status, map[string]any{"error": ge.UserMessage(), "kind": ge.Kind})
		return
	}

	slog.Error("dispatch failed", "phone", req.Phone, "err", err)
	writeError(w, http.StatusInternalServerError, "dispatch failed")
}

// validationFields maps each failing field to the rule it broke.
func validationFields(err error) map[string]string {
	out := make(map[string]string)
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range ves {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
