package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
	"github.com/LeventeLantos/sms-questionnaire/internal/repo"
)

type inboundPayload struct {
	MessageSid string `validate:"required,startswith=SM"`
	AccountSid string `validate:"required,startswith=AC"`
	From       string `validate:"required,max=32"`
	To         string `validate:"required,max=32"`
	Body       string `validate:"max=1600"`
	SmsStatus  string `validate:"omitempty,oneof=received queued sending sent failed delivered undelivered"`
}

type statusPayload struct {
	MessageSid    string `validate:"required,startswith=SM"`
	MessageStatus string `validate:"required,oneof=queued sending sent failed delivered undelivered"`
}

// TwilioInbound ingests a message sent to one of our numbers. The message is
// stored once per provider id and then offered to the questionnaire as a
// possible answer. Redeliveries are answered with 200 so the carrier stops.
func (h *Handler) TwilioInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	p := inboundPayload{
		MessageSid: r.PostForm.Get("MessageSid"),
		AccountSid: r.PostForm.Get("AccountSid"),
		From:       r.PostForm.Get("From"),
		To:         r.PostForm.Get("To"),
		Body:       r.PostForm.Get("Body"),
		SmsStatus:  r.PostForm.Get("SmsStatus"),
	}
	fields := map[string]string{}
	if err := h.validate.Struct(p); err != nil {
		fields = validationFields(err)
	}
	// Body may be empty (media-only messages) but must be sent.
	if !r.PostForm.Has("Body") {
		fields["Body"] = "required"
	}
	if len(fields) > 0 {
		slog.Warn("malformed inbound webhook", "fields", fields)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "malformed webhook",
			"fields": fields,
		})
		return
	}

	in := model.InboundMessage{
		ProviderID: p.MessageSid,
		AccountID:  p.AccountSid,
		From:       p.From,
		To:         p.To,
		Body:       p.Body,
		Status:     model.Status(p.SmsStatus),
	}

	ctx := context.WithoutCancel(r.Context())

	if _, err := h.ledger.Messages().RecordIncoming(ctx, in); err != nil {
		if !errors.Is(err, repo.ErrDuplicateDelivery) {
			slog.Error("store inbound message failed", "provider_id", in.ProviderID, "err", err)
			writeError(w, http.StatusInternalServerError, "could not store message")
			return
		}
		slog.Info("duplicate inbound delivery", "provider_id", in.ProviderID)
	}

	answered, err := h.quiz.Resolve(ctx, in)
	if err != nil {
		slog.Error("resolve inbound message failed", "provider_id", in.ProviderID, "from", in.From, "err", err)
	} else if answered {
		slog.Info("inbound message recorded as answer", "provider_id", in.ProviderID, "from", in.From)
	}

	w.WriteHeader(http.StatusOK)
}

// TwilioStatus applies a delivery status callback to a stored outgoing
// message. Callbacks for unknown ids are acknowledged and logged.
func (h *Handler) TwilioStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	p := statusPayload{
		MessageSid:    r.PostForm.Get("MessageSid"),
		MessageStatus: r.PostForm.Get("MessageStatus"),
	}
	if err := h.validate.Struct(p); err != nil {
		slog.Warn("malformed status webhook", "fields", validationFields(err))
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "malformed webhook",
			"fields": validationFields(err),
		})
		return
	}

	matched, err := h.ledger.Messages().UpdateStatus(context.WithoutCancel(r.Context()), p.MessageSid, model.Status(p.MessageStatus))
	if err != nil {
		slog.Error("update message status failed", "provider_id", p.MessageSid, "status", p.MessageStatus, "err", err)
		writeError(w, http.StatusInternalServerError, "could not update status")
		return
	}
	if !matched {
		slog.Warn("status callback for unknown message", "provider_id", p.MessageSid, "status", p.MessageStatus)
	}

	w.WriteHeader(http.StatusOK)
}
