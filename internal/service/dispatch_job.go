package service

import (
	"context"
	"log/slog"

	"github.com/LeventeLantos/sms-questionnaire/internal/gateway"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, phone string, userID *int64) error
}

// DispatchJob sends a question to a fixed recipient list on every run.
type DispatchJob struct {
	dispatcher Dispatcher
	recipients []string
}

func NewDispatchJob(d Dispatcher, recipients []string) *DispatchJob {
	return &DispatchJob{dispatcher: d, recipients: recipients}
}

// Run dispatches to each recipient in order. A retryable carrier failure ends
// the run early; the next run starts over.
func (j *DispatchJob) Run(ctx context.Context) (sent int, failed int) {
	for _, phone := range j.recipients {
		if ctx.Err() != nil {
			break
		}

		err := j.dispatcher.Dispatch(ctx, phone, nil)
		if err == nil {
			sent++
			continue
		}

		failed++
		slog.Error("scheduled dispatch failed", "phone", phone, "err", err)
		if ge, ok := gateway.AsError(err); ok && ge.Retryable() {
			slog.Warn("carrier failure is transient, ending dispatch run early", "kind", string(ge.Kind))
			break
		}
	}

	slog.Info("dispatch run finished", "recipients", len(j.recipients), "sent", sent, "failed", failed)
	return sent, failed
}
