package cache

import "context"

// RecipientCache remembers phones that have been sent at least one message.
// It only ever holds positive answers; a miss means "ask the message store".
type RecipientCache interface {
	MarkContacted(ctx context.Context, phone string) error
	WasContacted(ctx context.Context, phone string) (bool, error)
}

// Nop is used when Redis is not configured.
type Nop struct{}

func (Nop) MarkContacted(context.Context, string) error { return nil }

func (Nop) WasContacted(context.Context, string) (bool, error) { return false, nil }
