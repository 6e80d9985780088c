package model

import "time"

type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

type Status string

const (
	Received    Status = "received"
	Queued      Status = "queued"
	Sending     Status = "sending"
	Sent        Status = "sent"
	Delivered   Status = "delivered"
	Undelivered Status = "undelivered"
	Failed      Status = "failed"
)

// Rank orders outgoing statuses along the delivery lifecycle. Terminal
// statuses share the highest rank. Unknown statuses rank below queued.
func (s Status) Rank() int {
	switch s {
	case Queued:
		return 1
	case Sending:
		return 2
	case Sent:
		return 3
	case Delivered, Undelivered, Failed:
		return 4
	default:
		return 0
	}
}

type Message struct {
	ID         int64     `json:"id"`
	ProviderID string    `json:"providerId"`
	Direction  Direction `json:"direction"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Body       string    `json:"body"`
	Status     Status    `json:"status"`
	AccountID  string    `json:"accountId"`
	UserID     *int64    `json:"userId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// InboundMessage is a carrier callback for a message received by one of our numbers.
type InboundMessage struct {
	ProviderID string
	AccountID  string
	From       string
	To         string
	Body       string
	Status     Status
}
