package notify

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
)

type Status string

const (
	StatusSent Status = "SENT"
	// StatusSimulated is recorded when email delivery is switched off.
	StatusSimulated Status = "SIMULATED"
	StatusFailed    Status = "FAILED"
)

const ChannelEmail = "EMAIL"

var ErrInvalid = fmt.Errorf("%w: invalid notification", apperr.ErrValidation)

// Notification is one entry of the append-only delivery history.
type Notification struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	CustomerID  string    `json:"customerId"`
	Channel     string    `json:"channel"`
	Recipient   string    `json:"recipient"`
	Subject     string    `json:"subject"`
	Message     string    `json:"message"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	SourceEvent string    `json:"sourceEvent"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Filter struct {
	OrderID string
	Limit   int
}
