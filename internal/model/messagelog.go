package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MessageStatus is the lifecycle state of one logged message.
type MessageStatus string

const (
	// Outgoing lifecycle.
	StatusPending        MessageStatus = "pending"
	StatusSentToWhatsApp MessageStatus = "sent_to_whatsapp"
	StatusSent           MessageStatus = "sent"
	StatusDelivered      MessageStatus = "delivered"
	StatusRead           MessageStatus = "read"
	StatusFailed         MessageStatus = "failed"

	// Send-time failures, set by the dispatcher before any webhook arrives.
	StatusFailedOnSend        MessageStatus = "failed_on_send"
	StatusFailedInternalError MessageStatus = "failed_internal_error_on_send"

	// Inbound messages.
	StatusReceived MessageStatus = "received"
)

// rank orders delivery statuses so that late or duplicate webhook events can
// never move a log entry backwards. Unknown statuses rank below everything.
func (s MessageStatus) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusReceived:
		return 2
	case StatusSentToWhatsApp:
		return 3
	case StatusSent:
		return 4
	case StatusDelivered:
		return 5
	case StatusRead:
		return 6
	default:
		return 0
	}
}

// IsTerminal reports whether no further status event may change this state.
func (s MessageStatus) IsTerminal() bool {
	switch s {
	case StatusFailed, StatusFailedOnSend, StatusFailedInternalError:
		return true
	}
	return false
}

// Supersedes reports whether applying s on top of current is a real state
// advance. Replayed and out-of-order events return false and must be no-ops.
func (s MessageStatus) Supersedes(current MessageStatus) bool {
	if current.IsTerminal() {
		return false
	}
	if s == StatusFailed {
		return true
	}
	return s.rank() > current.rank()
}

type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// MessageLog records one outbound send attempt or one inbound message.
// Rows are created by the dispatcher (or the reconciler, for inbound) and
// mutated in place by status updates; they are never deleted.
type MessageLog struct {
	ID              int64            `json:"id"`
	ClientID        int64            `json:"client_id"`
	CampaignID      *int64           `json:"campaign_id,omitempty"`
	ExternalID      string           `json:"whatsapp_message_id,omitempty"`
	Recipient       string           `json:"recipient_phone_number"`
	SenderPhoneID   string           `json:"sender_phone_number_id,omitempty"`
	MessageType     string           `json:"message_type"`
	Direction       Direction        `json:"direction"`
	TemplateName    string           `json:"template_name,omitempty"`
	RenderedContent string           `json:"message_content_rendered,omitempty"`
	IncomingContent string           `json:"incoming_message_content,omitempty"`
	Status          MessageStatus    `json:"status"`
	FailureReason   string           `json:"failure_reason,omitempty"`
	Cost            *decimal.Decimal `json:"cost,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	SentAt          *time.Time       `json:"sent_at,omitempty"`
	DeliveredAt     *time.Time       `json:"delivered_at,omitempty"`
	ReadAt          *time.Time       `json:"read_at,omitempty"`
	StatusUpdatedAt time.Time        `json:"status_updated_at"`
}

func (MessageLog) TableName() string { return "message_logs" }

// MessageLogFilter controls list queries.
type MessageLogFilter struct {
	ClientID   *int64
	CampaignID *int64
	Direction  *Direction
	Statuses   []MessageStatus
	Recipient  *string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}
