package model

import "time"

// StatusEvent is one parsed delivery-status callback for a message this
// system sent. Status values arrive as WhatsApp reports them: sent,
// delivered, read, failed.
type StatusEvent struct {
	ExternalID    string        `json:"external_message_id"`
	Status        MessageStatus `json:"status"`
	Timestamp     time.Time     `json:"timestamp"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

// InboundMessageEvent is one parsed incoming message from an end user.
type InboundMessageEvent struct {
	ExternalID  string    `json:"external_message_id"`
	From        string    `json:"from"`
	ToPhoneID   string    `json:"to_phone_number_id"`
	Timestamp   time.Time `json:"timestamp"`
	MessageType string    `json:"type"`
	Content     string    `json:"content"`
}

// EventBatch groups the events of one webhook delivery for one client.
// The reconciler applies a batch transactionally: either every row change
// in the batch commits or none do.
type EventBatch struct {
	BatchID  string                `json:"batch_id"`
	ClientID int64                 `json:"client_id"`
	Statuses []StatusEvent         `json:"statuses,omitempty"`
	Inbound  []InboundMessageEvent `json:"inbound,omitempty"`
}
