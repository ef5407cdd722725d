package model

import (
	"encoding/json"
	"time"
)

const TemplateApproved = "APPROVED_BY_META"

// MessageTemplate mirrors an approved WhatsApp template. The registration
// and approval workflow lives elsewhere; this side only reads the name,
// language and ordered variable list at send time.
type MessageTemplate struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	Name          string    `json:"template_name"`
	LanguageCode  string    `json:"language_code"`
	VariablesJSON string    `json:"variables_expected_json,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func (MessageTemplate) TableName() string { return "message_templates" }

func (t *MessageTemplate) IsApproved() bool {
	return t.Status == TemplateApproved
}

// Variables returns the ordered variable names for {{1}}, {{2}}, ... slots.
// Malformed or empty JSON yields no variables.
func (t *MessageTemplate) Variables() []string {
	if t.VariablesJSON == "" {
		return nil
	}
	var vars []string
	if err := json.Unmarshal([]byte(t.VariablesJSON), &vars); err != nil {
		return nil
	}
	return vars
}
