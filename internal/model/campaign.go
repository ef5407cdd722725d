package model

import (
	"encoding/json"
	"errors"
	"time"
)

// CampaignStatus is the campaign state machine. Transitions:
// DRAFT -> {SCHEDULED, PENDING_SEND} -> SENDING -> {COMPLETED,
// PARTIALLY_COMPLETED, FAILED}; CANCELLED is reachable from any
// pre-SENDING state and from SENDING, where the loop notices the
// flip between recipients.
type CampaignStatus string

const (
	CampaignDraft       CampaignStatus = "DRAFT"
	CampaignScheduled   CampaignStatus = "SCHEDULED"
	CampaignPendingSend CampaignStatus = "PENDING_SEND"
	CampaignSending     CampaignStatus = "SENDING"
	CampaignCompleted   CampaignStatus = "COMPLETED"
	CampaignPartial     CampaignStatus = "PARTIALLY_COMPLETED"
	CampaignFailed      CampaignStatus = "FAILED"
	CampaignCancelled   CampaignStatus = "CANCELLED"
)

// CanSend reports whether a send may be started from this state.
func (s CampaignStatus) CanSend() bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignPendingSend:
		return true
	}
	return false
}

// CanUpdate reports whether the campaign definition may still change.
func (s CampaignStatus) CanUpdate() bool {
	return s.CanSend()
}

// CanCancel reports whether the campaign can be cancelled. A SENDING
// campaign is cancellable too: the send loop re-reads the status between
// recipients and stops when it sees CANCELLED.
func (s CampaignStatus) CanCancel() bool {
	return s.CanSend() || s == CampaignSending
}

// CanDelete is everything except in-flight: a SENDING campaign must first
// finish or be failed by the supervisor.
func (s CampaignStatus) CanDelete() bool {
	return s != CampaignSending
}

func (s CampaignStatus) IsTerminal() bool {
	switch s {
	case CampaignCompleted, CampaignPartial, CampaignFailed, CampaignCancelled:
		return true
	}
	return false
}

// Campaign is a bulk send of one approved template to an audience list.
// Audience and personalization are stored as the JSON the client submitted
// and parsed again at send time.
type Campaign struct {
	ID                  int64          `json:"id"`
	ClientID            int64          `json:"client_id"`
	TemplateID          int64          `json:"template_id"`
	Name                string         `json:"campaign_name"`
	AudienceJSON        string         `json:"audience_json"`
	PersonalizationJSON string         `json:"personalization_data_json,omitempty"`
	ScheduledAt         *time.Time     `json:"scheduled_at,omitempty"`
	ActualSentAt        *time.Time     `json:"actual_sent_at,omitempty"`
	Status              CampaignStatus `json:"status"`
	FailureReason       string         `json:"failure_reason,omitempty"`
	TotalRecipients     int            `json:"total_recipients"`
	SentCount           int            `json:"messages_sent_count"`
	DeliveredCount      int            `json:"messages_delivered_count"`
	ReadCount           int            `json:"messages_read_count"`
	FailedCount         int            `json:"messages_failed_count"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (Campaign) TableName() string { return "campaigns" }

var (
	ErrAudienceNotList        = errors.New("audience must be a JSON array of phone numbers")
	ErrPersonalizationNotMap  = errors.New("personalization data must be a JSON object keyed by recipient")
	errCampaignNameRequired   = errors.New("campaign_name is required")
	errTemplateIDRequired     = errors.New("template_id is required")
	errAudienceRequired       = errors.New("audience_json is required")
	errCampaignClientRequired = errors.New("client_id is required")
)

// Audience parses the stored audience JSON preserving input order.
func (c *Campaign) Audience() ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(c.AudienceJSON), &list); err != nil {
		return nil, ErrAudienceNotList
	}
	return list, nil
}

// Personalization parses the stored personalization JSON. An empty document
// yields an empty map: personalization is always optional.
func (c *Campaign) Personalization() (map[string]map[string]string, error) {
	if c.PersonalizationJSON == "" {
		return map[string]map[string]string{}, nil
	}
	var m map[string]map[string]string
	if err := json.Unmarshal([]byte(c.PersonalizationJSON), &m); err != nil {
		return nil, ErrPersonalizationNotMap
	}
	if m == nil {
		m = map[string]map[string]string{}
	}
	return m, nil
}

// CampaignCreateRequest is the input for creating a campaign.
type CampaignCreateRequest struct {
	ClientID            int64
	TemplateID          int64
	Name                string
	AudienceJSON        string
	PersonalizationJSON string
	ScheduledAt         *time.Time
}

func (p CampaignCreateRequest) Validate() error {
	if p.ClientID == 0 {
		return errCampaignClientRequired
	}
	if p.Name == "" {
		return errCampaignNameRequired
	}
	if p.TemplateID == 0 {
		return errTemplateIDRequired
	}
	if p.AudienceJSON == "" {
		return errAudienceRequired
	}
	var list []string
	if err := json.Unmarshal([]byte(p.AudienceJSON), &list); err != nil {
		return ErrAudienceNotList
	}
	if p.PersonalizationJSON != "" {
		var m map[string]map[string]string
		if err := json.Unmarshal([]byte(p.PersonalizationJSON), &m); err != nil {
			return ErrPersonalizationNotMap
		}
	}
	return nil
}

// AudienceSize returns the recipient count of a validated request.
func (p CampaignCreateRequest) AudienceSize() int {
	var list []string
	if err := json.Unmarshal([]byte(p.AudienceJSON), &list); err != nil {
		return 0
	}
	return len(list)
}

// CampaignUpdateRequest carries optional field updates; nil means unchanged.
type CampaignUpdateRequest struct {
	Name                *string
	TemplateID          *int64
	AudienceJSON        *string
	PersonalizationJSON *string
	ScheduledAt         *time.Time
	ClearSchedule       bool
}
