package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/oneclick/wa-gateway/pkg/prom"
)

var (
	// ErrCampaignNotFound indicates the campaign does not exist or belongs
	// to another client.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignStateConflict indicates the campaign's current status does
	// not allow the requested operation. Nothing was changed.
	ErrCampaignStateConflict = errors.New("operation not allowed in current campaign status")
)

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	GetByID(ctx context.Context, id, clientID int64) (*model.Campaign, error)
	List(ctx context.Context, clientID int64, limit, offset int) ([]*model.Campaign, int64, error)
	Update(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Delete(ctx context.Context, id, clientID int64) error
	ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error)
	ListStalledSending(ctx context.Context, cutoff time.Time) ([]*model.Campaign, error)
	TransitionToSending(ctx context.Context, id, clientID int64, startedAt time.Time) (bool, error)
}

type TemplateRepository interface {
	GetByID(ctx context.Context, id, clientID int64) (*model.MessageTemplate, error)
}

type CampaignDispatcher interface {
	SendTemplate(ctx context.Context, req TemplateDispatch) (*model.MessageLog, error)
}

// SendReport summarizes a finished campaign send loop.
type SendReport struct {
	CampaignID int64                `json:"campaign_id"`
	Status     model.CampaignStatus `json:"status"`
	Sent       int                  `json:"sent_count"`
	Failed     int                  `json:"failed_count"`
	Total      int                  `json:"total_recipients"`
}

// CampaignService owns campaign lifecycle and the send loop. Recipients
// are dispatched sequentially; each outcome is tallied and the final
// status reflects the aggregate.
type CampaignService struct {
	campaigns  CampaignRepository
	templates  TemplateRepository
	clients    ClientRepository
	dispatcher CampaignDispatcher
}

func NewCampaignService(campaigns CampaignRepository, templates TemplateRepository, clients ClientRepository, dispatcher CampaignDispatcher) *CampaignService {
	return &CampaignService{
		campaigns:  campaigns,
		templates:  templates,
		clients:    clients,
		dispatcher: dispatcher,
	}
}

// Create validates the request and stores the campaign. A future
// scheduled_at yields SCHEDULED, otherwise the campaign is PENDING_SEND
// and waits for an explicit send.
func (s *CampaignService) Create(ctx context.Context, clientID int64, req *model.CampaignCreateRequest) (*model.Campaign, error) {
	req.ClientID = clientID
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.templates.GetByID(ctx, req.TemplateID, clientID); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, fmt.Errorf("template %d not found", req.TemplateID)
		}
		return nil, err
	}

	status := model.CampaignPendingSend
	if req.ScheduledAt != nil && req.ScheduledAt.After(time.Now()) {
		status = model.CampaignScheduled
	}

	return s.campaigns.Create(ctx, &model.Campaign{
		ClientID:            clientID,
		TemplateID:          req.TemplateID,
		Name:                req.Name,
		AudienceJSON:        req.AudienceJSON,
		PersonalizationJSON: req.PersonalizationJSON,
		ScheduledAt:         req.ScheduledAt,
		Status:              status,
		TotalRecipients:     req.AudienceSize(),
	})
}

func (s *CampaignService) Get(ctx context.Context, id, clientID int64) (*model.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, clientID int64, limit, offset int) ([]*model.Campaign, int64, error) {
	return s.campaigns.List(ctx, clientID, limit, offset)
}

// Update applies partial changes. Only campaigns that have not started
// sending can change; schedule edits move the status between SCHEDULED
// and PENDING_SEND.
func (s *CampaignService) Update(ctx context.Context, id, clientID int64, req *model.CampaignUpdateRequest) (*model.Campaign, error) {
	c, err := s.Get(ctx, id, clientID)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanUpdate() {
		return nil, ErrCampaignStateConflict
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.TemplateID != nil {
		if _, err := s.templates.GetByID(ctx, *req.TemplateID, clientID); err != nil {
			if errors.Is(err, repository.ErrTemplateNotFound) {
				return nil, fmt.Errorf("template %d not found", *req.TemplateID)
			}
			return nil, err
		}
		c.TemplateID = *req.TemplateID
	}
	if req.AudienceJSON != nil {
		c.AudienceJSON = *req.AudienceJSON
		audience, err := c.Audience()
		if err != nil {
			return nil, err
		}
		c.TotalRecipients = len(audience)
	}
	if req.PersonalizationJSON != nil {
		c.PersonalizationJSON = *req.PersonalizationJSON
		if _, err := c.Personalization(); err != nil {
			return nil, err
		}
	}
	if req.ClearSchedule {
		c.ScheduledAt = nil
		c.Status = model.CampaignPendingSend
	} else if req.ScheduledAt != nil {
		c.ScheduledAt = req.ScheduledAt
		if req.ScheduledAt.After(time.Now()) {
			c.Status = model.CampaignScheduled
		} else {
			c.Status = model.CampaignPendingSend
		}
	}

	return s.campaigns.Update(ctx, c)
}

// Delete removes a campaign unless it is actively sending.
func (s *CampaignService) Delete(ctx context.Context, id, clientID int64) error {
	c, err := s.Get(ctx, id, clientID)
	if err != nil {
		return err
	}
	if !c.Status.CanDelete() {
		return ErrCampaignStateConflict
	}
	return s.campaigns.Delete(ctx, id, clientID)
}

// Cancel stops a campaign before or during its send. An in-flight loop
// observes the status change cooperatively between recipients.
func (s *CampaignService) Cancel(ctx context.Context, id, clientID int64) (*model.Campaign, error) {
	c, err := s.Get(ctx, id, clientID)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanCancel() {
		return nil, ErrCampaignStateConflict
	}
	c.Status = model.CampaignCancelled
	return s.campaigns.Update(ctx, c)
}

// SendNow runs the campaign's send loop to completion. Preflight failures
// that indicate a broken campaign (bad audience JSON, missing or
// unapproved template) mark it FAILED; a wrong status or unset transport
// credentials leave the campaign untouched and only return an error.
func (s *CampaignService) SendNow(ctx context.Context, id, clientID int64) (*SendReport, error) {
	c, err := s.Get(ctx, id, clientID)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanSend() {
		return nil, ErrCampaignStateConflict
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, ErrClientNotFound
	}
	if !client.HasTransportCredentials() {
		return nil, ErrCredentialsUnset
	}

	audience, err := c.Audience()
	if err != nil {
		return nil, s.markFailed(ctx, c, fmt.Sprintf("invalid audience: %v", err))
	}
	personalization, err := c.Personalization()
	if err != nil {
		return nil, s.markFailed(ctx, c, fmt.Sprintf("invalid personalization: %v", err))
	}

	tpl, err := s.templates.GetByID(ctx, c.TemplateID, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, s.markFailed(ctx, c, fmt.Sprintf("template %d not found", c.TemplateID))
		}
		return nil, err
	}
	if !tpl.IsApproved() {
		return nil, s.markFailed(ctx, c, fmt.Sprintf("template '%s' is not approved", tpl.Name))
	}

	now := time.Now().UTC()
	claimed, err := s.campaigns.TransitionToSending(ctx, c.ID, clientID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another worker got here first.
		return nil, ErrCampaignStateConflict
	}
	c.Status = model.CampaignSending
	c.ActualSentAt = &now
	c.TotalRecipients = len(audience)

	logger.Info("campaign send started", "campaign_id", c.ID, "client_id", clientID, "recipients", len(audience))
	start := time.Now()

	variables := tpl.Variables()
	sent, failed := 0, 0
	cancelled := false

	for _, recipient := range audience {
		if err := ctx.Err(); err != nil {
			cancelled = true
			break
		}
		if s.cancelRequested(ctx, c.ID, clientID) {
			cancelled = true
			break
		}

		params := buildBodyParams(variables, personalization[recipient])
		_, sendErr := s.dispatcher.SendTemplate(ctx, TemplateDispatch{
			ClientID:     clientID,
			Recipient:    recipient,
			TemplateName: tpl.Name,
			Language:     tpl.LanguageCode,
			BodyParams:   params,
			CampaignID:   &c.ID,
		})
		if sendErr != nil {
			failed++
		} else {
			sent++
		}
	}

	c.SentCount = sent
	c.FailedCount = failed

	// An empty audience completes with zero sends; FAILED is reserved for
	// runs where every dispatch was attempted and none went through.
	switch {
	case cancelled:
		c.Status = model.CampaignCancelled
	case failed == 0:
		c.Status = model.CampaignCompleted
	case sent > 0:
		c.Status = model.CampaignPartial
	default:
		c.Status = model.CampaignFailed
		c.FailureReason = "all sends failed"
	}

	if c, err = s.campaigns.Update(ctx, c); err != nil {
		return nil, err
	}

	prom.AddCampaignSendDuration(time.Since(start).Seconds(), string(c.Status))
	logger.Info("campaign send finished", "campaign_id", c.ID, "status", string(c.Status), "sent", sent, "failed", failed)

	return &SendReport{
		CampaignID: c.ID,
		Status:     c.Status,
		Sent:       sent,
		Failed:     failed,
		Total:      c.TotalRecipients,
	}, nil
}

// DispatchDue sends every SCHEDULED campaign whose time has come. Errors
// on individual campaigns are logged and do not stop the sweep.
func (s *CampaignService) DispatchDue(ctx context.Context) int {
	due, err := s.campaigns.ListDueScheduled(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("failed to list due campaigns", "error", err)
		return 0
	}

	dispatched := 0
	for _, c := range due {
		if _, err := s.SendNow(ctx, c.ID, c.ClientID); err != nil {
			logger.Error("scheduled campaign send failed", "campaign_id", c.ID, "error", err)
			continue
		}
		dispatched++
	}
	return dispatched
}

// FailStalled marks campaigns stuck in SENDING since before the cutoff as
// FAILED. A stall means the process running the loop died mid-send.
func (s *CampaignService) FailStalled(ctx context.Context, cutoff time.Time) int {
	stalled, err := s.campaigns.ListStalledSending(ctx, cutoff)
	if err != nil {
		logger.Error("failed to list stalled campaigns", "error", err)
		return 0
	}

	failed := 0
	for _, c := range stalled {
		c.Status = model.CampaignFailed
		c.FailureReason = "send loop stalled, marked failed by supervisor"
		if _, err := s.campaigns.Update(ctx, c); err != nil {
			logger.Error("failed to mark stalled campaign", "campaign_id", c.ID, "error", err)
			continue
		}
		logger.Warn("stalled campaign marked failed", "campaign_id", c.ID, "started_at", c.ActualSentAt)
		failed++
	}
	return failed
}

// cancelRequested re-reads the campaign between recipients so that an
// external Cancel takes effect without killing the worker.
func (s *CampaignService) cancelRequested(ctx context.Context, id, clientID int64) bool {
	current, err := s.campaigns.GetByID(ctx, id, clientID)
	if err != nil {
		return false
	}
	return current.Status == model.CampaignCancelled
}

func (s *CampaignService) markFailed(ctx context.Context, c *model.Campaign, reason string) error {
	c.Status = model.CampaignFailed
	c.FailureReason = reason
	if _, err := s.campaigns.Update(ctx, c); err != nil {
		logger.Error("failed to mark campaign failed", "campaign_id", c.ID, "error", err)
	}
	logger.Warn("campaign failed preflight", "campaign_id", c.ID, "reason", reason)
	return fmt.Errorf("campaign %d failed: %s", c.ID, reason)
}

// buildBodyParams fills the template's variables in order from the
// recipient's personalization map. A missing value becomes an empty
// string so a sparse map never aborts the send.
func buildBodyParams(variables []string, values map[string]string) []string {
	if len(variables) == 0 {
		return nil
	}
	params := make([]string, 0, len(variables))
	for _, v := range variables {
		params = append(params, values[v])
	}
	return params
}
