package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	gateway "github.com/oneclick/wa-gateway/internal/gateways"
	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/oneclick/wa-gateway/pkg/prom"
)

var (
	// ErrClientNotFound indicates an unknown tenant id.
	ErrClientNotFound = errors.New("client not found")
	// ErrCredentialsUnset indicates the tenant never configured its
	// WhatsApp access token or phone number id.
	ErrCredentialsUnset = errors.New("client transport credentials not configured")
)

type MessageLogRepository interface {
	Create(ctx context.Context, log *model.MessageLog) (*model.MessageLog, error)
	Update(ctx context.Context, log *model.MessageLog) (*model.MessageLog, error)
	GetByID(ctx context.Context, id int64) (*model.MessageLog, error)
	List(ctx context.Context, filter model.MessageLogFilter) ([]*model.MessageLog, int64, error)
}

type ClientRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Client, error)
}

type MessageTransport interface {
	SendTemplate(ctx context.Context, creds gateway.Credentials, req gateway.TemplateSend) (*gateway.SendResult, error)
	SendText(ctx context.Context, creds gateway.Credentials, req gateway.TextSend) (*gateway.SendResult, error)
}

type MessageCharger interface {
	ChargeForMessage(ctx context.Context, clientID, messageLogID int64, campaignID *int64) (*model.LedgerTransaction, error)
}

// TemplateDispatch describes one outbound template message.
type TemplateDispatch struct {
	ClientID     int64
	Recipient    string
	TemplateName string
	Language     string
	BodyParams   []string
	CampaignID   *int64
}

// TextDispatch describes one outbound free-form text message.
type TextDispatch struct {
	ClientID  int64
	Recipient string
	Body      string
}

// DispatchService owns the unit of sending a single message: write the
// pending log row first, attempt the provider call, record the outcome,
// and charge the wallet exactly once on acceptance.
type DispatchService struct {
	logs      MessageLogRepository
	clients   ClientRepository
	transport MessageTransport
	charger   MessageCharger
}

func NewDispatchService(logs MessageLogRepository, clients ClientRepository, transport MessageTransport, charger MessageCharger) *DispatchService {
	return &DispatchService{
		logs:      logs,
		clients:   clients,
		transport: transport,
		charger:   charger,
	}
}

// SendTemplate dispatches one template message. The returned log reflects
// the immediate outcome; delivery progress arrives later via webhooks.
// A non-nil log is returned together with the error when the send failed
// after the log row was written.
func (s *DispatchService) SendTemplate(ctx context.Context, req TemplateDispatch) (*model.MessageLog, error) {
	start := time.Now()
	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, ErrClientNotFound
	}
	if !client.HasTransportCredentials() {
		return nil, ErrCredentialsUnset
	}

	content := fmt.Sprintf("Template '%s' to %s", req.TemplateName, req.Recipient)
	log, err := s.createPending(ctx, pendingLog{
		ClientID:     req.ClientID,
		Recipient:    req.Recipient,
		MessageType:  "template",
		TemplateName: req.TemplateName,
		Content:      content,
		CampaignID:   req.CampaignID,
	})
	if err != nil {
		return nil, err
	}

	result, sendErr := s.transport.SendTemplate(ctx, gateway.Credentials{
		AccessToken:   client.AccessToken,
		PhoneNumberID: client.PhoneNumberID,
	}, gateway.TemplateSend{
		Recipient:  req.Recipient,
		Name:       req.TemplateName,
		Language:   req.Language,
		BodyParams: req.BodyParams,
	})

	return s.recordOutcome(ctx, log, result, sendErr, start)
}

// SendText dispatches one free-form message inside the service window.
func (s *DispatchService) SendText(ctx context.Context, req TextDispatch) (*model.MessageLog, error) {
	start := time.Now()
	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, ErrClientNotFound
	}
	if !client.HasTransportCredentials() {
		return nil, ErrCredentialsUnset
	}

	log, err := s.createPending(ctx, pendingLog{
		ClientID:    req.ClientID,
		Recipient:   req.Recipient,
		MessageType: "text",
		Content:     req.Body,
	})
	if err != nil {
		return nil, err
	}

	result, sendErr := s.transport.SendText(ctx, gateway.Credentials{
		AccessToken:   client.AccessToken,
		PhoneNumberID: client.PhoneNumberID,
	}, gateway.TextSend{
		Recipient: req.Recipient,
		Body:      req.Body,
	})

	return s.recordOutcome(ctx, log, result, sendErr, start)
}

// GetMessage returns one of the client's message logs. Logs belonging to
// other clients are reported as not found.
func (s *DispatchService) GetMessage(ctx context.Context, id, clientID int64) (*model.MessageLog, error) {
	log, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if log.ClientID != clientID {
		return nil, repository.ErrMessageLogNotFound
	}
	return log, nil
}

// ListMessages returns a page of the client's message history.
func (s *DispatchService) ListMessages(ctx context.Context, filter model.MessageLogFilter) ([]*model.MessageLog, int64, error) {
	return s.logs.List(ctx, filter)
}

type pendingLog struct {
	ClientID     int64
	Recipient    string
	MessageType  string
	TemplateName string
	Content      string
	CampaignID   *int64
}

func (s *DispatchService) createPending(ctx context.Context, p pendingLog) (*model.MessageLog, error) {
	now := time.Now().UTC()
	return s.logs.Create(ctx, &model.MessageLog{
		ClientID:        p.ClientID,
		CampaignID:      p.CampaignID,
		Direction:       model.DirectionOutgoing,
		Recipient:       p.Recipient,
		MessageType:     p.MessageType,
		TemplateName:    p.TemplateName,
		RenderedContent: p.Content,
		Status:          model.StatusPending,
		CreatedAt:       now,
		StatusUpdatedAt: now,
	})
}

func (s *DispatchService) recordOutcome(ctx context.Context, log *model.MessageLog, result *gateway.SendResult, sendErr error, start time.Time) (*model.MessageLog, error) {
	if sendErr != nil {
		var apiErr *gateway.APIError
		if errors.As(sendErr, &apiErr) {
			log.Status = model.StatusFailedOnSend
			log.FailureReason = apiErr.Message
			prom.IncDispatchOutcome("failed_on_send")
		} else {
			log.Status = model.StatusFailedInternalError
			log.FailureReason = sendErr.Error()
			prom.IncDispatchOutcome("failed_internal")
		}
		log.StatusUpdatedAt = time.Now().UTC()
		if _, err := s.logs.Update(ctx, log); err != nil {
			logger.Error("failed to persist send failure", "message_log_id", log.ID, "error", err)
		}
		return log, sendErr
	}

	log.Status = model.StatusSentToWhatsApp
	log.ExternalID = result.ExternalID
	now := time.Now().UTC()
	log.StatusUpdatedAt = now
	log.SentAt = &now

	// Charge once, keyed to this log row. A charge failure never undoes
	// the send; it raises a reconciliation alert for manual billing.
	txn, chargeErr := s.charger.ChargeForMessage(ctx, log.ClientID, log.ID, log.CampaignID)
	if chargeErr != nil {
		prom.IncBillingReconciliationAlert()
		logger.Error("message sent but charge failed, needs billing reconciliation",
			"message_log_id", log.ID, "client_id", log.ClientID, "error", chargeErr)
	} else {
		cost := txn.Amount.Abs()
		log.Cost = &cost
		prom.IncLedgerTransaction(string(txn.Kind))
	}

	if _, err := s.logs.Update(ctx, log); err != nil {
		logger.Error("failed to persist send success", "message_log_id", log.ID, "error", err)
	}

	prom.IncDispatchOutcome("sent_to_whatsapp")
	prom.AddDispatchSendDuration(time.Since(start).Seconds())

	return log, nil
}
