package repository

import (
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type MessageLogEntity struct {
	ID              int64            `db:"id"                       gorm:"primaryKey;autoIncrement;column:id"`
	ClientID        int64            `db:"client_id"                gorm:"column:client_id;not null;index"`
	CampaignID      *int64           `db:"campaign_id"              gorm:"column:campaign_id;index"`
	ExternalID      string           `db:"whatsapp_message_id"      gorm:"column:whatsapp_message_id;index"`
	Recipient       string           `db:"recipient_phone_number"   gorm:"column:recipient_phone_number;not null;index"`
	SenderPhoneID   string           `db:"sender_phone_number_id"   gorm:"column:sender_phone_number_id"`
	MessageType     string           `db:"message_type"             gorm:"column:message_type;not null"`
	Direction       string           `db:"direction"                gorm:"column:direction;not null;default:outgoing"`
	TemplateName    string           `db:"template_name"            gorm:"column:template_name"`
	RenderedContent string           `db:"message_content_rendered" gorm:"column:message_content_rendered"`
	IncomingContent string           `db:"incoming_message_content" gorm:"column:incoming_message_content"`
	Status          string           `db:"status"                   gorm:"column:status;not null;index"`
	FailureReason   string           `db:"failure_reason"           gorm:"column:failure_reason"`
	Cost            *decimal.Decimal `db:"cost"                     gorm:"column:cost;type:numeric(10,4)"`
	CreatedAt       time.Time        `db:"created_at"               gorm:"column:created_at;index"`
	SentAt          *time.Time       `db:"sent_at"                  gorm:"column:sent_at"`
	DeliveredAt     *time.Time       `db:"delivered_at"             gorm:"column:delivered_at"`
	ReadAt          *time.Time       `db:"read_at"                  gorm:"column:read_at"`
	StatusUpdatedAt time.Time        `db:"status_updated_at"        gorm:"column:status_updated_at"`
}

func (MessageLogEntity) TableName() string {
	return "message_logs"
}

func toMessageLogEntity(m *model.MessageLog) *MessageLogEntity {
	if m == nil {
		return nil
	}
	return &MessageLogEntity{
		ID:              m.ID,
		ClientID:        m.ClientID,
		CampaignID:      m.CampaignID,
		ExternalID:      m.ExternalID,
		Recipient:       m.Recipient,
		SenderPhoneID:   m.SenderPhoneID,
		MessageType:     m.MessageType,
		Direction:       string(m.Direction),
		TemplateName:    m.TemplateName,
		RenderedContent: m.RenderedContent,
		IncomingContent: m.IncomingContent,
		Status:          string(m.Status),
		FailureReason:   m.FailureReason,
		Cost:            m.Cost,
		CreatedAt:       m.CreatedAt,
		SentAt:          m.SentAt,
		DeliveredAt:     m.DeliveredAt,
		ReadAt:          m.ReadAt,
		StatusUpdatedAt: m.StatusUpdatedAt,
	}
}

func toMessageLogModel(e *MessageLogEntity) *model.MessageLog {
	if e == nil {
		return nil
	}
	return &model.MessageLog{
		ID:              e.ID,
		ClientID:        e.ClientID,
		CampaignID:      e.CampaignID,
		ExternalID:      e.ExternalID,
		Recipient:       e.Recipient,
		SenderPhoneID:   e.SenderPhoneID,
		MessageType:     e.MessageType,
		Direction:       model.Direction(e.Direction),
		TemplateName:    e.TemplateName,
		RenderedContent: e.RenderedContent,
		IncomingContent: e.IncomingContent,
		Status:          model.MessageStatus(e.Status),
		FailureReason:   e.FailureReason,
		Cost:            e.Cost,
		CreatedAt:       e.CreatedAt,
		SentAt:          e.SentAt,
		DeliveredAt:     e.DeliveredAt,
		ReadAt:          e.ReadAt,
		StatusUpdatedAt: e.StatusUpdatedAt,
	}
}

func toMessageLogModels(entities []*MessageLogEntity) []*model.MessageLog {
	if entities == nil {
		return nil
	}
	models := make([]*model.MessageLog, len(entities))
	for i, e := range entities {
		models[i] = toMessageLogModel(e)
	}
	return models
}
