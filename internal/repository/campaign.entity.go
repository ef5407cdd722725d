package repository

import (
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
)

type CampaignEntity struct {
	ID                  int64      `db:"id"                        gorm:"primaryKey;autoIncrement;column:id"`
	ClientID            int64      `db:"client_id"                 gorm:"column:client_id;not null;index"`
	TemplateID          int64      `db:"template_id"               gorm:"column:template_id;not null"`
	Name                string     `db:"campaign_name"             gorm:"column:campaign_name;not null"`
	AudienceJSON        string     `db:"audience_json"             gorm:"column:audience_json"`
	PersonalizationJSON string     `db:"personalization_data_json" gorm:"column:personalization_data_json"`
	ScheduledAt         *time.Time `db:"scheduled_at"              gorm:"column:scheduled_at"`
	ActualSentAt        *time.Time `db:"actual_sent_at"            gorm:"column:actual_sent_at"`
	Status              string     `db:"status"                    gorm:"column:status;not null;index"`
	FailureReason       string     `db:"failure_reason"            gorm:"column:failure_reason"`
	TotalRecipients     int        `db:"total_recipients"          gorm:"column:total_recipients;default:0"`
	SentCount           int        `db:"messages_sent_count"       gorm:"column:messages_sent_count;default:0"`
	DeliveredCount      int        `db:"messages_delivered_count"  gorm:"column:messages_delivered_count;default:0"`
	ReadCount           int        `db:"messages_read_count"       gorm:"column:messages_read_count;default:0"`
	FailedCount         int        `db:"messages_failed_count"     gorm:"column:messages_failed_count;default:0"`
	CreatedAt           time.Time  `db:"created_at"                gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `db:"updated_at"                gorm:"column:updated_at;autoUpdateTime"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

func toCampaignEntity(m *model.Campaign) *CampaignEntity {
	if m == nil {
		return nil
	}
	return &CampaignEntity{
		ID:                  m.ID,
		ClientID:            m.ClientID,
		TemplateID:          m.TemplateID,
		Name:                m.Name,
		AudienceJSON:        m.AudienceJSON,
		PersonalizationJSON: m.PersonalizationJSON,
		ScheduledAt:         m.ScheduledAt,
		ActualSentAt:        m.ActualSentAt,
		Status:              string(m.Status),
		FailureReason:       m.FailureReason,
		TotalRecipients:     m.TotalRecipients,
		SentCount:           m.SentCount,
		DeliveredCount:      m.DeliveredCount,
		ReadCount:           m.ReadCount,
		FailedCount:         m.FailedCount,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:                  e.ID,
		ClientID:            e.ClientID,
		TemplateID:          e.TemplateID,
		Name:                e.Name,
		AudienceJSON:        e.AudienceJSON,
		PersonalizationJSON: e.PersonalizationJSON,
		ScheduledAt:         e.ScheduledAt,
		ActualSentAt:        e.ActualSentAt,
		Status:              model.CampaignStatus(e.Status),
		FailureReason:       e.FailureReason,
		TotalRecipients:     e.TotalRecipients,
		SentCount:           e.SentCount,
		DeliveredCount:      e.DeliveredCount,
		ReadCount:           e.ReadCount,
		FailedCount:         e.FailedCount,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func toCampaignModels(entities []*CampaignEntity) []*model.Campaign {
	if entities == nil {
		return nil
	}
	models := make([]*model.Campaign, len(entities))
	for i, e := range entities {
		models[i] = toCampaignModel(e)
	}
	return models
}
