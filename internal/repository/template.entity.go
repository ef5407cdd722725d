package repository

import (
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
)

type MessageTemplateEntity struct {
	ID            int64     `db:"id"                      gorm:"primaryKey;autoIncrement;column:id"`
	ClientID      int64     `db:"client_id"               gorm:"column:client_id;not null;index"`
	Name          string    `db:"template_name"           gorm:"column:template_name;not null"`
	LanguageCode  string    `db:"language_code"           gorm:"column:language_code;not null;default:en_US"`
	VariablesJSON string    `db:"variables_expected_json" gorm:"column:variables_expected_json"`
	Status        string    `db:"status"                  gorm:"column:status;not null"`
	CreatedAt     time.Time `db:"created_at"              gorm:"column:created_at;autoCreateTime"`
}

func (MessageTemplateEntity) TableName() string {
	return "message_templates"
}

func toTemplateEntity(m *model.MessageTemplate) *MessageTemplateEntity {
	if m == nil {
		return nil
	}
	return &MessageTemplateEntity{
		ID:            m.ID,
		ClientID:      m.ClientID,
		Name:          m.Name,
		LanguageCode:  m.LanguageCode,
		VariablesJSON: m.VariablesJSON,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
	}
}

func toTemplateModel(e *MessageTemplateEntity) *model.MessageTemplate {
	if e == nil {
		return nil
	}
	return &model.MessageTemplate{
		ID:            e.ID,
		ClientID:      e.ClientID,
		Name:          e.Name,
		LanguageCode:  e.LanguageCode,
		VariablesJSON: e.VariablesJSON,
		Status:        e.Status,
		CreatedAt:     e.CreatedAt,
	}
}
