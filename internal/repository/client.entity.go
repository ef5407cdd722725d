package repository

import (
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
)

type ClientEntity struct {
	ID            int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	Name          string    `db:"name"            gorm:"column:name;not null"`
	WabaID        string    `db:"waba_id"         gorm:"column:waba_id;index"`
	PhoneNumberID string    `db:"phone_number_id" gorm:"column:phone_number_id"`
	AccessToken   string    `db:"access_token"    gorm:"column:access_token"`
	Currency      string    `db:"currency"        gorm:"column:currency;not null;default:USD"`
	CreatedAt     time.Time `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
}

func (ClientEntity) TableName() string {
	return "clients"
}

func toClientEntity(m *model.Client) *ClientEntity {
	if m == nil {
		return nil
	}
	return &ClientEntity{
		ID:            m.ID,
		Name:          m.Name,
		WabaID:        m.WabaID,
		PhoneNumberID: m.PhoneNumberID,
		AccessToken:   m.AccessToken,
		Currency:      m.Currency,
		CreatedAt:     m.CreatedAt,
	}
}

func toClientModel(e *ClientEntity) *model.Client {
	if e == nil {
		return nil
	}
	return &model.Client{
		ID:            e.ID,
		Name:          e.Name,
		WabaID:        e.WabaID,
		PhoneNumberID: e.PhoneNumberID,
		AccessToken:   e.AccessToken,
		Currency:      e.Currency,
		CreatedAt:     e.CreatedAt,
	}
}
