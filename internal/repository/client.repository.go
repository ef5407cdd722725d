package repository

import (
	"context"
	"errors"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound = errors.New("client not found")
)

type ClientRepository struct {
	*pg.DB
}

func NewClientRepository(db *pg.DB) *ClientRepository {
	return &ClientRepository{
		db,
	}
}

func (r *ClientRepository) Create(ctx context.Context, c *model.Client) (*model.Client, error) {
	entity := toClientEntity(c)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toClientModel(entity), nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*model.Client, error) {
	var entity ClientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return toClientModel(&entity), nil
}

// GetByWabaID maps a webhook's WhatsApp Business Account id to the owning
// client. Events for unknown WABA ids are dropped by the caller.
func (r *ClientRepository) GetByWabaID(ctx context.Context, wabaID string) (*model.Client, error) {
	var entity ClientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("waba_id = ?", wabaID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return toClientModel(&entity), nil
}
