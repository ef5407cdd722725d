package repository

import (
	"context"
	"errors"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTemplateNotFound = errors.New("message template not found")
)

// TemplateRepository is read-mostly: registration and approval are handled
// by the template workflow elsewhere, the send path only reads.
type TemplateRepository struct {
	*pg.DB
}

func NewTemplateRepository(db *pg.DB) *TemplateRepository {
	return &TemplateRepository{
		db,
	}
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.MessageTemplate) (*model.MessageTemplate, error) {
	entity := toTemplateEntity(t)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toTemplateModel(entity), nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id, clientID int64) (*model.MessageTemplate, error) {
	var entity MessageTemplateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? AND client_id = ?", id, clientID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return toTemplateModel(&entity), nil
}

func (r *TemplateRepository) List(ctx context.Context, clientID int64) ([]*model.MessageTemplate, error) {
	var entities []*MessageTemplateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	models := make([]*model.MessageTemplate, 0, len(entities))
	for _, e := range entities {
		models = append(models, toTemplateModel(e))
	}
	return models, nil
}
