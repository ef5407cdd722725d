package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrMessageLogNotFound = errors.New("message log not found")
)

type MessageLogRepository struct {
	*pg.DB
}

func NewMessageLogRepository(db *pg.DB) *MessageLogRepository {
	return &MessageLogRepository{
		db,
	}
}

func (r *MessageLogRepository) Create(ctx context.Context, log *model.MessageLog) (*model.MessageLog, error) {
	entity := toMessageLogEntity(log)
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now().UTC()
	}
	if entity.StatusUpdatedAt.IsZero() {
		entity.StatusUpdatedAt = entity.CreatedAt
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageLogModel(entity), nil
}

// Update persists the full row. Log entries are mutated in place by status
// updates and never deleted.
func (r *MessageLogRepository) Update(ctx context.Context, log *model.MessageLog) (*model.MessageLog, error) {
	entity := toMessageLogEntity(log)

	result := r.Write(ctx).WithContext(ctx).Save(entity)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrMessageLogNotFound
	}

	return toMessageLogModel(entity), nil
}

func (r *MessageLogRepository) GetByID(ctx context.Context, id int64) (*model.MessageLog, error) {
	var entity MessageLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageLogNotFound
		}
		return nil, err
	}
	return toMessageLogModel(&entity), nil
}

// FindByExternalID resolves a webhook status event to the log entry it
// belongs to. Lookups are scoped by client so one tenant's events can never
// touch another tenant's rows.
func (r *MessageLogRepository) FindByExternalID(ctx context.Context, externalID string, clientID int64) (*model.MessageLog, error) {
	var entity MessageLogEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("whatsapp_message_id = ? AND client_id = ?", externalID, clientID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageLogNotFound
		}
		return nil, err
	}
	return toMessageLogModel(&entity), nil
}

func (r *MessageLogRepository) List(ctx context.Context, f model.MessageLogFilter) ([]*model.MessageLog, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageLogEntity{})

	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.CampaignID != nil {
		q = q.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.Direction != nil {
		q = q.Where("direction = ?", string(*f.Direction))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Recipient != nil && *f.Recipient != "" {
		q = q.Where("recipient_phone_number = ?", *f.Recipient)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageLogEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageLogModels(entities), total, nil
}
