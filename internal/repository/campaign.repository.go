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
	ErrCampaignNotFound = errors.New("campaign not found")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toCampaignModel(entity), nil
}

// GetByID is always client-scoped: a campaign owned by another client is
// indistinguishable from a missing one.
func (r *CampaignRepository) GetByID(ctx context.Context, id, clientID int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? AND client_id = ?", id, clientID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

func (r *CampaignRepository) List(ctx context.Context, clientID int64, limit, offset int) ([]*model.Campaign, int64, error) {
	query := r.Read(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("client_id = ?", clientID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}

	var entities []*CampaignEntity
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entities).
		Error
	if err != nil {
		return nil, 0, err
	}
	return toCampaignModels(entities), total, nil
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)

	result := r.Write(ctx).WithContext(ctx).Save(entity)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrCampaignNotFound
	}

	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id, clientID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ? AND client_id = ?", id, clientID).
		Delete(&CampaignEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// ListDueScheduled returns SCHEDULED campaigns whose send time has passed.
// The scheduler loop picks these up and triggers SendNow for each.
func (r *CampaignRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	var entities []*CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", string(model.CampaignScheduled), now).
		Order("scheduled_at ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toCampaignModels(entities), nil
}

// ListStalledSending returns campaigns stuck in SENDING since before the
// cutoff, i.e. a send loop that crashed without finalizing its counters.
func (r *CampaignRepository) ListStalledSending(ctx context.Context, cutoff time.Time) ([]*model.Campaign, error) {
	var entities []*CampaignEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND actual_sent_at IS NOT NULL AND actual_sent_at < ?", string(model.CampaignSending), cutoff).
		Order("actual_sent_at ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toCampaignModels(entities), nil
}

// IncrementCounter bumps one aggregate counter in place. Used by the
// reconciler for delivered/read/failed transitions driven by webhooks.
func (r *CampaignRepository) IncrementCounter(ctx context.Context, id int64, column string) error {
	switch column {
	case "messages_delivered_count", "messages_read_count", "messages_failed_count", "messages_sent_count":
	default:
		return errors.New("unknown campaign counter: " + column)
	}
	result := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", id).
		Update(column, gorm.Expr(column+" + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// TransitionToSending atomically claims a campaign for the send loop.
// Returns false when another worker already claimed it or the status
// changed underneath us.
func (r *CampaignRepository) TransitionToSending(ctx context.Context, id, clientID int64, startedAt time.Time) (bool, error) {
	sendable := []string{
		string(model.CampaignDraft),
		string(model.CampaignScheduled),
		string(model.CampaignPendingSend),
	}
	result := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ? AND client_id = ? AND status IN ?", id, clientID, sendable).
		Updates(map[string]interface{}{
			"status":         string(model.CampaignSending),
			"actual_sent_at": startedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
