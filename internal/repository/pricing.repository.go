package repository

import (
	"context"
	"errors"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPricingRuleNotFound = errors.New("pricing rule not found")
)

type PricingRepository struct {
	*pg.DB
}

func NewPricingRepository(db *pg.DB) *PricingRepository {
	return &PricingRepository{
		db,
	}
}

func (r *PricingRepository) GetByClientID(ctx context.Context, clientID int64) (*model.PricingRule, error) {
	var entity PricingRuleEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPricingRuleNotFound
		}
		return nil, err
	}
	return toPricingRuleModel(&entity), nil
}

// Upsert creates or replaces the single pricing rule a client may have.
func (r *PricingRepository) Upsert(ctx context.Context, rule *model.PricingRule) (*model.PricingRule, error) {
	entity := toPricingRuleEntity(rule)
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"price_per_message", "currency", "notes", "updated_at"}),
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, err
	}
	return toPricingRuleModel(entity), nil
}

func (r *PricingRepository) Delete(ctx context.Context, clientID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("client_id = ?", clientID).
		Delete(&PricingRuleEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPricingRuleNotFound
	}
	return nil
}

func (r *PricingRepository) List(ctx context.Context) ([]*model.PricingRule, error) {
	var entities []*PricingRuleEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("client_id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toPricingRuleModels(entities), nil
}
