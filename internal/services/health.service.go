package services

import (
	"context"

	"github.com/oneclick/wa-gateway/pkg/pg"
)

// HealthService answers the readiness probe. It checks the write handle,
// the one the request path cannot work without.
type HealthService struct {
	db *pg.DB
}

func NewHealthService(db *pg.DB) *HealthService {
	return &HealthService{db: db}
}

func (s *HealthService) Get() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.Write(context.Background()).DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
