package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/oneclick/wa-gateway/internal/model"
)

type TemplateStore interface {
	Create(ctx context.Context, t *model.MessageTemplate) (*model.MessageTemplate, error)
	GetByID(ctx context.Context, id, clientID int64) (*model.MessageTemplate, error)
	List(ctx context.Context, clientID int64) ([]*model.MessageTemplate, error)
}

// TemplateService registers template metadata. The approval itself happens
// on Meta's side; this side records the approved name, language and
// variable order so campaigns can render body parameters.
type TemplateService struct {
	templates TemplateStore
}

func NewTemplateService(templates TemplateStore) *TemplateService {
	return &TemplateService{templates: templates}
}

func (s *TemplateService) Register(ctx context.Context, t *model.MessageTemplate) (*model.MessageTemplate, error) {
	if t.ClientID == 0 {
		return nil, errors.New("client_id is required")
	}
	if t.Name == "" {
		return nil, errors.New("template_name is required")
	}
	if t.LanguageCode == "" {
		t.LanguageCode = "en_US"
	}
	if t.VariablesJSON != "" {
		var vars []string
		if err := json.Unmarshal([]byte(t.VariablesJSON), &vars); err != nil {
			return nil, errors.New("variables_expected_json must be a JSON array of names")
		}
	}
	if t.Status == "" {
		t.Status = model.TemplateApproved
	}
	return s.templates.Create(ctx, t)
}

func (s *TemplateService) Get(ctx context.Context, id, clientID int64) (*model.MessageTemplate, error) {
	return s.templates.GetByID(ctx, id, clientID)
}

func (s *TemplateService) List(ctx context.Context, clientID int64) ([]*model.MessageTemplate, error) {
	return s.templates.List(ctx, clientID)
}
