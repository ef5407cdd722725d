package services

import (
	"context"
	"errors"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/pkg/logger"
)

type ClientAdminRepository interface {
	Create(ctx context.Context, c *model.Client) (*model.Client, error)
	GetByID(ctx context.Context, id int64) (*model.Client, error)
	GetByWabaID(ctx context.Context, wabaID string) (*model.Client, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type WalletCreator interface {
	Create(ctx context.Context, clientID int64, currency string) (*model.Wallet, error)
}

// ClientService provisions tenants. Every client gets a zero-balance
// wallet in the same transaction, so a client without a wallet cannot
// exist.
type ClientService struct {
	clients         ClientAdminRepository
	wallets         WalletCreator
	defaultCurrency string
}

func NewClientService(clients ClientAdminRepository, wallets WalletCreator, defaultCurrency string) *ClientService {
	return &ClientService{
		clients:         clients,
		wallets:         wallets,
		defaultCurrency: defaultCurrency,
	}
}

func (s *ClientService) Register(ctx context.Context, c *model.Client) (*model.Client, error) {
	if c.Name == "" {
		return nil, errors.New("client name is required")
	}
	if c.Currency == "" {
		c.Currency = s.defaultCurrency
	}

	var created *model.Client
	err := s.clients.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.clients.Create(ctx, c)
		if err != nil {
			return err
		}
		_, err = s.wallets.Create(ctx, created.ID, created.Currency)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("client registered", "client_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *ClientService) Get(ctx context.Context, id int64) (*model.Client, error) {
	c, err := s.clients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return c, nil
}

// ResolveByWabaID maps a webhook's WhatsApp Business Account id to the
// owning tenant.
func (s *ClientService) ResolveByWabaID(ctx context.Context, wabaID string) (*model.Client, error) {
	c, err := s.clients.GetByWabaID(ctx, wabaID)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return c, nil
}
