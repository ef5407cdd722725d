package repository

import (
	"context"
	"testing"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeLog(t *testing.T, repo *MessageLogRepository, log *model.MessageLog) *model.MessageLog {
	t.Helper()
	created, err := repo.Create(context.Background(), log)
	require.NoError(t, err)
	return created
}

func outboundLog(clientID int64, recipient, externalID string) *model.MessageLog {
	return &model.MessageLog{
		ClientID:        clientID,
		ExternalID:      externalID,
		Recipient:       recipient,
		MessageType:     "template",
		Direction:       model.DirectionOutgoing,
		TemplateName:    "order_update",
		RenderedContent: "Template 'order_update' to " + recipient,
		Status:          model.StatusPending,
	}
}

func TestMessageLogRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageLogRepository(db)

	created := storeLog(t, repo, outboundLog(1, "+14155550100", ""))
	assert.NotZero(t, created.ID)
	assert.NotZero(t, created.CreatedAt)
	assert.NotZero(t, created.StatusUpdatedAt)
	assert.Equal(t, model.StatusPending, created.Status)
}

func TestMessageLogRepository_Update(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageLogRepository(db)
	ctx := context.Background()

	created := storeLog(t, repo, outboundLog(1, "+14155550100", ""))
	created.Status = model.StatusSentToWhatsApp
	created.ExternalID = "wamid.ABC"

	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSentToWhatsApp, updated.Status)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", got.ExternalID)
}

func TestMessageLogRepository_FindByExternalID(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageLogRepository(db)
	ctx := context.Background()

	created := storeLog(t, repo, outboundLog(1, "+14155550100", "wamid.ABC"))

	t.Run("found for owning client", func(t *testing.T) {
		got, err := repo.FindByExternalID(ctx, "wamid.ABC", 1)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("scoped by client", func(t *testing.T) {
		_, err := repo.FindByExternalID(ctx, "wamid.ABC", 2)
		assert.ErrorIs(t, err, ErrMessageLogNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByExternalID(ctx, "wamid.NOPE", 1)
		assert.ErrorIs(t, err, ErrMessageLogNotFound)
	})
}

func TestMessageLogRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageLogRepository(db)
	ctx := context.Background()

	campaignID := int64(10)
	for i := 0; i < 3; i++ {
		log := outboundLog(1, "+14155550100", "")
		log.CampaignID = &campaignID
		log.Status = model.StatusDelivered
		storeLog(t, repo, log)
	}
	storeLog(t, repo, outboundLog(1, "+447700900123", ""))
	storeLog(t, repo, &model.MessageLog{
		ClientID:        1,
		Recipient:       "+14155550100",
		MessageType:     "incoming_text",
		Direction:       model.DirectionIncoming,
		IncomingContent: "hello",
		Status:          model.StatusReceived,
	})
	storeLog(t, repo, outboundLog(2, "+14155550100", ""))

	clientID := int64(1)

	t.Run("by client", func(t *testing.T) {
		logs, total, err := repo.List(ctx, model.MessageLogFilter{ClientID: &clientID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, logs, 5)
	})

	t.Run("by campaign", func(t *testing.T) {
		logs, total, err := repo.List(ctx, model.MessageLogFilter{ClientID: &clientID, CampaignID: &campaignID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, logs, 3)
	})

	t.Run("by direction", func(t *testing.T) {
		incoming := model.DirectionIncoming
		logs, total, err := repo.List(ctx, model.MessageLogFilter{ClientID: &clientID, Direction: &incoming, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, logs, 1)
		assert.Equal(t, "hello", logs[0].IncomingContent)
	})

	t.Run("by status set", func(t *testing.T) {
		logs, _, err := repo.List(ctx, model.MessageLogFilter{
			ClientID: &clientID,
			Statuses: []model.MessageStatus{model.StatusDelivered},
			Limit:    10,
		})
		require.NoError(t, err)
		assert.Len(t, logs, 3)
	})

	t.Run("by recipient", func(t *testing.T) {
		recipient := "+447700900123"
		logs, _, err := repo.List(ctx, model.MessageLogFilter{ClientID: &clientID, Recipient: &recipient, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})
}
