package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id, clientID int64) (*model.Campaign, error) {
	args := m.Called(ctx, id, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) List(ctx context.Context, clientID int64, limit, offset int) ([]*model.Campaign, int64, error) {
	args := m.Called(ctx, clientID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignRepository) Update(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Delete(ctx context.Context, id, clientID int64) error {
	args := m.Called(ctx, id, clientID)
	return args.Error(0)
}

func (m *MockCampaignRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) ListStalledSending(ctx context.Context, cutoff time.Time) ([]*model.Campaign, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) TransitionToSending(ctx context.Context, id, clientID int64, startedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, clientID, startedAt)
	return args.Bool(0), args.Error(1)
}

type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, id, clientID int64) (*model.MessageTemplate, error) {
	args := m.Called(ctx, id, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageTemplate), args.Error(1)
}

type MockCampaignDispatcher struct {
	mock.Mock
}

func (m *MockCampaignDispatcher) SendTemplate(ctx context.Context, req TemplateDispatch) (*model.MessageLog, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageLog), args.Error(1)
}

type campaignFixture struct {
	campaigns  *MockCampaignRepository
	templates  *MockTemplateRepository
	clients    *MockClientRepository
	dispatcher *MockCampaignDispatcher
	service    *CampaignService
}

func newCampaignFixture() *campaignFixture {
	f := &campaignFixture{
		campaigns:  new(MockCampaignRepository),
		templates:  new(MockTemplateRepository),
		clients:    new(MockClientRepository),
		dispatcher: new(MockCampaignDispatcher),
	}
	f.service = NewCampaignService(f.campaigns, f.templates, f.clients, f.dispatcher)
	return f
}

func approvedTemplate() *model.MessageTemplate {
	return &model.MessageTemplate{
		ID:            3,
		ClientID:      1,
		Name:          "order_update",
		LanguageCode:  "en_US",
		VariablesJSON: `["name"]`,
		Status:        model.TemplateApproved,
	}
}

func sendableCampaign() *model.Campaign {
	return &model.Campaign{
		ID:                  10,
		ClientID:            1,
		TemplateID:          3,
		Name:                "Spring promo",
		AudienceJSON:        `["+14155550100","+447700900123"]`,
		PersonalizationJSON: `{"+14155550100":{"name":"Jane"}}`,
		Status:              model.CampaignPendingSend,
		TotalRecipients:     2,
	}
}

// echoUpdate makes Update return the campaign it was given, like the real
// repository does.
func (f *campaignFixture) echoUpdate() *model.Campaign {
	saved := &model.Campaign{}
	f.campaigns.On("Update", mock.Anything, mock.AnythingOfType("*model.Campaign")).
		Run(func(args mock.Arguments) {
			*saved = *args.Get(1).(*model.Campaign)
		}).
		Return(saved, nil)
	return saved
}

func TestCampaignService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate campaign is pending send", func(t *testing.T) {
		f := newCampaignFixture()
		f.templates.On("GetByID", ctx, int64(3), int64(1)).Return(approvedTemplate(), nil)
		f.campaigns.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignPendingSend && c.TotalRecipients == 2
		})).Return(&model.Campaign{ID: 10, Status: model.CampaignPendingSend}, nil)

		created, err := f.service.Create(ctx, 1, &model.CampaignCreateRequest{
			TemplateID:   3,
			Name:         "Spring promo",
			AudienceJSON: `["+14155550100","+447700900123"]`,
		})
		require.NoError(t, err)
		assert.Equal(t, model.CampaignPendingSend, created.Status)
	})

	t.Run("future schedule yields scheduled", func(t *testing.T) {
		f := newCampaignFixture()
		f.templates.On("GetByID", ctx, int64(3), int64(1)).Return(approvedTemplate(), nil)
		f.campaigns.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignScheduled
		})).Return(&model.Campaign{ID: 11, Status: model.CampaignScheduled}, nil)

		at := time.Now().Add(2 * time.Hour)
		_, err := f.service.Create(ctx, 1, &model.CampaignCreateRequest{
			TemplateID:   3,
			Name:         "Later",
			AudienceJSON: `["+14155550100"]`,
			ScheduledAt:  &at,
		})
		require.NoError(t, err)
	})

	t.Run("unknown template", func(t *testing.T) {
		f := newCampaignFixture()
		f.templates.On("GetByID", ctx, int64(99), int64(1)).Return(nil, repository.ErrTemplateNotFound)

		_, err := f.service.Create(ctx, 1, &model.CampaignCreateRequest{
			TemplateID:   99,
			Name:         "Broken",
			AudienceJSON: `["+14155550100"]`,
		})
		assert.Error(t, err)
		f.campaigns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("invalid audience json", func(t *testing.T) {
		f := newCampaignFixture()
		_, err := f.service.Create(ctx, 1, &model.CampaignCreateRequest{
			TemplateID:   3,
			Name:         "Bad",
			AudienceJSON: `{"not":"a list"}`,
		})
		assert.ErrorIs(t, err, model.ErrAudienceNotList)
	})
}

func TestCampaignService_SendNow_AllDelivered(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(approvedTemplate(), nil)
	f.campaigns.On("TransitionToSending", mock.Anything, int64(10), int64(1), mock.Anything).Return(true, nil)
	f.dispatcher.On("SendTemplate", mock.Anything, mock.AnythingOfType("services.TemplateDispatch")).
		Return(&model.MessageLog{Status: model.StatusSentToWhatsApp}, nil)
	saved := f.echoUpdate()

	report, err := f.service.SendNow(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCompleted, report.Status)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, model.CampaignCompleted, saved.Status)
	f.dispatcher.AssertNumberOfCalls(t, "SendTemplate", 2)

	// The first recipient has a personalization entry, the second gets an
	// empty body param for the missing value.
	f.dispatcher.AssertCalled(t, "SendTemplate", mock.Anything, mock.MatchedBy(func(req TemplateDispatch) bool {
		return req.Recipient == "+14155550100" && len(req.BodyParams) == 1 && req.BodyParams[0] == "Jane"
	}))
	f.dispatcher.AssertCalled(t, "SendTemplate", mock.Anything, mock.MatchedBy(func(req TemplateDispatch) bool {
		return req.Recipient == "+447700900123" && len(req.BodyParams) == 1 && req.BodyParams[0] == ""
	}))
}

func TestCampaignService_SendNow_PartialFailure(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(approvedTemplate(), nil)
	f.campaigns.On("TransitionToSending", mock.Anything, int64(10), int64(1), mock.Anything).Return(true, nil)
	f.dispatcher.On("SendTemplate", mock.Anything, mock.MatchedBy(func(req TemplateDispatch) bool {
		return req.Recipient == "+14155550100"
	})).Return(&model.MessageLog{}, nil)
	f.dispatcher.On("SendTemplate", mock.Anything, mock.MatchedBy(func(req TemplateDispatch) bool {
		return req.Recipient == "+447700900123"
	})).Return(nil, errors.New("undeliverable"))
	f.echoUpdate()

	report, err := f.service.SendNow(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignPartial, report.Status)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
}

func TestCampaignService_SendNow_AllFailed(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(approvedTemplate(), nil)
	f.campaigns.On("TransitionToSending", mock.Anything, int64(10), int64(1), mock.Anything).Return(true, nil)
	f.dispatcher.On("SendTemplate", mock.Anything, mock.Anything).Return(nil, errors.New("undeliverable"))
	saved := f.echoUpdate()

	report, err := f.service.SendNow(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignFailed, report.Status)
	assert.Equal(t, "all sends failed", saved.FailureReason)
}

func TestCampaignService_SendNow_EmptyAudienceCompletes(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	c.AudienceJSON = `[]`
	c.PersonalizationJSON = ""
	c.TotalRecipients = 0
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(approvedTemplate(), nil)
	f.campaigns.On("TransitionToSending", mock.Anything, int64(10), int64(1), mock.Anything).Return(true, nil)
	saved := f.echoUpdate()

	// Nothing to send is not a failure: zero failures means COMPLETED.
	report, err := f.service.SendNow(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCompleted, report.Status)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, model.CampaignCompleted, saved.Status)
	assert.Empty(t, saved.FailureReason)
	f.dispatcher.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything)
}

func TestCampaignService_SendNow_WrongStatus(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	c.Status = model.CampaignCompleted
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)

	_, err := f.service.SendNow(ctx, 10, 1)
	assert.ErrorIs(t, err, ErrCampaignStateConflict)
	f.campaigns.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCampaignService_SendNow_ClaimLost(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(approvedTemplate(), nil)
	f.campaigns.On("TransitionToSending", mock.Anything, int64(10), int64(1), mock.Anything).Return(false, nil)

	// A concurrent worker claimed the campaign between the read and the
	// transition; nothing is sent here.
	_, err := f.service.SendNow(ctx, 10, 1)
	assert.ErrorIs(t, err, ErrCampaignStateConflict)
	f.dispatcher.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything)
}

func TestCampaignService_SendNow_BadAudienceMarksFailed(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	c.AudienceJSON = `{"broken":`
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	saved := f.echoUpdate()

	_, err := f.service.SendNow(ctx, 10, 1)
	require.Error(t, err)
	assert.Equal(t, model.CampaignFailed, saved.Status)
	assert.Contains(t, saved.FailureReason, "invalid audience")
}

func TestCampaignService_SendNow_UnapprovedTemplateMarksFailed(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	tpl := approvedTemplate()
	tpl.Status = "PENDING"
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(tpl, nil)
	saved := f.echoUpdate()

	_, err := f.service.SendNow(ctx, 10, 1)
	require.Error(t, err)
	assert.Equal(t, model.CampaignFailed, saved.Status)
	f.dispatcher.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything)
}

func TestCampaignService_SendNow_CredentialsUnsetLeavesCampaign(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	client := dispatchClient(1)
	client.AccessToken = ""
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(client, nil)

	_, err := f.service.SendNow(ctx, 10, 1)
	assert.ErrorIs(t, err, ErrCredentialsUnset)
	f.campaigns.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCampaignService_SendNow_CancelledContextStopsLoop(t *testing.T) {
	f := newCampaignFixture()
	ctx, cancel := context.WithCancel(context.Background())

	c := sendableCampaign()
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(approvedTemplate(), nil)
	f.campaigns.On("TransitionToSending", mock.Anything, int64(10), int64(1), mock.Anything).Return(true, nil)
	saved := f.echoUpdate()

	cancel()
	report, err := f.service.SendNow(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCancelled, report.Status)
	assert.Equal(t, model.CampaignCancelled, saved.Status)
	f.dispatcher.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything)
}

func TestCampaignService_SendNow_CancelObservedBetweenRecipients(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil).Once()
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(approvedTemplate(), nil)
	f.campaigns.On("TransitionToSending", mock.Anything, int64(10), int64(1), mock.Anything).Return(true, nil)
	saved := f.echoUpdate()

	// A concurrent Cancel flipped the row; the loop's re-read before the
	// first recipient sees it and stops without dispatching.
	flipped := sendableCampaign()
	flipped.Status = model.CampaignCancelled
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(flipped, nil)

	report, err := f.service.SendNow(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCancelled, report.Status)
	assert.Equal(t, model.CampaignCancelled, saved.Status)
	f.dispatcher.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything)
}

func TestCampaignService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("pending campaign cancels", func(t *testing.T) {
		f := newCampaignFixture()
		c := sendableCampaign()
		f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
		saved := f.echoUpdate()

		cancelled, err := f.service.Cancel(ctx, 10, 1)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignCancelled, cancelled.Status)
		assert.Equal(t, model.CampaignCancelled, saved.Status)
	})

	t.Run("sending campaign cancels", func(t *testing.T) {
		f := newCampaignFixture()
		c := sendableCampaign()
		c.Status = model.CampaignSending
		f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)
		saved := f.echoUpdate()

		cancelled, err := f.service.Cancel(ctx, 10, 1)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignCancelled, cancelled.Status)
		assert.Equal(t, model.CampaignCancelled, saved.Status)
	})

	t.Run("completed campaign cannot cancel", func(t *testing.T) {
		f := newCampaignFixture()
		c := sendableCampaign()
		c.Status = model.CampaignCompleted
		f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)

		_, err := f.service.Cancel(ctx, 10, 1)
		assert.ErrorIs(t, err, ErrCampaignStateConflict)
	})
}

func TestCampaignService_Delete_SendingRefused(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	c := sendableCampaign()
	c.Status = model.CampaignSending
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(c, nil)

	err := f.service.Delete(ctx, 10, 1)
	assert.ErrorIs(t, err, ErrCampaignStateConflict)
	f.campaigns.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestCampaignService_FailStalled(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	startedAt := time.Now().Add(-time.Hour)
	stalled := &model.Campaign{ID: 12, ClientID: 1, Status: model.CampaignSending, ActualSentAt: &startedAt}
	cutoff := time.Now().Add(-30 * time.Minute)
	f.campaigns.On("ListStalledSending", mock.Anything, cutoff).Return([]*model.Campaign{stalled}, nil)
	saved := f.echoUpdate()

	n := f.service.FailStalled(ctx, cutoff)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.CampaignFailed, saved.Status)
	assert.NotEmpty(t, saved.FailureReason)
}

func TestCampaignService_DispatchDue(t *testing.T) {
	f := newCampaignFixture()
	ctx := context.Background()

	due := sendableCampaign()
	due.Status = model.CampaignScheduled
	f.campaigns.On("ListDueScheduled", mock.Anything, mock.Anything).Return([]*model.Campaign{due}, nil)
	f.campaigns.On("GetByID", mock.Anything, int64(10), int64(1)).Return(due, nil)
	f.clients.On("GetByID", mock.Anything, int64(1)).Return(dispatchClient(1), nil)
	f.templates.On("GetByID", mock.Anything, int64(3), int64(1)).Return(approvedTemplate(), nil)
	f.campaigns.On("TransitionToSending", mock.Anything, int64(10), int64(1), mock.Anything).Return(true, nil)
	f.dispatcher.On("SendTemplate", mock.Anything, mock.Anything).Return(&model.MessageLog{}, nil)
	f.echoUpdate()

	dispatched := f.service.DispatchDue(ctx)
	assert.Equal(t, 1, dispatched)
}
