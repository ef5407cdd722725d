package fixtures

import (
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/shopspring/decimal"
)

var (
	TestClient1 = model.Client{
		ID:            1,
		Name:          "Acme Retail",
		WabaID:        "waba-acme",
		PhoneNumberID: "phone-acme",
		AccessToken:   "token-acme",
		Currency:      "USD",
	}

	TestClient2 = model.Client{
		ID:            2,
		Name:          "Globex Travel",
		WabaID:        "waba-globex",
		PhoneNumberID: "phone-globex",
		AccessToken:   "token-globex",
		Currency:      "EUR",
	}

	TestClientNoCredentials = model.Client{
		ID:       3,
		Name:     "Unconfigured Co",
		Currency: "USD",
	}
)

func NewTestWallet(clientID int64, balance string) *model.Wallet {
	return &model.Wallet{
		ClientID: clientID,
		Balance:  decimal.RequireFromString(balance),
		Currency: "USD",
	}
}

func NewTestTemplate(clientID int64, name string, variables string) *model.MessageTemplate {
	return &model.MessageTemplate{
		ClientID:      clientID,
		Name:          name,
		LanguageCode:  "en_US",
		VariablesJSON: variables,
		Status:        model.TemplateApproved,
	}
}

func NewTestCampaign(clientID, templateID int64, audience string) *model.Campaign {
	return &model.Campaign{
		ClientID:     clientID,
		TemplateID:   templateID,
		Name:         "Spring Promo",
		AudienceJSON: audience,
		Status:       model.CampaignPendingSend,
	}
}

func NewStatusEvent(externalID string, status model.MessageStatus) model.StatusEvent {
	return model.StatusEvent{
		ExternalID: externalID,
		Status:     status,
		Timestamp:  time.Now().UTC(),
	}
}

func NewInboundEvent(externalID, from, phoneNumberID, body string) model.InboundMessageEvent {
	return model.InboundMessageEvent{
		ExternalID:  externalID,
		From:        from,
		ToPhoneID:   phoneNumberID,
		Timestamp:   time.Now().UTC(),
		MessageType: "text",
		Content:     body,
	}
}

var (
	ValidRecipients = []string{
		"+14155550100",
		"+447700900123",
		"+4915223456789",
		"+33612345678",
	}

	AudienceSmall = `["+14155550100","+447700900123"]`

	PersonalizationSmall = `{"+14155550100":{"name":"Ana"},"+447700900123":{"name":"Ben"}}`
)
