package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		client, err := NewClient(nil)
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "config is required")
	})

	t.Run("empty base url returns error", func(t *testing.T) {
		client, err := NewClient(&Config{APIVersion: "v19.0"})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "base url is required")
	})

	t.Run("valid config creates client with default timeout", func(t *testing.T) {
		config := &Config{
			BaseURL:    "https://graph.facebook.com",
			APIVersion: "v19.0",
			MaxConns:   100,
		}
		client, err := NewClient(config)
		require.NoError(t, err)
		require.NotNil(t, client)
		assert.Equal(t, 10*time.Second, config.Timeout)
	})
}

func TestCredentials_Valid(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"complete", Credentials{AccessToken: "tok", PhoneNumberID: "123"}, true},
		{"missing token", Credentials{PhoneNumberID: "123"}, false},
		{"missing phone number id", Credentials{AccessToken: "tok"}, false},
		{"empty", Credentials{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.creds.valid())
		})
	}
}

func TestSend_MissingCredentialsFailsBeforeNetwork(t *testing.T) {
	client, err := NewClient(&Config{
		BaseURL:    "https://graph.facebook.com",
		APIVersion: "v19.0",
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.SendTemplate(ctx, Credentials{}, TemplateSend{
		Recipient: "+14155550100",
		Name:      "order_update",
		Language:  "en_US",
	})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = client.SendText(ctx, Credentials{AccessToken: "tok"}, TextSend{
		Recipient: "+14155550100",
		Body:      "hello",
	})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestGraphTemplatePayload_Shape(t *testing.T) {
	payload := graphTemplatePayload{
		MessagingProduct: "whatsapp",
		To:               "+14155550100",
		Type:             "template",
		Template: graphTemplate{
			Name:     "order_update",
			Language: graphLanguage{Code: "en_US"},
			Components: []graphComponent{{
				Type: "body",
				Parameters: []graphParameter{
					{Type: "text", Text: "Jane"},
					{Type: "text", Text: "12"},
				},
			}},
		},
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	expected := `{
	  "messaging_product": "whatsapp",
	  "to": "+14155550100",
	  "type": "template",
	  "template": {
	    "name": "order_update",
	    "language": {"code": "en_US"},
	    "components": [{
	      "type": "body",
	      "parameters": [
	        {"type": "text", "text": "Jane"},
	        {"type": "text", "text": "12"}
	      ]
	    }]
	  }
	}`
	assert.JSONEq(t, expected, string(data))
}

func TestGraphTemplatePayload_NoParamsOmitsComponents(t *testing.T) {
	payload := graphTemplatePayload{
		MessagingProduct: "whatsapp",
		To:               "+14155550100",
		Type:             "template",
		Template: graphTemplate{
			Name:     "welcome",
			Language: graphLanguage{Code: "en_US"},
		},
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "components")
}

func TestGraphResponse_Parsing(t *testing.T) {
	t.Run("success envelope", func(t *testing.T) {
		body := `{
		  "messaging_product": "whatsapp",
		  "contacts": [{"input": "+14155550100", "wa_id": "14155550100"}],
		  "messages": [{"id": "wamid.HBgLMTQxNTU1NTAxMDAVAgARGBI5QTNDQTVCM0Q0Q0Q2RTY3RTcA"}]
		}`
		var parsed graphResponse
		require.NoError(t, json.Unmarshal([]byte(body), &parsed))
		require.Len(t, parsed.Messages, 1)
		assert.Nil(t, parsed.Error)
		assert.Equal(t, "wamid.HBgLMTQxNTU1NTAxMDAVAgARGBI5QTNDQTVCM0Q0Q0Q2RTY3RTcA", parsed.Messages[0].ID)
	})

	t.Run("error envelope", func(t *testing.T) {
		body := `{
		  "error": {
		    "message": "(#131047) Re-engagement message",
		    "type": "OAuthException",
		    "code": 131047,
		    "fbtrace_id": "Az8or2yhqkZfEZ-_4Qn_Bam"
		  }
		}`
		var parsed graphResponse
		require.NoError(t, json.Unmarshal([]byte(body), &parsed))
		require.NotNil(t, parsed.Error)
		assert.Equal(t, 131047, parsed.Error.Code)
		assert.Equal(t, "OAuthException", parsed.Error.Type)
	})
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{
		Message:    "(#190) Access token has expired",
		Type:       "OAuthException",
		Code:       190,
		HTTPStatus: 401,
	}
	assert.Contains(t, err.Error(), "190")
	assert.Contains(t, err.Error(), "Access token has expired")
}
