package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrMissingCredentials = errors.New("client has no access token or phone number id")
	ErrEmptyResponse      = errors.New("graph api returned no message id")
)

// APIError is an error the Graph API itself reported. Anything else that
// goes wrong during a send (connect failure, timeout, bad JSON) is a plain
// error and is treated as an internal failure by callers.
type APIError struct {
	Message    string
	Type       string
	Code       int
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error (http %d, code %d): %s", e.HTTPStatus, e.Code, e.Message)
}

// Credentials identify the tenant's WhatsApp Business number.
type Credentials struct {
	AccessToken   string
	PhoneNumberID string
}

func (c Credentials) valid() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

type TemplateSend struct {
	Recipient  string
	Name       string
	Language   string
	BodyParams []string
}

type TextSend struct {
	Recipient  string
	Body       string
	PreviewURL bool
}

// SendResult carries the provider-assigned message id (the "wamid") that
// later webhook status events reference.
type SendResult struct {
	ExternalID string
}

type Config struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	MaxConns   int
}

// Client talks to the WhatsApp Cloud (Graph) API. One client serves all
// tenants; credentials are passed per call.
type Client struct {
	config *Config
	client *fasthttp.Client
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConns,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
	}

	logger.Info("whatsapp client initialized", "base_url", config.BaseURL, "api_version", config.APIVersion, "timeout", config.Timeout)

	return &Client{config: config, client: httpClient}, nil
}

type graphTemplatePayload struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Template         graphTemplate `json:"template"`
}

type graphTemplate struct {
	Name       string           `json:"name"`
	Language   graphLanguage    `json:"language"`
	Components []graphComponent `json:"components,omitempty"`
}

type graphLanguage struct {
	Code string `json:"code"`
}

type graphComponent struct {
	Type       string           `json:"type"`
	Parameters []graphParameter `json:"parameters"`
}

type graphParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type graphTextPayload struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             graphText `json:"text"`
}

type graphText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type graphResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendTemplate sends an approved template message. Body parameters are
// positional, matching the template's {{1}}, {{2}}, ... placeholders.
func (c *Client) SendTemplate(ctx context.Context, creds Credentials, req TemplateSend) (*SendResult, error) {
	if !creds.valid() {
		return nil, ErrMissingCredentials
	}

	payload := graphTemplatePayload{
		MessagingProduct: "whatsapp",
		To:               req.Recipient,
		Type:             "template",
		Template: graphTemplate{
			Name:     req.Name,
			Language: graphLanguage{Code: req.Language},
		},
	}
	if len(req.BodyParams) > 0 {
		params := make([]graphParameter, 0, len(req.BodyParams))
		for _, p := range req.BodyParams {
			params = append(params, graphParameter{Type: "text", Text: p})
		}
		payload.Template.Components = []graphComponent{{Type: "body", Parameters: params}}
	}

	return c.send(ctx, creds, payload)
}

// SendText sends a free-form text message. Only valid inside the 24-hour
// customer service window; outside it the API rejects the send.
func (c *Client) SendText(ctx context.Context, creds Credentials, req TextSend) (*SendResult, error) {
	if !creds.valid() {
		return nil, ErrMissingCredentials
	}

	payload := graphTextPayload{
		MessagingProduct: "whatsapp",
		To:               req.Recipient,
		Type:             "text",
		Text:             graphText{PreviewURL: req.PreviewURL, Body: req.Body},
	}

	return c.send(ctx, creds, payload)
}

func (c *Client) send(ctx context.Context, creds Credentials, payload any) (*SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.config.BaseURL, c.config.APIVersion, creds.PhoneNumberID)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	var parsed graphResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		if statusCode >= 400 {
			return nil, &APIError{Message: string(resp.Body()), HTTPStatus: statusCode}
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if parsed.Error != nil {
		return nil, &APIError{
			Message:    parsed.Error.Message,
			Type:       parsed.Error.Type,
			Code:       parsed.Error.Code,
			HTTPStatus: statusCode,
		}
	}
	if statusCode >= 400 {
		return nil, &APIError{Message: string(resp.Body()), HTTPStatus: statusCode}
	}

	if len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		return nil, ErrEmptyResponse
	}

	logger.Debug("message accepted by graph api", "external_id", parsed.Messages[0].ID, "http_status", statusCode)

	return &SendResult{ExternalID: parsed.Messages[0].ID}, nil
}
