package model

import "time"

type Client struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	WabaID        string    `json:"waba_id"`
	PhoneNumberID string    `json:"phone_number_id"`
	AccessToken   string    `json:"-"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Client) TableName() string { return "clients" }

// HasTransportCredentials reports whether the client can send through the
// WhatsApp Graph API at all. Sends are rejected up front when this is false.
func (c *Client) HasTransportCredentials() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}
