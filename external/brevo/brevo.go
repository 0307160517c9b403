package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"MarksAPI/internal/mail"
)

const DefaultBaseURL = "https://api.brevo.com/v3"

type Options struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Timeout     time.Duration
	BaseURL     string
}

type BrevoMailer struct {
	apiKey  string
	sender  contact
	client  *http.Client
	baseURL string
}

func NewBrevoMailer(opts Options) (*BrevoMailer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("BREVO_API_KEY not set")
	}
	if opts.SenderEmail == "" {
		return nil, errors.New("BREVO_SENDER_EMAIL not set")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	return &BrevoMailer{
		apiKey: opts.APIKey,
		sender: contact{Name: opts.SenderName, Email: opts.SenderEmail},
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL: opts.BaseURL,
	}, nil
}

type contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type sendRequest struct {
	Sender      contact   `json:"sender"`
	To          []contact `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

func (m *BrevoMailer) Send(ctx context.Context, msg mail.Message) error {
	body := sendRequest{
		Sender:      m.sender,
		To:          []contact{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.baseURL+"/smtp/email",
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}

	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("brevo: send email: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	return nil
}
