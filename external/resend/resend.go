package resend

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

const DefaultBaseURL = "https://api.resend.com"

type Options struct {
	APIKey  string
	From    string
	Timeout time.Duration
	BaseURL string
}

type ResendMailer struct {
	apiKey  string
	from    string
	client  *http.Client
	baseURL string
}

func NewResendMailer(opts Options) (*ResendMailer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("RESEND_API_KEY not set")
	}
	if opts.From == "" {
		return nil, errors.New("RESEND_SENDER not set")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	return &ResendMailer{
		apiKey: opts.APIKey,
		from:   opts.From,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL: opts.BaseURL,
	}, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *ResendMailer) Send(ctx context.Context, msg mail.Message) error {
	body := sendRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.baseURL+"/emails",
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("resend: send email: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	return nil
}
