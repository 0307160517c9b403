package brevo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarksAPI/internal/mail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PostsSMTPEmail(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/smtp/email", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<x@brevo>"}`))
	}))
	defer srv.Close()

	m, err := NewBrevoMailer(Options{
		APIKey:      "key-123",
		SenderEmail: "noreply@example.com",
		SenderName:  "Marks",
		BaseURL:     srv.URL,
	})
	require.NoError(t, err)

	err = m.Send(context.Background(), mail.Message{To: "a@b.com", Subject: "OTP", HTML: "<h1>123456</h1>"})
	require.NoError(t, err)

	assert.Equal(t, "noreply@example.com", got.Sender.Email)
	assert.Equal(t, "Marks", got.Sender.Name)
	require.Len(t, got.To, 1)
	assert.Equal(t, "a@b.com", got.To[0].Email)
	assert.Equal(t, "<h1>123456</h1>", got.HTMLContent)
}

func TestSend_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Key not found"}`))
	}))
	defer srv.Close()

	m, err := NewBrevoMailer(Options{APIKey: "bad", SenderEmail: "noreply@example.com", BaseURL: srv.URL})
	require.NoError(t, err)

	err = m.Send(context.Background(), mail.Message{To: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Key not found")
}

func TestSend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	m, err := NewBrevoMailer(Options{APIKey: "k", SenderEmail: "s@example.com", BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	require.Error(t, m.Send(context.Background(), mail.Message{To: "a@b.com"}))
}

func TestNewBrevoMailer_RequiresCredentials(t *testing.T) {
	_, err := NewBrevoMailer(Options{SenderEmail: "s@example.com"})
	require.Error(t, err)
	_, err = NewBrevoMailer(Options{APIKey: "k"})
	require.Error(t, err)
}
