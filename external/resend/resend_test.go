package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"MarksAPI/internal/mail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := NewResendMailer(Options{APIKey: "re_123", From: "Marks <onboarding@resend.dev>", BaseURL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), mail.Message{To: "a@b.com", Subject: "OTP", HTML: "<p>1</p>"}))
	assert.Equal(t, []string{"a@b.com"}, got.To)
	assert.Equal(t, "Marks <onboarding@resend.dev>", got.From)
}

func TestSend_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "validation_error", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	m, err := NewResendMailer(Options{APIKey: "re_123", From: "x@y.z", BaseURL: srv.URL})
	require.NoError(t, err)

	err = m.Send(context.Background(), mail.Message{To: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation_error")
}
