// Package mail builds outgoing messages. Provider adapters live under
// external/ and only know how to deliver a Message.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message through some provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const otpSubject = "Your OTP for Marks Management System"

var otpTemplate = template.Must(template.New("otp").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9fafb;">
  <div style="background: #4f46e5; padding: 30px; border-radius: 10px 10px 0 0; text-align: center;">
    <h1 style="color: white; margin: 0; font-size: 28px;">Marks Management System</h1>
  </div>
  <div style="background: white; padding: 40px; border-radius: 0 0 10px 10px;">
    <p style="font-size: 16px; color: #374151;">Hello,</p>
    <p style="font-size: 16px; color: #374151;">Your OTP for verification is:</p>
    <div style="background: #f3f4f6; padding: 30px; border-radius: 10px; text-align: center;">
      <h1 style="color: #4F46E5; font-size: 48px; letter-spacing: 12px; margin: 0;">{{.Code}}</h1>
    </div>
    <p style="font-size: 14px; color: #6b7280;"><strong>This OTP will expire in {{.Minutes}} minutes.</strong></p>
    <p style="font-size: 14px; color: #6b7280;">Please do not share this OTP with anyone.</p>
    <p style="font-size: 12px; color: #9ca3af; text-align: center;">If you didn't request this OTP, please ignore this email.</p>
  </div>
</div>
`))

// OTPMessage renders the verification email for code.
func OTPMessage(to, code string, ttl time.Duration) (Message, error) {
	var buf bytes.Buffer
	data := struct {
		Code    string
		Minutes int
	}{code, int(ttl / time.Minute)}
	if err := otpTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render otp email: %w", err)
	}
	return Message{To: to, Subject: otpSubject, HTML: buf.String()}, nil
}
