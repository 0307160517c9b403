// Package abstractapi screens addresses an admin wants to authorize against
// the Abstract email reputation API.
package abstractapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://emailreputation.abstractapi.com/v1/"

// ErrRejected wraps every reputation verdict that refuses an address.
var ErrRejected = errors.New("email rejected")

// Reputation is the provider's ordered quality grade.
type Reputation int

const (
	ReputationUnknown Reputation = iota
	ReputationLow
	ReputationMedium
	ReputationHigh
)

// ParseReputation reads LOW, MEDIUM or HIGH in any case.
func ParseReputation(s string) (Reputation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return ReputationLow, nil
	case "MEDIUM":
		return ReputationMedium, nil
	case "HIGH":
		return ReputationHigh, nil
	}
	return ReputationUnknown, fmt.Errorf("unknown email reputation %q", s)
}

// Policy decides which verdicts an authorized address may carry. Disposable
// inboxes are always refused: a student must be able to receive codes for
// the whole term.
type Policy struct {
	MinReputation Reputation
	// AllowRole admits shared addresses such as ta@ or course-staff@.
	AllowRole bool
}

type Options struct {
	APIKey  string
	Timeout time.Duration
	BaseURL string
	Policy  Policy
}

type ReputationValidator struct {
	apiKey  string
	client  *http.Client
	baseURL string
	policy  Policy
}

func NewReputationValidator(opts Options) (*ReputationValidator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("ABSTRACT_EMAIL_API_KEY not set")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Policy.MinReputation == ReputationUnknown {
		opts.Policy.MinReputation = ReputationMedium
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("abstractapi base url: %w", err)
	}
	return &ReputationValidator{
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: opts.Timeout},
		baseURL: base.String(),
		policy:  opts.Policy,
	}, nil
}

type reputationResponse struct {
	Email           string `json:"email"`
	EmailReputation string `json:"email_reputation"`
	IsDisposable    bool   `json:"is_disposable_email"`
	IsRoleEmail     bool   `json:"is_role_email"`
}

// Validate returns an error wrapping ErrRejected when the policy refuses the
// address, and a plain error when the provider could not be asked.
func (v *ReputationValidator) Validate(ctx context.Context, email string) error {
	out, err := v.lookup(ctx, email)
	if err != nil {
		return err
	}
	return v.policy.check(out)
}

func (v *ReputationValidator) lookup(ctx context.Context, email string) (*reputationResponse, error) {
	u, _ := url.Parse(v.baseURL)
	q := u.Query()
	q.Set("api_key", v.apiKey)
	q.Set("email", email)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("email reputation lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("email reputation service error: %s", resp.Status)
	}
	var out reputationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode email reputation: %w", err)
	}
	return &out, nil
}

func (p Policy) check(out *reputationResponse) error {
	if out.IsDisposable {
		return fmt.Errorf("%w: disposable address", ErrRejected)
	}
	if out.IsRoleEmail && !p.AllowRole {
		return fmt.Errorf("%w: shared role address", ErrRejected)
	}
	grade, err := ParseReputation(out.EmailReputation)
	if err != nil {
		// An ungraded address is only refused when a grade is demanded.
		if p.MinReputation > ReputationLow {
			return fmt.Errorf("%w: no reputation grade", ErrRejected)
		}
		return nil
	}
	if grade < p.MinReputation {
		return fmt.Errorf("%w: reputation %s", ErrRejected, strings.ToUpper(out.EmailReputation))
	}
	return nil
}
