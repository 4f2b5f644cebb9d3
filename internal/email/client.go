package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/soumil-kumar17/MailMaven/internal/subscribers"
	"github.com/soumil-kumar17/MailMaven/pkg/config"
	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
)

const (
	sendPath    = "/email"
	tokenHeader = "X-Postmark-Server-Token"
)

var (
	// ErrTransport marks a failed delivery attempt to the email provider.
	ErrTransport = errors.New("email transport failed")
	// ErrRejected marks a 4xx answer about one message. It wraps
	// ErrTransport and does not count against the breaker.
	ErrRejected = errors.New("email rejected by provider")
	// ErrUnavailable is returned without contacting the provider while
	// the breaker is open or its half-open slots are taken.
	ErrUnavailable = errors.New("email provider unavailable")
)

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, recipient subscribers.Email, subject, htmlBody, textBody string) error
}

type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Client posts emails to a Postmark compatible HTTP API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	sender     subscribers.Email
	token      string
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewClient builds the provider client from configuration.
func NewClient(cfg config.EmailConfig) (*Client, error) {
	sender, err := subscribers.ParseEmail(cfg.Sender)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid email sender")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email base url is required")
	}
	if cfg.Timeout <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email timeout must be positive")
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + sendPath,
		sender:     sender,
		token:      cfg.AuthorizationToken,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "email-provider",
			MaxRequests: cfg.BreakerHalfOpenProbe,
			Timeout:     cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: breakerSuccess,
		}),
		limiter: limiter,
	}, nil
}

// breakerSuccess keeps per-message rejections and cancellations from
// tripping the breaker. Only network errors and 5xx/429 answers count.
func breakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Send posts one email. Provider and network failures wrap ErrTransport.
// An open breaker yields ErrUnavailable and a cancelled context is
// returned as is.
func (c *Client) Send(ctx context.Context, recipient subscribers.Email, subject, htmlBody, textBody string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
		}
	}

	payload, err := json.Marshal(sendEmailRequest{
		From:     c.sender.String(),
		To:       recipient.String(),
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, payload)
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w: provider responded %d", ErrTransport, ErrRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: provider responded %d", ErrTransport, resp.StatusCode)
	}
}

// BreakerState reports the provider circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}
