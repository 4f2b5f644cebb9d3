package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/soumil-kumar17/MailMaven/api/middleware"
	"github.com/soumil-kumar17/MailMaven/api/responses"
	"github.com/soumil-kumar17/MailMaven/api/validators"
	"github.com/soumil-kumar17/MailMaven/internal/flash"
	"github.com/soumil-kumar17/MailMaven/internal/newsletters"
	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
	"github.com/soumil-kumar17/MailMaven/pkg/logger"
)

// FlashReader drains the pending flash messages of a user.
type FlashReader interface {
	Drain(ctx context.Context, userID uuid.UUID) ([]flash.Message, error)
}

// Audience counts the subscribers an issue published now would reach.
type Audience interface {
	CountConfirmed(ctx context.Context) (int64, error)
}

type publishFormResponse struct {
	IdempotencyKey       string          `json:"idempotency_key"`
	ConfirmedSubscribers *int64          `json:"confirmed_subscribers,omitempty"`
	Messages             []flash.Message `json:"messages"`
}

type publishRequest struct {
	Title          string `json:"title" validate:"required"`
	HTMLContent    string `json:"html_content" validate:"required"`
	TextContent    string `json:"text_content" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// PublishForm hands out a fresh idempotency key for the next submission along
// with any flash messages left by the previous one. The audience size is
// omitted when it cannot be read.
func PublishForm(flashes FlashReader, audience Audience, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.CallerID(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		messages := []flash.Message{}
		if flashes != nil {
			drained, err := flashes.Drain(r.Context(), userID)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "flash.drain_failed")
				}
			} else if len(drained) > 0 {
				messages = drained
			}
		}

		form := publishFormResponse{
			IdempotencyKey: uuid.NewString(),
			Messages:       messages,
		}
		if audience != nil {
			count, err := audience.CountConfirmed(r.Context())
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "subscribers.count_failed")
				}
			} else {
				form.ConfirmedSubscribers = &count
			}
		}

		responses.WriteSuccess(w, form)
	}
}

// PublishNewsletter publishes an issue and writes the stored response, so a
// resubmitted form gets the exact same reply as the first one.
func PublishNewsletter(svc newsletters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "newsletters service unavailable"))
			return
		}

		userID := middleware.CallerID(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var req publishRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Publish(r.Context(), newsletters.PublishInput{
			UserID:         userID,
			Title:          req.Title,
			HTMLContent:    req.HTMLContent,
			TextContent:    req.TextContent,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSaved(w, resp)
	}
}
