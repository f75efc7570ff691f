package wizard

import (
	"context"
	"errors"
	"strings"

	domain "github.com/ganot/stepwise/internal/domain/wizard"
)

// NoticeKind classifies a user-visible message.
type NoticeKind string

const (
	NoticeNone       NoticeKind = ""
	NoticeValidation NoticeKind = "validation"
	NoticeQuota      NoticeKind = "quota"
	NoticeTransient  NoticeKind = "transient"
	NoticeRejection  NoticeKind = "rejection"
	NoticeBusy       NoticeKind = "busy"
)

// Notice is what the UI shows for a failed operation.
type Notice struct {
	Kind      NoticeKind
	Message   string
	Fields    []domain.FieldError
	Retryable bool
}

const genericRejection = "The server rejected the request. Check your entries and try again."

// Describe turns any controller error into a Notice. It never panics and
// always yields a message for a non-nil error.
func Describe(err error) Notice {
	if err == nil {
		return Notice{}
	}

	var (
		verr      *domain.ValidationError
		transient *TransientError
		rejection *RejectionError
	)
	switch {
	case errors.As(err, &verr):
		return Notice{Kind: NoticeValidation, Message: strings.Join(verr.Messages(), "; "), Fields: verr.Errors}
	case errors.Is(err, ErrQuotaExhausted), errors.Is(err, ErrQuotaExceeded):
		return Notice{Kind: NoticeQuota, Message: "Suggestion limit reached for this period. Enter the values manually or upgrade your plan."}
	case errors.Is(err, ErrOperationPending):
		return Notice{Kind: NoticeBusy, Message: "Still working on the previous request."}
	case errors.Is(err, ErrNotOnLastStep):
		return Notice{Kind: NoticeRejection, Message: "Finish every step before submitting."}
	case errors.Is(err, ErrCompleted):
		return Notice{Kind: NoticeRejection, Message: "This wizard has already been submitted."}
	case errors.Is(err, domain.ErrIncomplete):
		return Notice{Kind: NoticeValidation, Message: "Some steps are missing or invalid. Go back and complete them."}
	case errors.As(err, &transient):
		return Notice{Kind: NoticeTransient, Message: "Failed to " + transient.Op + ", try again.", Retryable: true}
	case errors.As(err, &rejection):
		msg := rejection.Message
		if msg == "" {
			msg = genericRejection
		}
		return Notice{Kind: NoticeRejection, Message: msg}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Notice{Kind: NoticeTransient, Message: "The request timed out, try again.", Retryable: true}
	case errors.Is(err, domain.ErrUnknownField), errors.Is(err, domain.ErrMalformedDraft):
		return Notice{Kind: NoticeValidation, Message: err.Error()}
	default:
		return Notice{Kind: NoticeTransient, Message: "Something went wrong, try again.", Retryable: true}
	}
}
