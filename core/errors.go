package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BillingErrorBadInput         = "BILLING_BAD_INPUT"
	BillingErrorSignatureInvalid = "BILLING_SIGNATURE_INVALID"
	BillingErrorPayloadMalformed = "BILLING_PAYLOAD_MALFORMED"
	BillingErrorDataIntegrity    = "BILLING_DATA_INTEGRITY"
	BillingErrorNotFound         = "BILLING_NOT_FOUND"
	BillingErrorConflict         = "BILLING_CONFLICT"
	BillingErrorStaleEvent       = "BILLING_STALE_EVENT"
	BillingErrorInternal         = "BILLING_INTERNAL_ERROR"
)

func billingErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureBillingErrorEnvelope(richErr)
	}

	switch {
	case goerrors.Is(err, ErrSchoolNotFound),
		goerrors.Is(err, ErrMembershipNotFound):
		// A referenced school or membership that cannot be resolved is a data
		// integrity problem, not a routine 404.
		return wrapBillingError(err, goerrors.CategoryNotFound, BillingErrorDataIntegrity)
	case goerrors.Is(err, ErrCampaignNotFound),
		goerrors.Is(err, ErrSubscriptionNotFound):
		return wrapBillingError(err, goerrors.CategoryNotFound, BillingErrorNotFound)
	case goerrors.Is(err, ErrSubscriptionExists),
		goerrors.Is(err, ErrSubscriptionCanceled):
		return wrapBillingError(err, goerrors.CategoryConflict, BillingErrorConflict)
	case goerrors.Is(err, ErrStaleEvent):
		return wrapBillingError(err, goerrors.CategoryConflict, BillingErrorStaleEvent)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"), strings.Contains(msg, "timestamp outside tolerance"):
		return wrapBillingError(err, goerrors.CategoryAuthz, BillingErrorSignatureInvalid)
	case strings.Contains(msg, "decode"), strings.Contains(msg, "malformed"), strings.Contains(msg, "unexpected object"):
		return wrapBillingError(err, goerrors.CategoryValidation, BillingErrorPayloadMalformed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return wrapBillingError(err, goerrors.CategoryBadInput, BillingErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureBillingErrorEnvelope(mapped)
}

func wrapBillingError(err error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBillingErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode),
	)
}

func ensureBillingErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = billingHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBillingTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultBillingTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return BillingErrorBadInput
	case goerrors.CategoryValidation:
		return BillingErrorPayloadMalformed
	case goerrors.CategoryNotFound:
		return BillingErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return BillingErrorSignatureInvalid
	case goerrors.CategoryConflict:
		return BillingErrorConflict
	default:
		return BillingErrorInternal
	}
}

func billingHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
