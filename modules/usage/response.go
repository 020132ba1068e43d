package usage

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/opsdesk/platform/pkg/quota"
)

// JSONResponse is the envelope of every response of this module.
type JSONResponse struct {
	Code  string       `json:"code,omitempty"`
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps err to an HTTP response:
//   - quota denial: 402 with the *quota.QuotaExceededError as data
//   - rate-limit denial: 429 with Retry-After and the *quota.RateLimitExceededError as data
//   - caller mistakes: 400
//   - anything else: 500 without internal detail
func WriteError(w http.ResponseWriter, err error) {
	var (
		qe  *quota.QuotaExceededError
		rle *quota.RateLimitExceededError
		he  HTTPError
	)

	switch {
	case errors.As(err, &qe):
		writeJSON(w, ErrPaymentRequired.Code, JSONResponse{
			Code:  ErrPaymentRequired.Key,
			Data:  qe,
			Error: &ErrorDetail{Code: "quota_exceeded", Message: qe.Error()},
		})

	case errors.As(err, &rle):
		retry := int64(math.Ceil(rle.RetryAfter(time.Now()).Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(max(retry, 1), 10))
		writeJSON(w, ErrTooManyRequests.Code, JSONResponse{
			Code:  ErrTooManyRequests.Key,
			Data:  rle,
			Error: &ErrorDetail{Code: "rate_limit_exceeded", Message: rle.Error()},
		})

	case errors.Is(err, quota.ErrInvalidResource),
		errors.Is(err, quota.ErrInvalidIncrement),
		errors.Is(err, quota.ErrInvalidOrganization):
		writeJSON(w, ErrBadRequest.Code, JSONResponse{
			Code:  ErrBadRequest.Key,
			Error: &ErrorDetail{Code: ErrBadRequest.Key, Message: err.Error()},
		})

	case errors.As(err, &he):
		writeJSON(w, he.Code, JSONResponse{
			Code:  he.Key,
			Error: &ErrorDetail{Code: he.Key, Message: http.StatusText(he.Code)},
		})

	default:
		writeJSON(w, ErrInternalServerError.Code, JSONResponse{
			Code:  ErrInternalServerError.Key,
			Error: &ErrorDetail{Code: ErrInternalServerError.Key, Message: http.StatusText(http.StatusInternalServerError)},
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, r *quota.CheckResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(r.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(r.Remaining, 0), 10))
	if r.ResetAt != nil {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.Unix(), 10))
	}
}
