package gmail

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/inbox-triage/internal/core"
	"google.golang.org/api/googleapi"
)

const defaultRetryAfter = 30 * time.Second

// mapError translates Gmail API errors into the core error taxonomy
func mapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &core.ProviderError{Provider: "gmail", Err: err}
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", core.ErrAuthentication, gerr.Message)
	case gerr.Code == http.StatusTooManyRequests, gerr.Code == http.StatusForbidden && hasReason(gerr, isRateLimitReason):
		return &core.RateLimitError{RetryAfter: retryAfter(gerr.Header), Err: gerr}
	case gerr.Code == http.StatusForbidden && hasReason(gerr, isAuthReason):
		return fmt.Errorf("%w: %s", core.ErrAuthentication, gerr.Message)
	default:
		// quota, daily limit and unknown 403 reasons stay provider failures
		return &core.ProviderError{Provider: "gmail", StatusCode: gerr.Code, Err: gerr}
	}
}

// authReasons are the 403 reasons fixed only by re-authenticating
var authReasons = map[string]bool{
	"autherror":               true,
	"insufficientpermissions": true,
	"forbidden":               true,
}

func isAuthReason(reason string) bool {
	return authReasons[reason]
}

func isRateLimitReason(reason string) bool {
	return strings.Contains(reason, "ratelimit")
}

func hasReason(gerr *googleapi.Error, match func(string) bool) bool {
	for _, item := range gerr.Errors {
		if match(strings.ToLower(item.Reason)) {
			return true
		}
	}
	return false
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}
