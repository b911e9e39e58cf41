package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthentication is returned when the provider rejects the access token
	ErrAuthentication = errors.New("authentication failed")

	// ErrCacheMiss is returned by cache repositories when no entry exists
	ErrCacheMiss = errors.New("cache entry not found")

	// ErrParse is the parent of all classifier response parsing failures
	ErrParse = errors.New("unparseable classifier response")

	// ErrEmptyResponse is returned when the LLM answered with no content
	ErrEmptyResponse = fmt.Errorf("%w: empty response", ErrParse)

	// ErrInvalidResponseFormat is returned when the LLM answer is not the expected JSON shape
	ErrInvalidResponseFormat = fmt.Errorf("%w: invalid response format", ErrParse)
)

// RateLimitError is returned when the provider or the local gate refuses a call
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// ProviderError wraps an unexpected upstream failure
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StorageError wraps a cache backend failure
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
