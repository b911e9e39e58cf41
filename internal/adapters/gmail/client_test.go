package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, format string, handler http.HandlerFunc) core.MailProvider {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := NewFactory(Config{Format: format, Endpoint: srv.URL + "/"}, zaptest.NewLogger(t))
	client, err := f.ForToken(context.Background(), "token-abc")
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListThreads(t *testing.T) {
	client := newTestClient(t, FormatFull, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "/gmail/v1/users/me/threads", r.URL.Path)
		assert.Equal(t, "in:inbox", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "p1", r.URL.Query().Get("pageToken"))
		writeJSON(w, http.StatusOK, map[string]any{
			"threads":       []map[string]string{{"id": "t1"}, {"id": "t2"}},
			"nextPageToken": "p2",
		})
	})

	page, err := client.ListThreads(context.Background(), "in:inbox", "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, page.ThreadIDs)
	assert.Equal(t, "p2", page.NextPageToken)
}

func TestGetThreadReturnsLatestMessage(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte("Where is my refund?"))
	client := newTestClient(t, FormatFull, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/threads/t1", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "t1",
			"messages": []map[string]any{
				{"id": "m1", "threadId": "t1", "internalDate": "1717232400000", "snippet": "old"},
				{
					"id": "m2", "threadId": "t1", "internalDate": "1717236000000", "snippet": "Where is",
					"labelIds": []string{"INBOX", "UNREAD"},
					"payload": map[string]any{
						"mimeType": "text/plain",
						"headers": []map[string]string{
							{"name": "Subject", "value": "Refund"},
							{"name": "From", "value": "a@example.com"},
						},
						"body": map[string]any{"data": body, "size": 19},
					},
				},
			},
		})
	})

	msg, err := client.GetThread(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "m2", msg.ID)
	assert.Equal(t, "Refund", msg.Header("subject"))
	assert.Equal(t, []string{"INBOX", "UNREAD"}, msg.LabelIDs)
	assert.True(t, msg.ReceivedAt.Equal(time.UnixMilli(1717236000000)))
	assert.Equal(t, "Where is my refund?", core.Extract(msg).Text)
}

func TestGetThreadRawFormat(t *testing.T) {
	raw := "Subject: Chargeback\r\nFrom: disputes@stripe.com\r\nContent-Type: text/plain\r\n\r\nA dispute was opened."
	client := newTestClient(t, FormatRaw, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gmail/v1/users/me/threads/t9":
			assert.Equal(t, "minimal", r.URL.Query().Get("format"))
			writeJSON(w, http.StatusOK, map[string]any{
				"id":       "t9",
				"messages": []map[string]any{{"id": "m9", "threadId": "t9", "internalDate": "1717236000000"}},
			})
		case "/gmail/v1/users/me/messages/m9":
			assert.Equal(t, "raw", r.URL.Query().Get("format"))
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "m9", "threadId": "t9", "internalDate": "1717236000000", "snippet": "A dispute",
				"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	msg, err := client.GetThread(context.Background(), "t9")
	require.NoError(t, err)
	assert.Equal(t, "m9", msg.ID)
	assert.Equal(t, "t9", msg.ThreadID)
	assert.Equal(t, "Chargeback", msg.Header("Subject"))
	assert.Equal(t, "A dispute was opened.", core.Extract(msg).Text)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reason string
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, "authError", nil, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, core.ErrAuthentication)
		}},
		{"too many requests", http.StatusTooManyRequests, "rateLimitExceeded", map[string]string{"Retry-After": "12"}, func(t *testing.T, err error) {
			var rl *core.RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, 12*time.Second, rl.RetryAfter)
		}},
		{"forbidden rate limit", http.StatusForbidden, "userRateLimitExceeded", nil, func(t *testing.T, err error) {
			var rl *core.RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, defaultRetryAfter, rl.RetryAfter)
		}},
		{"forbidden scope", http.StatusForbidden, "insufficientPermissions", nil, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, core.ErrAuthentication)
		}},
		{"forbidden auth error", http.StatusForbidden, "authError", nil, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, core.ErrAuthentication)
		}},
		{"forbidden", http.StatusForbidden, "forbidden", nil, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, core.ErrAuthentication)
		}},
		{"daily limit", http.StatusForbidden, "dailyLimitExceeded", nil, func(t *testing.T, err error) {
			var pe *core.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, http.StatusForbidden, pe.StatusCode)
			assert.NotErrorIs(t, err, core.ErrAuthentication)
		}},
		{"quota exceeded", http.StatusForbidden, "quotaExceeded", nil, func(t *testing.T, err error) {
			var pe *core.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, http.StatusForbidden, pe.StatusCode)
			assert.NotErrorIs(t, err, core.ErrAuthentication)
		}},
		{"forbidden unknown reason", http.StatusForbidden, "domainPolicy", nil, func(t *testing.T, err error) {
			var pe *core.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.NotErrorIs(t, err, core.ErrAuthentication)
		}},
		{"server error", http.StatusServiceUnavailable, "backendError", nil, func(t *testing.T, err error) {
			var pe *core.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
			assert.False(t, errors.Is(err, core.ErrAuthentication))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, FormatFull, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				writeJSON(w, tt.status, map[string]any{
					"error": map[string]any{
						"code":    tt.status,
						"message": tt.name,
						"errors":  []map[string]string{{"reason": tt.reason, "message": tt.name}},
					},
				})
			})

			_, err := client.ListThreads(context.Background(), "", "", 10)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, defaultRetryAfter, retryAfter(h))

	h.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, retryAfter(h))

	h.Set("Retry-After", time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
	assert.Equal(t, time.Duration(0), retryAfter(h))
}
