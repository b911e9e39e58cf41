package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ratelimit"
	"go.uber.org/zap"
)

// maxAnalyzeBody bounds the POST /api/analyze payload
const maxAnalyzeBody = 1 << 20

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

type analyzeRequest struct {
	Emails []core.EmailInput `json:"emails"`
}

type analyzeResponse struct {
	Results []*core.ClassificationResult `json:"results"`
}

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: missing bearer token", core.ErrAuthentication))
		return
	}

	req, err := ingestRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.gate != nil {
		if wait, ok := s.gate.Allow(ratelimit.SessionKey(token)); !ok {
			s.writeError(w, r, &core.RateLimitError{RetryAfter: wait})
			return
		}
	}

	provider, err := s.providers.ForToken(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.service.Ingest(r.Context(), provider, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid json: %v", errBadRequest, err))
		return
	}
	if len(body.Emails) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: no emails given", errBadRequest))
		return
	}

	results, err := s.service.Analyze(r.Context(), body.Emails)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Results: results})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")
	if threadID == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing thread id", errBadRequest))
		return
	}
	if err := s.service.Invalidate(r.Context(), threadID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// param reads a query parameter, falling back to its X- header form
func param(r *http.Request, query, header string) string {
	if v := r.URL.Query().Get(query); v != "" {
		return v
	}
	return r.Header.Get(header)
}

func ingestRequest(r *http.Request) (core.IngestRequest, error) {
	req := core.IngestRequest{
		PageToken: param(r, "pageToken", "X-Page-Token"),
	}

	if v := param(r, "pageSize", "X-Page-Size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return req, fmt.Errorf("%w: pageSize must be a positive integer", errBadRequest)
		}
		req.PageSize = n
	}

	if v := param(r, "forceRefresh", "X-Force-Refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("%w: forceRefresh must be a boolean", errBadRequest)
		}
		req.ForceRefresh = b
	}
	return req, nil
}

// writeError maps an error onto its status code and JSON body
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classifyError(err)
	if status == http.StatusTooManyRequests && body.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status", status),
		zap.String("request_id", r.Header.Get(requestIDHeader)),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", fields...)
	} else {
		s.logger.Warn("Request rejected", fields...)
	}
	writeJSON(w, status, body)
}

func classifyError(err error) (int, errorBody) {
	var (
		rateLimited *core.RateLimitError
		provider    *core.ProviderError
	)
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errorBody{Error: "bad request", Details: err.Error()}
	case errors.Is(err, core.ErrAuthentication):
		return http.StatusUnauthorized, errorBody{Error: "authentication failed", Details: "re-authenticate and retry"}
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests, errorBody{
			Error:      "rate limited",
			RetryAfter: int(math.Ceil(rateLimited.RetryAfter.Seconds())),
		}
	case errors.As(err, &provider):
		return http.StatusBadGateway, errorBody{Error: "upstream provider error", Details: provider.Error()}
	case errors.Is(err, core.ErrParse):
		return http.StatusBadGateway, errorBody{Error: "unusable classifier response", Details: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
