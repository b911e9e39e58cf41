package core

import (
	"strings"
	"time"
)

// Header is a single name/value header pair
type Header struct {
	Name  string
	Value string
}

// MessageBody holds the encoded body payload of a MIME part
type MessageBody struct {
	// Data is base64url encoded, as returned by the provider
	Data string
	Size int64
}

// MessagePart is a node in the MIME tree of a message
type MessagePart struct {
	MimeType string
	Filename string
	Headers  []Header
	Body     *MessageBody
	Parts    []*MessagePart
}

// Header returns the first header value matching name, case-insensitively
func (p *MessagePart) Header(name string) string {
	if p == nil {
		return ""
	}
	return lookupHeader(p.Headers, name)
}

// RawMessage is a provider-native message
type RawMessage struct {
	ID         string
	ThreadID   string
	LabelIDs   []string
	Snippet    string
	ReceivedAt time.Time
	Headers    []Header
	Payload    *MessagePart
}

// Header returns the first message header matching name, case-insensitively.
// Payload headers are consulted when the message has none of its own.
func (m *RawMessage) Header(name string) string {
	if v := lookupHeader(m.Headers, name); v != "" {
		return v
	}
	return m.Payload.Header(name)
}

func lookupHeader(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ExtractedContent is the decoded body content of a message
type ExtractedContent struct {
	Text        string `json:"text"`
	HTML        string `json:"html"`
	ContentType string `json:"contentType"`
}

// IsEmpty reports whether neither text nor html could be decoded
func (c ExtractedContent) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == "" && strings.TrimSpace(c.HTML) == ""
}

// Sentiment of the sender as judged by the classifier
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// MatchedFAQ references a configured FAQ question that an email asks
type MatchedFAQ struct {
	Question string  `json:"question"`
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
}

// ClassificationResult is a single verdict produced by the classifier
type ClassificationResult struct {
	IsSupport          bool        `json:"isSupport"`
	Confidence         float64     `json:"confidence"`
	Reason             string      `json:"reason"`
	Sentiment          Sentiment   `json:"sentiment"`
	KeyPoints          []string    `json:"keyPoints"`
	SuggestedQuestions []string    `json:"suggestedQuestions"`
	MatchedFAQ         *MatchedFAQ `json:"matchedFAQ"`
	Category           string      `json:"category"`
	Model              string      `json:"model,omitempty"`
	AnalyzedAt         time.Time   `json:"analyzedAt"`
}

// CacheEntry is a persisted classification for one thread
type CacheEntry struct {
	Key       string
	Result    ClassificationResult
	Timestamp time.Time
	TTL       time.Duration
}

// IsFresh reports whether entry is still valid at now
func IsFresh(entry *CacheEntry, now time.Time) bool {
	if entry == nil {
		return false
	}
	return now.Sub(entry.Timestamp) < entry.TTL
}

// Source tells where an email's analysis came from
type Source string

const (
	SourceCache Source = "cache"
	SourceFresh Source = "fresh"
)

// EnrichedEmail is the unit returned to callers of the ingestion pipeline
type EnrichedEmail struct {
	ID            string                `json:"id"`
	ThreadID      string                `json:"threadId"`
	Subject       string                `json:"subject"`
	From          string                `json:"from"`
	To            string                `json:"to"`
	Date          time.Time             `json:"date"`
	Snippet       string                `json:"snippet"`
	Labels        []string              `json:"labels,omitempty"`
	Content       ExtractedContent      `json:"content"`
	Analysis      *ClassificationResult `json:"analysis"`
	AnalysisError string                `json:"analysisError,omitempty"`
	Source        Source                `json:"source"`
}

// EmailInput is what the classifier needs from an email
type EmailInput struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// ThreadPage is a single page of thread ids from the mail provider
type ThreadPage struct {
	ThreadIDs     []string
	NextPageToken string
}

// CompletionRequest is a single prompt sent to an LLM provider
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	JSON        bool
}

// Usage reports token consumption of a completion
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is the raw text answer of an LLM provider
type Completion struct {
	Content string
	Model   string
	Usage   Usage
}
