package core

import (
	"strings"
)

// DefaultSupportKeywords are the phrases that mark an email as a likely support request
var DefaultSupportKeywords = []string{
	"help", "support", "issue", "problem", "error", "bug",
	"not working", "broken", "can't", "cannot", "unable",
	"login", "log in", "password", "account", "access",
	"refund", "charge", "payment", "billing", "invoice", "subscription", "cancel",
	"dispute", "chargeback", "order", "delivery", "shipping",
	"question", "how do i", "how to", "urgent", "complaint",
}

// IsLikelySupport reports whether any keyword occurs in the subject or body, case-insensitively
func IsLikelySupport(subject, body string, keywords []string) bool {
	subject = strings.ToLower(subject)
	body = strings.ToLower(body)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(subject, kw) || strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// SenderAllowList decides whether a sender always passes the prefilter
type SenderAllowList interface {
	IsWhitelisted(from string) bool
}

// Prefilter is the cheap keyword gate run before any LLM call
type Prefilter struct {
	keywords  []string
	allowList SenderAllowList
}

// NewPrefilter creates a prefilter. An empty keyword list uses DefaultSupportKeywords.
func NewPrefilter(keywords []string, allowList SenderAllowList) *Prefilter {
	if len(keywords) == 0 {
		keywords = DefaultSupportKeywords
	}
	return &Prefilter{keywords: keywords, allowList: allowList}
}

// Allow reports whether an email should be classified
func (p *Prefilter) Allow(from, subject, body string) bool {
	if p.allowList != nil && p.allowList.IsWhitelisted(from) {
		return true
	}
	return IsLikelySupport(subject, body, p.keywords)
}
