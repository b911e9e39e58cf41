package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

const classifierSystemPrompt = "You are a customer support triage system for an online business. Respond only with JSON."

const verdictSchema = `- isSupport: boolean (true if the sender needs help, reports a problem, or disputes a charge)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- reason: string (one sentence explaining the decision)
- sentiment: one of "positive", "negative", "neutral"
- keyPoints: array of short strings summarizing the email
- suggestedQuestions: array of the questions the sender is asking
- matchedFAQ: the FAQ question the email asks, copied exactly, or null
- category: short lowercase label such as "billing", "dispute", "account", "shipping", "technical"`

// TextTruncator shortens text to a size limit without breaking UTF-8
type TextTruncator interface {
	ProcessText(text string, maxSize int) string
}

// ClassifierConfig holds the tuning of the LLM classifier
type ClassifierConfig struct {
	MaxBodySize       int
	Temperature       float32
	FAQMatchThreshold float64
}

// Classifier turns emails into structured verdicts with one LLM call per request
type Classifier struct {
	llm    LLMClient
	text   TextTruncator
	cfg    ClassifierConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewClassifier creates a new classifier
func NewClassifier(llm LLMClient, text TextTruncator, cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	return &Classifier{
		llm:    llm,
		text:   text,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Classify classifies a single email
func (c *Classifier) Classify(ctx context.Context, email EmailInput, faqs []string) (*ClassificationResult, error) {
	var b strings.Builder
	b.WriteString("Analyze the following email and decide whether it is a customer support request.\n")
	b.WriteString("Respond with a JSON object containing:\n")
	b.WriteString(verdictSchema)
	b.WriteString("\n")
	c.writeFAQs(&b, faqs)
	b.WriteString("\nEmail:\n")
	c.writeEmail(&b, email)
	b.WriteString("\nRespond only with the JSON object and nothing else.")

	completion, err := c.complete(ctx, b.String())
	if err != nil {
		return nil, err
	}

	verdict, err := parseSingleVerdict(completion.Content)
	if err != nil {
		c.logger.Warn("Failed to parse classifier response",
			zap.String("model", completion.Model),
			zap.Error(err))
		return nil, err
	}

	result := c.toResult(verdict, faqs, completion.Model)
	return &result, nil
}

// ClassifyBatch classifies several emails in one call. Results are in input order.
func (c *Classifier) ClassifyBatch(ctx context.Context, emails []EmailInput, faqs []string) ([]*ClassificationResult, error) {
	if len(emails) == 0 {
		return []*ClassificationResult{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following %d emails and decide for each whether it is a customer support request.\n", len(emails))
	b.WriteString("Respond with a JSON object {\"results\": [...]} holding one entry per email, in the same order. Each entry contains:\n")
	b.WriteString(verdictSchema)
	b.WriteString("\n")
	c.writeFAQs(&b, faqs)
	for i, email := range emails {
		fmt.Fprintf(&b, "\nEmail %d:\n", i+1)
		c.writeEmail(&b, email)
	}
	b.WriteString("\nRespond only with the JSON object and nothing else.")

	completion, err := c.complete(ctx, b.String())
	if err != nil {
		return nil, err
	}

	verdicts, err := ParseVerdicts(completion.Content)
	if err != nil {
		return nil, err
	}
	if len(verdicts) != len(emails) {
		return nil, fmt.Errorf("%w: got %d verdicts for %d emails", ErrInvalidResponseFormat, len(verdicts), len(emails))
	}

	results := make([]*ClassificationResult, len(verdicts))
	for i, v := range verdicts {
		r := c.toResult(v, faqs, completion.Model)
		results[i] = &r
	}
	return results, nil
}

func (c *Classifier) complete(ctx context.Context, prompt string) (*Completion, error) {
	completion, err := c.llm.Complete(ctx, CompletionRequest{
		System:      classifierSystemPrompt,
		Prompt:      prompt,
		Temperature: c.cfg.Temperature,
		JSON:        true,
	})
	if err != nil {
		var pe *ProviderError
		var rl *RateLimitError
		if !errors.As(err, &pe) && !errors.As(err, &rl) {
			err = &ProviderError{Provider: "llm", Err: err}
		}
		return nil, err
	}

	c.logger.Debug("Classifier completion received",
		zap.String("model", completion.Model),
		zap.Int("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int("completion_tokens", completion.Usage.CompletionTokens))
	return completion, nil
}

func (c *Classifier) writeFAQs(b *strings.Builder, faqs []string) {
	if len(faqs) == 0 {
		return
	}
	b.WriteString("\nKnown FAQ questions:\n")
	for _, q := range faqs {
		fmt.Fprintf(b, "- %s\n", q)
	}
}

func (c *Classifier) writeEmail(b *strings.Builder, email EmailInput) {
	content := email.Content
	if c.text != nil {
		content = c.text.ProcessText(content, c.cfg.MaxBodySize)
	}
	fmt.Fprintf(b, "Subject: %s\nBody:\n%s\n", email.Subject, content)
}

func (c *Classifier) toResult(v Verdict, faqs []string, model string) ClassificationResult {
	result := ClassificationResult{
		Reason:             v.Reason,
		Sentiment:          normalizeSentiment(v.Sentiment),
		KeyPoints:          v.KeyPoints,
		SuggestedQuestions: v.SuggestedQuestions,
		Category:           strings.ToLower(strings.TrimSpace(v.Category)),
		Model:              model,
		AnalyzedAt:         c.now(),
	}
	if v.IsSupport != nil {
		result.IsSupport = *v.IsSupport
	}
	if v.Confidence != nil {
		result.Confidence = min(max(*v.Confidence, 0), 1)
	}
	if result.KeyPoints == nil {
		result.KeyPoints = []string{}
	}
	if result.SuggestedQuestions == nil {
		result.SuggestedQuestions = []string{}
	}
	if result.Category == "" {
		result.Category = "uncategorized"
	}

	candidates := result.SuggestedQuestions
	if q := v.matchedQuestion(); q != "" {
		candidates = []string{q}
	}
	result.MatchedFAQ = MatchFAQ(candidates, faqs, c.cfg.FAQMatchThreshold)
	return result
}

func normalizeSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Verdict is a single classifier verdict as the LLM reported it
type Verdict struct {
	IsSupport          *bool           `json:"isSupport"`
	Confidence         *float64        `json:"confidence"`
	Reason             string          `json:"reason"`
	Sentiment          string          `json:"sentiment"`
	KeyPoints          []string        `json:"keyPoints"`
	SuggestedQuestions []string        `json:"suggestedQuestions"`
	MatchedFAQ         json.RawMessage `json:"matchedFAQ"`
	Category           string          `json:"category"`
}

// matchedQuestion accepts matchedFAQ as a string or as {"question": "..."}
func (v Verdict) matchedQuestion() string {
	if len(v.MatchedFAQ) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.MatchedFAQ, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(v.MatchedFAQ, &obj); err == nil {
		return strings.TrimSpace(obj.Question)
	}
	return ""
}

// ParseVerdicts parses a classifier response holding a list of verdicts.
// The list may be a bare array or wrapped as {"results": [...]} or {"analyses": [...]}.
func ParseVerdicts(raw string) ([]Verdict, error) {
	doc, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	switch doc[0] {
	case '[':
		var verdicts []Verdict
		if err := json.Unmarshal(doc, &verdicts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
		}
		return verdicts, nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(doc, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
		}
		for _, key := range []string{"results", "analyses"} {
			list, ok := wrapper[key]
			if !ok {
				continue
			}
			if strings.TrimSpace(string(list)) == "null" {
				return nil, fmt.Errorf("%w: %s is null", ErrInvalidResponseFormat, key)
			}
			var verdicts []Verdict
			if err := json.Unmarshal(list, &verdicts); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResponseFormat, key, err)
			}
			return verdicts, nil
		}
		return nil, fmt.Errorf("%w: object has no results or analyses array", ErrInvalidResponseFormat)
	}
	return nil, ErrInvalidResponseFormat
}

// parseSingleVerdict accepts the list forms of ParseVerdicts holding exactly one verdict,
// or a bare verdict object
func parseSingleVerdict(raw string) (Verdict, error) {
	verdicts, err := ParseVerdicts(raw)
	if err == nil {
		if len(verdicts) != 1 {
			return Verdict{}, fmt.Errorf("%w: got %d verdicts for 1 email", ErrInvalidResponseFormat, len(verdicts))
		}
		return verdicts[0], nil
	}
	if errors.Is(err, ErrEmptyResponse) {
		return Verdict{}, err
	}

	doc, jerr := extractJSON(raw)
	if jerr != nil || doc[0] != '{' {
		return Verdict{}, err
	}
	var v Verdict
	if uerr := json.Unmarshal(doc, &v); uerr != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, uerr)
	}
	return v, nil
}

// extractJSON strips code fences and surrounding prose, returning the outermost JSON value
func extractJSON(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
	}

	if json.Valid([]byte(text)) && (strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")) {
		return []byte(text), nil
	}

	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON found", ErrInvalidResponseFormat)
	}

	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidResponseFormat)
	}
	return candidate, nil
}

// MatchFAQ resolves candidate questions against the configured FAQs by word overlap.
// It returns the best match reaching threshold, or nil.
func MatchFAQ(candidates, faqs []string, threshold float64) *MatchedFAQ {
	var best *MatchedFAQ
	for _, candidate := range candidates {
		for i, faq := range faqs {
			score := calculateConfidence(candidate, faq)
			if score < threshold {
				continue
			}
			if best == nil || score > best.Score {
				best = &MatchedFAQ{Question: faq, Index: i, Score: score}
			}
		}
	}
	return best
}

// calculateConfidence is the share of the FAQ's words that also appear in the candidate
func calculateConfidence(candidate, faq string) float64 {
	if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(faq)) && strings.TrimSpace(faq) != "" {
		return 1
	}

	faqWords := significantWords(faq)
	if len(faqWords) == 0 {
		return 0
	}
	candidateWords := make(map[string]struct{})
	for _, w := range significantWords(candidate) {
		candidateWords[w] = struct{}{}
	}

	shared := 0
	for _, w := range faqWords {
		if _, ok := candidateWords[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(faqWords))
}

func significantWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	seen := make(map[string]struct{}, len(fields))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	return words
}
