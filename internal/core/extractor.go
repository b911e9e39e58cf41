package core

import (
	"encoding/base64"
	"mime"
	"sort"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// Extract decodes the body content of a message into text and html.
// It never fails; undecodable parts contribute nothing.
func Extract(msg *RawMessage) ExtractedContent {
	if msg == nil || msg.Payload == nil {
		return ExtractedContent{}
	}

	text, html := extractPart(msg.Payload)
	return ExtractedContent{
		Text:        text,
		HTML:        html,
		ContentType: msg.Payload.MimeType,
	}
}

func extractPart(part *MessagePart) (string, string) {
	if part == nil {
		return "", ""
	}

	if len(part.Parts) > 0 {
		children := make([]*MessagePart, len(part.Parts))
		copy(children, part.Parts)
		sort.SliceStable(children, func(i, j int) bool {
			return mimePriority(children[i]) < mimePriority(children[j])
		})

		var texts []string
		var html strings.Builder
		for _, child := range children {
			t, h := extractPart(child)
			if t != "" {
				texts = append(texts, t)
			}
			html.WriteString(h)
		}
		return strings.Join(texts, "\n"), html.String()
	}

	// Attachments are never part of the readable content
	if part.Filename != "" || part.Body == nil || part.Body.Data == "" {
		return "", ""
	}

	mimeType := strings.ToLower(part.MimeType)
	if !strings.HasPrefix(mimeType, "text/") {
		return "", ""
	}

	data, ok := decodeBody(part.Body.Data)
	if !ok {
		return "", ""
	}
	decoded := toUTF8(data, partCharset(part))

	if mimeType == "text/html" {
		return "", decoded
	}
	return decoded, ""
}

func mimePriority(part *MessagePart) int {
	mimeType := strings.ToLower(part.MimeType)
	switch {
	case mimeType == "text/plain":
		return 0
	case mimeType == "text/html":
		return 1
	case strings.HasPrefix(mimeType, "text/"):
		return 2
	default:
		return 3
	}
}

// decodeBody accepts base64url as sent by Gmail and falls back to standard base64
func decodeBody(data string) ([]byte, bool) {
	data = strings.TrimSpace(data)
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	for _, enc := range encodings {
		if b, err := enc.DecodeString(data); err == nil {
			return b, true
		}
	}
	return nil, false
}

func partCharset(part *MessagePart) string {
	ct := part.Header("Content-Type")
	if ct == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func toUTF8(data []byte, charset string) string {
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(data)
	}
	converted, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(converted)
}
