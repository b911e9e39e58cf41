// Package rawmail converts RFC 822 messages into the provider-neutral MIME tree
package rawmail

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/inbox-triage/internal/core"
)

// maxDepth bounds multipart nesting
const maxDepth = 16

// Parse reads a raw message. Transfer encodings are decoded; charsets are
// left to the extractor, so unknown charsets are not an error here.
func Parse(r io.Reader) (*core.RawMessage, error) {
	e, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	payload, err := convertEntity(e, 0)
	if err != nil {
		return nil, err
	}

	h := mail.Header{Header: e.Header}
	msg := &core.RawMessage{
		Headers: payload.Headers,
		Payload: payload,
	}
	if id, err := h.MessageID(); err == nil {
		msg.ID = id
		msg.ThreadID = id
	}
	if refs, err := h.MsgIDList("References"); err == nil && len(refs) > 0 {
		msg.ThreadID = refs[0]
	}
	if date, err := h.Date(); err == nil {
		msg.ReceivedAt = date
	}
	return msg, nil
}

func convertEntity(e *message.Entity, depth int) (*core.MessagePart, error) {
	mediaType, params, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}

	part := &core.MessagePart{
		MimeType: mediaType,
		Headers:  headers(e.Header),
		Filename: filename(e.Header, params),
	}

	if mr := e.MultipartReader(); mr != nil {
		if depth >= maxDepth {
			return part, nil
		}
		for {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if child == nil || (err != nil && !message.IsUnknownCharset(err)) {
				// keep what was readable
				break
			}
			converted, err := convertEntity(child, depth+1)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, converted)
		}
		return part, nil
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s body: %w", mediaType, err)
	}
	part.Body = &core.MessageBody{
		Data: base64.RawURLEncoding.EncodeToString(body),
		Size: int64(len(body)),
	}
	return part, nil
}

func headers(h message.Header) []core.Header {
	var out []core.Header
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out = append(out, core.Header{Name: fields.Key(), Value: value})
	}
	return out
}

func filename(h message.Header, ctParams map[string]string) string {
	if disp, params, err := h.ContentDisposition(); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
		if strings.EqualFold(disp, "attachment") {
			if name := ctParams["name"]; name != "" {
				return name
			}
			return "attachment"
		}
	}
	return ctParams["name"]
}
