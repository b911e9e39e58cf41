package rawmail

import (
	"strings"
	"testing"
	"time"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = "From: Jane Doe <jane@example.com>\r\n" +
	"To: support@shop.example\r\n" +
	"Subject: =?utf-8?q?Refund_for_order_=E2=84=96123?=\r\n" +
	"Date: Sat, 01 Jun 2024 09:30:00 +0000\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"<p>I was charged tw=\r\nice</p>\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"I was charged twice\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf; name=\"receipt.pdf\"\r\n" +
	"Content-Disposition: attachment; filename=\"receipt.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQK\r\n" +
	"--outer--\r\n"

func TestParseMultipart(t *testing.T) {
	msg, err := Parse(strings.NewReader(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "abc123@example.com", msg.ID)
	assert.Equal(t, "Refund for order №123", msg.Header("subject"))
	assert.Equal(t, "Jane Doe <jane@example.com>", msg.Header("From"))
	assert.True(t, msg.ReceivedAt.Equal(time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)))

	require.NotNil(t, msg.Payload)
	assert.Equal(t, "multipart/mixed", msg.Payload.MimeType)
	require.Len(t, msg.Payload.Parts, 2)
	assert.Equal(t, "receipt.pdf", msg.Payload.Parts[1].Filename)

	content := core.Extract(msg)
	assert.Equal(t, "I was charged twice", content.Text)
	assert.Equal(t, "<p>I was charged twice</p>", content.HTML)
}

func TestParseSinglePartDefaultsToPlainText(t *testing.T) {
	raw := "Subject: Help\r\nReferences: <root@example.com> <reply@example.com>\r\nMessage-ID: <leaf@example.com>\r\n\r\nMy account is locked."

	msg, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "leaf@example.com", msg.ID)
	assert.Equal(t, "root@example.com", msg.ThreadID)
	assert.Equal(t, "text/plain", msg.Payload.MimeType)
	assert.Equal(t, "My account is locked.", core.Extract(msg).Text)
}

func TestParseKeepsUnknownCharsetBytes(t *testing.T) {
	raw := "Subject: Caf\r\nContent-Type: text/plain; charset=iso-8859-1\r\n\r\ncaf\xe9"

	msg, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "café", core.Extract(msg).Text)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("this is not\x00 a header block"))
	assert.Error(t, err)
}
