package sip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sszokoly/sipcounter/internal/core"
)

const inviteMsg = "INVITE sip:bob@example.com SIP/2.0\r\n" +
	"Via: SIP/2.0/TCP 10.0.0.1:5060;branch=z9hG4bK776asdhds\r\n" +
	"To: Bob <sip:bob@example.com>\r\n" +
	"From: Alice <sip:alice@example.com>;tag=1928301774\r\n" +
	"Call-ID: a84b4c76e66710\r\n" +
	"CSeq: 314159 INVITE\r\n"

const okMsg = "SIP/2.0 200 OK\r\n" +
	"Via: SIP/2.0/TLS 10.0.0.1:5061;branch=z9hG4bK776asdhds\r\n" +
	"To: Bob <sip:bob@example.com>;tag=a6c85cf\r\n" +
	"Call-ID: a84b4c76e66710\r\n" +
	"CSeq: 314159 INVITE\r\n"

func TestClassifyRequest(t *testing.T) {
	cls, err := NewParser().Classify(inviteMsg)
	require.NoError(t, err)

	assert.Equal(t, KindRequest, cls.Kind)
	assert.Equal(t, "INVITE", cls.Type)
	assert.Equal(t, "INVITE", cls.Method)
	assert.Equal(t, 314159, cls.CSeq)
	assert.Equal(t, "a84b4c76e66710", cls.CallID)
	assert.Equal(t, "TCP", cls.Transport)
	assert.False(t, cls.ToTag)
}

func TestClassifyResponse(t *testing.T) {
	cls, err := NewParser().Classify(okMsg)
	require.NoError(t, err)

	assert.Equal(t, KindResponse, cls.Kind)
	assert.Equal(t, "200", cls.Type)
	assert.Equal(t, 200, cls.StatusCode)
	assert.Equal(t, "2", cls.Class)
	assert.Equal(t, "INVITE", cls.Method)
	assert.Equal(t, "TLS", cls.Transport)
	assert.True(t, cls.ToTag)
}

func TestClassifyMalformedFirstLine(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "  \r\n  "},
		{"garbage token", "123GARBAGE sip:x SIP/2.0\r\n"},
		{"status code out of range", "SIP/2.0 99 Too Low\r\n"},
		{"status code not numeric", "SIP/2.0 2xx Huh\r\n"},
		{"bare sip version", "SIP/2.0\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Classify(tt.text)
			assert.ErrorIs(t, err, core.ErrMalformedFirstLine)
		})
	}
}

func TestClassifyLenientHeaders(t *testing.T) {
	// No CSeq, no Via: classification still succeeds with empty hints.
	cls, err := NewParser().Classify("OPTIONS sip:proxy SIP/2.0\r\nMax-Forwards: 70\r\n")
	require.NoError(t, err)

	assert.Equal(t, "OPTIONS", cls.Type)
	assert.Equal(t, "OPTIONS", cls.Method)
	assert.Equal(t, -1, cls.CSeq)
	assert.Empty(t, cls.Transport)
}

func TestResponseWithoutCSeq(t *testing.T) {
	cls, err := NewParser().Classify("SIP/2.0 486 Busy Here\r\n")
	require.NoError(t, err)

	assert.Equal(t, "486", cls.Type)
	assert.Equal(t, "UNKNOWN", cls.Method)
}

func TestReinviteByToTag(t *testing.T) {
	reinvite := "INVITE sip:bob@example.com SIP/2.0\r\n" +
		"To: Bob <sip:bob@example.com>;tag=a6c85cf\r\n" +
		"Call-ID: a84b4c76e66710\r\n" +
		"CSeq: 2 INVITE\r\n"

	cls, err := NewParser().Classify(reinvite)
	require.NoError(t, err)
	assert.Equal(t, "ReINVITE", cls.Type)
}

func TestReinviteByDialogTracking(t *testing.T) {
	p := NewDialogParser()

	cls, err := p.Classify(inviteMsg)
	require.NoError(t, err)
	assert.Equal(t, "INVITE", cls.Type)

	// Same Call-ID, higher CSeq, still no To tag.
	followUp := "INVITE sip:bob@example.com SIP/2.0\r\n" +
		"To: Bob <sip:bob@example.com>\r\n" +
		"Call-ID: a84b4c76e66710\r\n" +
		"CSeq: 314160 INVITE\r\n"
	cls, err = p.Classify(followUp)
	require.NoError(t, err)
	assert.Equal(t, "ReINVITE", cls.Type)

	// A stateless parser cannot tell without the tag.
	cls, err = NewParser().Classify(followUp)
	require.NoError(t, err)
	assert.Equal(t, "INVITE", cls.Type)
}

func TestDialogTrackingDifferentCallID(t *testing.T) {
	p := NewDialogParser()

	_, err := p.Classify(inviteMsg)
	require.NoError(t, err)

	fresh := "INVITE sip:carol@example.com SIP/2.0\r\n" +
		"To: Carol <sip:carol@example.com>\r\n" +
		"Call-ID: another-call\r\n" +
		"CSeq: 1 INVITE\r\n"
	cls, err := p.Classify(fresh)
	require.NoError(t, err)
	assert.Equal(t, "INVITE", cls.Type)
}

func TestCompactHeaderForms(t *testing.T) {
	msg := "SIP/2.0 180 Ringing\r\n" +
		"v: SIP/2.0/UDP 10.0.0.2:5060\r\n" +
		"t: <sip:bob@example.com>;tag=xyz\r\n" +
		"i: short-form-id\r\n" +
		"CSeq: 7 INVITE\r\n"
	cls, err := NewParser().Classify(msg)
	require.NoError(t, err)

	assert.Equal(t, "UDP", cls.Transport)
	assert.True(t, cls.ToTag)
	assert.Equal(t, "short-form-id", cls.CallID)
}

func TestBodyLinesNotReadAsHeaders(t *testing.T) {
	// Header-shaped lines after the blank separator belong to the body.
	msg := "INVITE sip:bob@example.com SIP/2.0\r\n" +
		"Call-ID: real-call-id\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"\r\n" +
		"Content-ID: not-a-header\r\n" +
		"i: bogus-call-id\r\n" +
		"To: <sip:bob@example.com>;tag=bodytag\r\n"

	cls, err := NewParser().Classify(msg)
	require.NoError(t, err)

	assert.Equal(t, "real-call-id", cls.CallID)
	assert.False(t, cls.ToTag)
	assert.Equal(t, "INVITE", cls.Type)
}

func TestParseViaTransport(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"SIP/2.0/TLS host.example.com:5061;branch=z9hG4bK", "TLS"},
		{"SIP/2.0/UDP 10.0.0.1:5060", "UDP"},
		{"SIP/2.0/tcp 10.0.0.1", "TCP"},
		{"SIP/2.0/WS edge.example.com", "WS"},
		{"not a via", ""},
		{"SIP/2.0/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseViaTransport(tt.value), "value %q", tt.value)
	}
}

func TestParseCSeq(t *testing.T) {
	seq, method, ok := parseCSeq("314159 INVITE")
	require.True(t, ok)
	assert.Equal(t, 314159, seq)
	assert.Equal(t, "INVITE", method)

	_, _, ok = parseCSeq("INVITE")
	assert.False(t, ok)
	_, _, ok = parseCSeq("notanumber INVITE")
	assert.False(t, ok)
}

func TestClassifyUnwrapsSentinel(t *testing.T) {
	_, err := NewParser().Classify("\r\n\r\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedFirstLine))
}
