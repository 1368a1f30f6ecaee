// Package sip implements SIP message classification.
// It recovers the message type from the first line and consults a small set
// of headers (CSeq, To, Via, Call-ID) for dialog and transport hints.
package sip

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sszokoly/sipcounter/internal/core"
)

const (
	defaultDialogTTL = 1 * time.Hour
	defaultCleanup   = 10 * time.Minute
)

// Kind distinguishes requests from responses.
type Kind uint8

const (
	KindRequest Kind = iota + 1
	KindResponse
)

// Classification is the result of parsing one SIP message.
type Classification struct {
	Kind Kind

	// Type is the counting label: the method name, "ReINVITE" for a
	// mid-dialog INVITE, or the status code for responses.
	Type string

	// Method is the CSeq method, or "UNKNOWN" for responses without a
	// parsable CSeq header. Counting keys off Type alone; Method is for
	// consumers that correlate a response with its transaction.
	Method string

	// StatusCode and Class are set for responses only. Class is the
	// leading digit of the code ("2" for 200).
	StatusCode int
	Class      string

	// CSeq is the CSeq sequence number, -1 when absent.
	CSeq int

	CallID string

	// Transport is the transport token of the top Via header (TCP, UDP,
	// TLS), empty when no Via header was found.
	Transport string

	// ToTag reports whether the To header carried a tag parameter.
	ToTag bool
}

// Parser classifies SIP messages. The zero value is not usable, construct
// with NewParser or NewDialogParser.
type Parser struct {
	dialogs *cache.Cache // Call-ID → last seen CSeq number
}

// NewParser creates a stateless parser. Mid-dialog INVITEs are detected by
// the To-tag heuristic only.
func NewParser() *Parser {
	return &Parser{}
}

// NewDialogParser creates a parser that additionally tracks CSeq numbers
// per Call-ID, so an in-dialog INVITE is classified as a re-INVITE even when
// the To tag is missing. Entries expire after an hour of silence.
func NewDialogParser() *Parser {
	return &Parser{
		dialogs: cache.New(defaultDialogTTL, defaultCleanup),
	}
}

// Classify parses a raw SIP message and returns its classification.
// The first line must be a request line or a status line; anything else
// fails with core.ErrMalformedFirstLine. Header parsing is lenient: absent
// or unparsable headers simply leave the corresponding hint empty.
func (p *Parser) Classify(text string) (Classification, error) {
	text = strings.TrimLeft(text, " \t\r\n")
	if text == "" {
		return Classification{}, fmt.Errorf("empty message: %w", core.ErrMalformedFirstLine)
	}

	lines := strings.Split(text, "\n")
	cls, err := classifyFirstLine(strings.TrimRight(lines[0], "\r"))
	if err != nil {
		return Classification{}, err
	}
	cls.CSeq = -1

	for _, raw := range lines[1:] {
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			// End of headers; the body may contain header-shaped lines.
			break
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])

		switch name {
		case "cseq":
			seq, method, ok := parseCSeq(value)
			if ok {
				cls.CSeq = seq
				cls.Method = method
			}
		case "via", "v":
			if cls.Transport == "" {
				cls.Transport = parseViaTransport(value)
			}
		case "to", "t":
			if strings.Contains(value, "tag=") {
				cls.ToTag = true
			}
		case "call-id", "i":
			cls.CallID = value
		}
	}

	if cls.Method == "" {
		if cls.Kind == KindResponse {
			cls.Method = "UNKNOWN"
		} else {
			cls.Method = cls.Type
		}
	}

	if cls.Kind == KindRequest && cls.Type == "INVITE" && p.isReinvite(cls) {
		cls.Type = "ReINVITE"
	}
	if p.dialogs != nil && cls.CallID != "" && cls.CSeq >= 0 && cls.Kind == KindRequest {
		p.remember(cls.CallID, cls.CSeq)
	}

	return cls, nil
}

// isReinvite applies the To-tag heuristic first and falls back to the
// per-dialog CSeq history when dialog tracking is enabled.
func (p *Parser) isReinvite(cls Classification) bool {
	if cls.ToTag {
		return true
	}
	if p.dialogs == nil || cls.CallID == "" || cls.CSeq < 0 {
		return false
	}
	if last, found := p.dialogs.Get(cls.CallID); found {
		return cls.CSeq > last.(int)
	}
	return false
}

func (p *Parser) remember(callID string, seq int) {
	if last, found := p.dialogs.Get(callID); found && last.(int) >= seq {
		return
	}
	p.dialogs.Set(callID, seq, cache.DefaultExpiration)
}

// classifyFirstLine recognizes "SIP/2.0 CODE REASON" status lines and
// "METHOD uri ..." request lines.
func classifyFirstLine(line string) (Classification, error) {
	if strings.HasPrefix(line, "SIP") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return Classification{}, fmt.Errorf("status line %q: %w", line, core.ErrMalformedFirstLine)
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil || code < 100 || code > 699 {
			return Classification{}, fmt.Errorf("status code %q: %w", fields[1], core.ErrMalformedFirstLine)
		}
		return Classification{
			Kind:       KindResponse,
			Type:       fields[1],
			StatusCode: code,
			Class:      fields[1][:1],
		}, nil
	}

	method, _, _ := strings.Cut(line, " ")
	if !isMethodToken(method) {
		return Classification{}, fmt.Errorf("request line %q: %w", line, core.ErrMalformedFirstLine)
	}
	return Classification{
		Kind: KindRequest,
		Type: method,
	}, nil
}

// isMethodToken reports whether s looks like a SIP method name.
func isMethodToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

// parseCSeq parses "CSeq: 314159 INVITE" values.
func parseCSeq(value string) (seq int, method string, ok bool) {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return 0, "", false
	}
	seq, err := strconv.Atoi(fields[0])
	if err != nil || seq < 0 {
		return 0, "", false
	}
	return seq, fields[1], true
}

// parseViaTransport extracts the transport token from a Via header value,
// e.g. "SIP/2.0/TLS host.example.com:5061;branch=z9hG4bK" → "TLS".
func parseViaTransport(value string) string {
	const prefix = "SIP/2.0/"
	if !strings.HasPrefix(value, prefix) {
		return ""
	}
	rest := value[len(prefix):]
	end := strings.IndexAny(rest, " ;")
	if end == -1 {
		end = len(rest)
	}
	if end == 0 {
		return ""
	}
	return strings.ToUpper(rest[:end])
}
