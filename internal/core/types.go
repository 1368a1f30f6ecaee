// Package core defines core types with zero external dependencies.
package core

// Direction tells which way a SIP message travels on a link, relative to
// the endpoint acting as the SIP server for that link.
type Direction string

const (
	// DirIn marks messages received by the server side.
	DirIn Direction = "<-"
	// DirOut marks messages sent by the server side.
	DirOut Direction = "->"
	// DirBoth is used when no transport metadata is available and the two
	// sides of the link cannot be told apart.
	DirBoth Direction = "<>"
)

// Message is the input tuple handed to the counter by a producer, one per
// observed SIP message. Only Payload is mandatory; everything else is
// optional metadata that improves link and direction resolution.
type Message struct {
	// Payload is the raw SIP message text.
	Payload string

	// Direction is "in", "out" or empty. Empty means infer.
	Direction string

	// Transport endpoints. Empty IP / zero port means absent.
	SrcIP   string
	SrcPort int
	DstIP   string
	DstPort int

	// Proto is TCP, UDP or TLS. Empty means infer from the top Via header.
	Proto string
}

// HasEndpoints reports whether any transport metadata was supplied.
func (m Message) HasEndpoints() bool {
	return m.SrcIP != "" || m.DstIP != ""
}
