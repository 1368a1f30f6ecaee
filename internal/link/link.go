// Package link derives canonical, direction-independent link keys from the
// transport endpoints of a SIP message. A link is the unordered pair of
// (IP, port) endpoints plus the transport protocol; the key always places
// the server side first so that both directions of the same physical link
// map to the same key.
package link

import (
	"strconv"
	"strings"

	"github.com/sszokoly/sipcounter/internal/core"
)

// Placeholder endpoints used when a message arrives without any transport
// metadata. All such messages share a single pseudo link.
const (
	LocalHost  = "local"
	RemoteHost = "remote"
)

// Key identifies a communication link. Fields are ordered server first;
// empty fields mean "not tracked at this grouping depth". Key is comparable
// and used directly as a map key.
type Key struct {
	ServerIP   string
	ClientIP   string
	Proto      string
	ServerPort string
	ClientPort string
}

// String renders the key the way reports print it:
// serverIP-proto-serverPort-clientPort-clientIP, skipping absent fields.
func (k Key) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{k.ServerIP, k.Proto, k.ServerPort, k.ClientPort, k.ClientIP} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// Truncate keeps the first depth fields of the canonical tuple
// (serverIP, clientIP, proto, serverPort, clientPort) and clears the rest.
// Depth 5 is the identity; depth 0 collapses every link into one group.
func (k Key) Truncate(depth int) Key {
	if depth < 5 {
		k.ClientPort = ""
	}
	if depth < 4 {
		k.ServerPort = ""
	}
	if depth < 3 {
		k.Proto = ""
	}
	if depth < 2 {
		k.ClientIP = ""
	}
	if depth < 1 {
		k.ServerIP = ""
	}
	return k
}

// Less orders keys by the canonical tuple, giving reports and top-N
// selection a deterministic tie-break.
func (k Key) Less(o Key) bool {
	if k.ServerIP != o.ServerIP {
		return k.ServerIP < o.ServerIP
	}
	if k.ClientIP != o.ClientIP {
		return k.ClientIP < o.ClientIP
	}
	if k.Proto != o.Proto {
		return k.Proto < o.Proto
	}
	if k.ServerPort != o.ServerPort {
		return k.ServerPort < o.ServerPort
	}
	return k.ClientPort < o.ClientPort
}

// Builder resolves link keys and directions. Known servers and known ports
// are role hints: they take precedence over the numeric fallbacks when the
// message itself does not carry a direction.
type Builder struct {
	knownServers map[string]bool
	knownPorts   map[string]bool
	defaultProto string
}

// NewBuilder creates a Builder. The well-known SIP ports 5060 and 5061 are
// always treated as server ports in addition to knownPorts. defaultProto is
// used when neither the caller nor the Via header names a transport; pass
// the empty string to make protocol inference mandatory.
func NewBuilder(knownServers []string, knownPorts []int, defaultProto string) *Builder {
	b := &Builder{
		knownServers: make(map[string]bool, len(knownServers)),
		knownPorts:   map[string]bool{"5060": true, "5061": true},
		defaultProto: strings.ToUpper(defaultProto),
	}
	for _, ip := range knownServers {
		b.knownServers[ip] = true
	}
	for _, p := range knownPorts {
		b.knownPorts[strconv.Itoa(p)] = true
	}
	return b
}

// Resolve computes the canonical key and the per-message direction.
// transportHint is the Via transport extracted by the parser, consulted only
// when the message carries no explicit protocol.
//
// Direction is resolved in a fixed order: the explicit direction on the
// message, the known-servers set, the known-ports set, then a numeric
// port comparison (the ephemeral, higher port is assumed to be the client)
// and finally a lexicographic IP comparison. A stage only decides when
// exactly one side matches it, so the result is symmetric over src/dst
// swaps even when both endpoints are known servers or known ports.
//
// Without any endpoint metadata every message lands on the local↔remote
// pseudo link with direction core.DirBoth.
func (b *Builder) Resolve(msg core.Message, transportHint string) (Key, core.Direction, error) {
	proto := msg.Proto
	if proto == "" {
		proto = transportHint
	}
	if proto == "" {
		proto = b.defaultProto
	}
	if proto == "" {
		return Key{}, "", core.ErrUnknownProtocol
	}
	proto = strings.ToUpper(proto)

	if !msg.HasEndpoints() {
		dir := core.DirBoth
		if msg.Direction != "" {
			dir = parseDirection(msg.Direction)
		}
		return Key{ServerIP: LocalHost, ClientIP: RemoteHost, Proto: proto}, dir, nil
	}

	srcPort := portString(msg.SrcPort)
	dstPort := portString(msg.DstPort)

	dir, err := b.direction(msg, srcPort, dstPort)
	if err != nil {
		return Key{}, "", err
	}

	key := Key{Proto: proto}
	if dir == core.DirIn {
		key.ServerIP, key.ClientIP = msg.DstIP, msg.SrcIP
	} else {
		key.ServerIP, key.ClientIP = msg.SrcIP, msg.DstIP
	}
	key.ServerPort, key.ClientPort = b.servicePorts(msg, dir, srcPort, dstPort)

	return key, dir, nil
}

// direction resolves which way the message travels relative to the server.
// A role-hint stage decides only when exactly one side matches it; when both
// sides match (a trunk between two servers, or 5060↔5060) the stage cannot
// tell the sides apart and falls through, keeping the result symmetric over
// src/dst swaps.
func (b *Builder) direction(msg core.Message, srcPort, dstPort string) (core.Direction, error) {
	if msg.Direction != "" {
		return parseDirection(msg.Direction), nil
	}
	if b.knownServers[msg.SrcIP] != b.knownServers[msg.DstIP] {
		if b.knownServers[msg.SrcIP] {
			return core.DirOut, nil
		}
		return core.DirIn, nil
	}
	if b.knownPorts[srcPort] != b.knownPorts[dstPort] {
		if b.knownPorts[srcPort] {
			return core.DirOut, nil
		}
		return core.DirIn, nil
	}
	if srcPort != "" && dstPort != "" {
		switch {
		case msg.SrcPort > msg.DstPort:
			return core.DirIn, nil
		case msg.SrcPort < msg.DstPort:
			return core.DirOut, nil
		case msg.SrcIP > msg.DstIP:
			return core.DirIn, nil
		default:
			return core.DirOut, nil
		}
	}
	return "", core.ErrMissingInferenceData
}

// servicePorts picks the server-side and client-side ports. A known port
// wins only when the other side's port is not known too; otherwise the lower
// of the two is taken as the service port, matching the well-known-port
// convention. When a port is missing, the direction already resolved decides
// which side the remaining port belongs to.
func (b *Builder) servicePorts(msg core.Message, dir core.Direction, srcPort, dstPort string) (service, client string) {
	if b.knownPorts[srcPort] != b.knownPorts[dstPort] {
		if b.knownPorts[srcPort] {
			return srcPort, dstPort
		}
		return dstPort, srcPort
	}
	if srcPort != "" && dstPort != "" {
		if msg.SrcPort > msg.DstPort {
			return dstPort, srcPort
		}
		return srcPort, dstPort
	}
	if dir == core.DirIn {
		return dstPort, srcPort
	}
	return srcPort, dstPort
}

// parseDirection maps the producer-supplied direction onto the internal
// one: "in" (any case) means toward the server, anything else means from it.
func parseDirection(s string) core.Direction {
	if strings.EqualFold(s, "in") {
		return core.DirIn
	}
	return core.DirOut
}

func portString(p int) string {
	if p <= 0 {
		return ""
	}
	return strconv.Itoa(p)
}
