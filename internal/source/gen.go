package source

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/sszokoly/sipcounter/internal/core"
)

// GenOptions configures the synthetic traffic generator.
type GenOptions struct {
	// Count of messages to emit; 0 means unbounded.
	Count int `mapstructure:"count"`
	// Seed for the random stream; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`
}

// GenSource emits random but well-formed SIP request and response messages
// across a small fixed population of servers and clients. Useful for demos
// and soak testing the counting pipeline without a capture.
type GenSource struct {
	opts    GenOptions
	rng     *rand.Rand
	emitted int
	callSeq int
}

type genEndpoint struct {
	ip    string
	proto string
	port  int
}

var (
	genServers = []genEndpoint{
		{"1.1.1.1", "TLS", 5061},
		{"1.1.1.1", "TCP", 5060},
		{"1.1.1.2", "TCP", 5060},
		{"1.1.1.2", "UDP", 5060},
	}
	genClients = []genEndpoint{
		{ip: "2.2.2.1", port: 33456},
		{ip: "2.2.2.1", port: 33457},
		{ip: "2.2.2.2", port: 33458},
		{ip: "2.2.2.3", port: 33459},
	}
	genRequests  = []string{"INVITE", "BYE", "CANCEL", "OPTIONS", "REGISTER"}
	genResponses = []string{"100", "180", "200", "487", "500", "503"}
)

func NewGenSource(opts GenOptions) *GenSource {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &GenSource{
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (s *GenSource) Start(ctx context.Context) error { return nil }

func (s *GenSource) Next() (core.Message, error) {
	if s.opts.Count > 0 && s.emitted >= s.opts.Count {
		return core.Message{}, io.EOF
	}
	s.emitted++
	s.callSeq++

	server := genServers[s.rng.Intn(len(genServers))]
	client := genClients[s.rng.Intn(len(genClients))]
	method := genRequests[s.rng.Intn(len(genRequests))]

	var payload string
	if s.rng.Intn(2) == 0 {
		toTag := ""
		if method == "INVITE" && s.rng.Intn(2) == 0 {
			toTag = ";tag=as5f3e2b1c"
		}
		payload = fmt.Sprintf(
			"%s sip:user@example.com SIP/2.0\r\n"+
				"Via: SIP/2.0/%s %s:%d;branch=z9hG4bK%06d\r\n"+
				"To: <sip:user@example.com>%s\r\n"+
				"Call-ID: gen-%06d@%s\r\n"+
				"CSeq: 1 %s\r\n",
			method, server.proto, client.ip, client.port, s.callSeq,
			toTag, s.callSeq, client.ip, method)
	} else {
		code := genResponses[s.rng.Intn(len(genResponses))]
		payload = fmt.Sprintf(
			"SIP/2.0 %s Generated\r\n"+
				"Via: SIP/2.0/%s %s:%d;branch=z9hG4bK%06d\r\n"+
				"To: <sip:user@example.com>;tag=as5f3e2b1c\r\n"+
				"Call-ID: gen-%06d@%s\r\n"+
				"CSeq: 1 %s\r\n",
			code, server.proto, client.ip, client.port, s.callSeq,
			s.callSeq, client.ip, method)
	}

	msg := core.Message{Payload: payload, Proto: server.proto}
	if s.rng.Intn(2) == 0 {
		msg.SrcIP, msg.SrcPort = client.ip, client.port
		msg.DstIP, msg.DstPort = server.ip, server.port
	} else {
		msg.SrcIP, msg.SrcPort = server.ip, server.port
		msg.DstIP, msg.DstPort = client.ip, client.port
	}
	return msg, nil
}

func (s *GenSource) Close() error { return nil }
