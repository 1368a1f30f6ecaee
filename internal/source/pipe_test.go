package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sszokoly/sipcounter/internal/core"
)

func writeRecords(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestPipeSourceReadsRecords(t *testing.T) {
	path := writeRecords(t,
		`2.2.2.1|33456|1.1.1.1|5060|INVITE sip:bob@example.com SIP/2.0\nCSeq: 1 INVITE\n`+"\n"+
			`1.1.1.1|5060|2.2.2.1|33456|SIP/2.0 200 OK\nCSeq: 1 INVITE\n`+"\n")

	s := NewPipeSource(PipeOptions{Path: path})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	msg, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "2.2.2.1", msg.SrcIP)
	assert.Equal(t, 33456, msg.SrcPort)
	assert.Equal(t, "1.1.1.1", msg.DstIP)
	assert.Equal(t, 5060, msg.DstPort)
	assert.Equal(t, "INVITE sip:bob@example.com SIP/2.0\r\nCSeq: 1 INVITE\r\n", msg.Payload)

	msg, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "SIP/2.0 200 OK\r\nCSeq: 1 INVITE\r\n", msg.Payload)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipeSourceEmptyTransportFields(t *testing.T) {
	path := writeRecords(t, `||||OPTIONS sip:proxy SIP/2.0\n`+"\n")

	s := NewPipeSource(PipeOptions{Path: path})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	msg, err := s.Next()
	require.NoError(t, err)
	assert.False(t, msg.HasEndpoints())
	assert.Zero(t, msg.SrcPort)
}

func TestPipeSourceSkipsBlankLines(t *testing.T) {
	path := writeRecords(t, "\n\n"+`||||PING sip:x SIP/2.0\n`+"\n\n")

	s := NewPipeSource(PipeOptions{Path: path})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipeSourceMalformedRecord(t *testing.T) {
	path := writeRecords(t, "only|three|fields\n")

	s := NewPipeSource(PipeOptions{Path: path})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	_, err := s.Next()
	assert.ErrorIs(t, err, core.ErrMalformedRecord)
}

func TestPipeSourceCustomSeparator(t *testing.T) {
	path := writeRecords(t, "2.2.2.1;33456;1.1.1.1;5060;BYE sip:x SIP/2.0\n")

	s := NewPipeSource(PipeOptions{Path: path, Separator: ";"})
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	msg, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "BYE sip:x SIP/2.0", msg.Payload)
}

func TestPipeSourceNotStarted(t *testing.T) {
	s := NewPipeSource(PipeOptions{})
	_, err := s.Next()
	assert.ErrorIs(t, err, core.ErrSourceNotStarted)
}

func TestPipeSourceMissingFile(t *testing.T) {
	s := NewPipeSource(PipeOptions{Path: "/nonexistent/input"})
	assert.Error(t, s.Start(context.Background()))
}
