package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sszokoly/sipcounter/internal/core"
)

// PipeOptions configures the pipe source.
type PipeOptions struct {
	// Path of the input file; empty reads stdin. This is typically the
	// read end of a tshark/sngrep style field export.
	Path string `mapstructure:"path"`
	// Separator between the record fields, default "|".
	Separator string `mapstructure:"separator"`
}

// PipeSource reads one message per line in the form
//
//	srcip|srcport|dstip|dstport|payload
//
// where the payload carries its line breaks as literal "\n" escapes. The
// first four fields may be empty when transport metadata is unknown.
type PipeSource struct {
	opts    PipeOptions
	file    *os.File
	scanner *bufio.Scanner
}

func NewPipeSource(opts PipeOptions) *PipeSource {
	if opts.Separator == "" {
		opts.Separator = "|"
	}
	return &PipeSource{opts: opts}
}

func (s *PipeSource) Start(ctx context.Context) error {
	if s.opts.Path == "" {
		s.file = os.Stdin
	} else {
		f, err := os.Open(s.opts.Path)
		if err != nil {
			return fmt.Errorf("failed to open input %s: %w", s.opts.Path, err)
		}
		s.file = f
	}
	s.scanner = bufio.NewScanner(s.file)
	s.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return nil
}

// Next returns the next record. Blank lines are skipped; a line with fewer
// than five fields fails with core.ErrMalformedRecord so the caller can log
// and move on.
func (s *PipeSource) Next() (core.Message, error) {
	if s.scanner == nil {
		return core.Message{}, core.ErrSourceNotStarted
	}
	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		msg, err := s.parseRecord(line)
		if err != nil {
			return core.Message{}, err
		}
		return msg, nil
	}
	if err := s.scanner.Err(); err != nil {
		return core.Message{}, err
	}
	return core.Message{}, io.EOF
}

func (s *PipeSource) parseRecord(line string) (core.Message, error) {
	fields := strings.SplitN(line, s.opts.Separator, 5)
	if len(fields) < 5 {
		return core.Message{}, fmt.Errorf("%w: %q", core.ErrMalformedRecord, line)
	}
	msg := core.Message{
		SrcIP:   fields[0],
		SrcPort: parsePort(fields[1]),
		DstIP:   fields[2],
		DstPort: parsePort(fields[3]),
		Payload: strings.ReplaceAll(fields[4], `\n`, "\r\n"),
	}
	return msg, nil
}

func (s *PipeSource) Close() error {
	if s.file != nil && s.file != os.Stdin {
		return s.file.Close()
	}
	return nil
}

func parsePort(s string) int {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 0 {
		return 0
	}
	return p
}
