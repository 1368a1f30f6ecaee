// Package source implements the message producers feeding the counter:
// pcap capture (offline or live), a delimited pipe reader, and a synthetic
// traffic generator. Producers own all I/O and blocking; the counter only
// ever sees complete core.Message tuples.
package source

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/sszokoly/sipcounter/internal/config"
	"github.com/sszokoly/sipcounter/internal/core"
)

// Source produces messages one at a time. Next blocks until a message is
// available and returns io.EOF when the stream ends. Implementations are
// not safe for concurrent Next calls.
type Source interface {
	Start(ctx context.Context) error
	Next() (core.Message, error)
	Close() error
}

// New builds the source selected by the configuration. Producer-specific
// options are decoded from the free-form options map.
func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Type {
	case "pipe":
		var opts PipeOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return NewPipeSource(opts), nil
	case "pcap":
		var opts PcapOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return NewPcapSource(opts), nil
	case "gen":
		var opts GenOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return NewGenSource(opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown source type %q", core.ErrConfigInvalid, cfg.Type)
	}
}

func decodeOptions(in map[string]any, out any) error {
	if in == nil {
		return nil
	}
	if err := mapstructure.Decode(in, out); err != nil {
		return fmt.Errorf("%w: source options: %v", core.ErrConfigInvalid, err)
	}
	return nil
}
