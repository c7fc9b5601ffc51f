package config

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/rawbytedev/ptuple"
	"github.com/rawbytedev/ptuple/pkg/wire"
)

const (
	ModePack  = "pack"
	ModeDump  = "dump"
	ModeCheck = "check"
)

type Config struct {
	Mode        string
	Inputs      []string // "-" is stdin
	Output      string   // "-" is stdout
	Compression wire.Compression
	MaxFields   int
	MaxBytes    int // payload bytes of the pack buffer
	Workers     int // files checked at once
	Debug       bool
	MemProfile  string
}

// Parse reads the command line, without the program name:
//
//	ptuple [flags] pack|dump|check [file ...]
func Parse(args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("ptuple", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: ptuple [flags] pack|dump|check [file ...]")
		fs.PrintDefaults()
	}
	out := fs.String("o", "-", "output file")
	comp := fs.String("compression", "none", "frame compression: none, lz4 or zstd")
	maxFields := fs.Int("max-fields", 1024, "directory slots of the pack buffer")
	maxBytes := fs.Int("max-bytes", 64<<10, "payload bytes of the pack buffer")
	workers := fs.Int("workers", 4, "files checked concurrently")
	debug := fs.Bool("debug", false, "development logging")
	memProfile := fs.String("memprofile", "", "write a heap profile to this file on exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c, err := wire.ParseCompression(*comp)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Output:      *out,
		Compression: c,
		MaxFields:   *maxFields,
		MaxBytes:    *maxBytes,
		Workers:     *workers,
		Debug:       *debug,
		MemProfile:  *memProfile,
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return nil, errors.New("missing mode")
	}
	cfg.Mode, cfg.Inputs = rest[0], rest[1:]
	if len(cfg.Inputs) == 0 {
		cfg.Inputs = []string{"-"}
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModePack, ModeDump, ModeCheck:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.MaxFields < 0 || c.MaxFields > ptuple.MaxFields {
		return fmt.Errorf("max-fields must be within [0, %d]", ptuple.MaxFields)
	}
	if c.MaxBytes < 0 || c.MaxBytes > ptuple.MaxTupleBytes {
		return fmt.Errorf("max-bytes must be within [0, %d]", ptuple.MaxTupleBytes)
	}
	if c.Workers < 1 {
		return errors.New("workers must be positive")
	}
	return nil
}
