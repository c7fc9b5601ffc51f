// Package app runs the ptuple command: packing YAML field lists into wire
// frames, dumping frames back to YAML, and validating frame files.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rawbytedev/ptuple"
	"github.com/rawbytedev/ptuple/internal/config"
	"github.com/rawbytedev/ptuple/pkg/wire"
	"github.com/rawbytedev/ptuple/pkg/yamltuple"
)

type App struct {
	cfg    *config.Config
	log    *zap.Logger
	stdin  io.Reader
	stdout io.Writer
}

func New(cfg *config.Config, log *zap.Logger, stdin io.Reader, stdout io.Writer) *App {
	return &App{cfg: cfg, log: log, stdin: stdin, stdout: stdout}
}

func (a *App) Run(ctx context.Context) error {
	switch a.cfg.Mode {
	case config.ModePack:
		return a.withOutput(func(w io.Writer) error { return a.pack(ctx, w) })
	case config.ModeDump:
		return a.withOutput(func(w io.Writer) error { return a.dump(ctx, w) })
	case config.ModeCheck:
		return a.check(ctx)
	}
	return fmt.Errorf("unknown mode %q", a.cfg.Mode)
}

func (a *App) withOutput(fn func(io.Writer) error) error {
	if a.cfg.Output == "-" {
		return fn(a.stdout)
	}
	f, err := os.Create(a.cfg.Output)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *App) open(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(a.stdin), nil
	}
	return os.Open(name)
}

func (a *App) readAll(name string) ([]byte, error) {
	r, err := a.open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// pack builds one tuple per input through a single reused builder and
// writes it as a frame.
func (a *App) pack(ctx context.Context, w io.Writer) error {
	buf := make([]byte, ptuple.BufferSize(a.cfg.MaxFields, a.cfg.MaxBytes))
	b, err := ptuple.NewBuilder(buf, a.cfg.MaxFields, ptuple.Options{Logger: a.log})
	if err != nil {
		return err
	}
	fw := wire.NewWriter(w, a.cfg.Compression)
	for _, name := range a.cfg.Inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := a.readAll(name)
		if err != nil {
			return err
		}
		b.Clear()
		if err := yamltuple.Unmarshal(data, b); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		t := b.Take()
		if err := fw.Write(t); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		a.log.Debug("packed",
			zap.String("input", name),
			zap.Int("fields", t.Len()),
			zap.Int("bytes", t.Size()))
	}
	return fw.Flush()
}

// dump writes every frame of every input as a YAML document.
func (a *App) dump(ctx context.Context, w io.Writer) error {
	docs := 0
	return a.eachFile(ctx, func(name string, t ptuple.Tuple) error {
		out, err := yamltuple.Marshal(t)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if docs > 0 {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
		}
		docs++
		_, err = w.Write(out)
		return err
	})
}

func (a *App) eachFile(ctx context.Context, fn func(string, ptuple.Tuple) error) error {
	for _, name := range a.cfg.Inputs {
		if _, err := a.frames(ctx, name, func(t ptuple.Tuple) error { return fn(name, t) }); err != nil {
			return err
		}
	}
	return nil
}

// frames reads the frames of one input and returns how many were read.
func (a *App) frames(ctx context.Context, name string, fn func(ptuple.Tuple) error) (int, error) {
	r, err := a.open(name)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	fr := wire.NewReader(r)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		t, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("%s: frame %d: %w", name, n, err)
		}
		if err := fn(t); err != nil {
			return n, err
		}
		n++
	}
}

// check validates all inputs concurrently and reports every bad file.
func (a *App) check(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	errs := make([]error, len(a.cfg.Inputs))
	for i, name := range a.cfg.Inputs {
		g.Go(func() error {
			n, err := a.frames(ctx, name, func(ptuple.Tuple) error { return nil })
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.log.Warn("invalid input", zap.String("input", name), zap.Int("valid", n), zap.Error(err))
				errs[i] = err
				return nil
			}
			a.log.Info("input ok", zap.String("input", name), zap.Int("frames", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
