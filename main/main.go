package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"go.uber.org/zap"

	"github.com/rawbytedev/ptuple/internal/app"
	"github.com/rawbytedev/ptuple/internal/config"
)

func main() {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var logger *zap.Logger
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = app.New(cfg, logger, os.Stdin, os.Stdout).Run(ctx)
	stop()
	if cfg.MemProfile != "" {
		writeHeapProfile(logger, cfg.MemProfile)
	}
	_ = logger.Sync()
	if err != nil {
		logger.Error("ptuple failed", zap.String("mode", cfg.Mode), zap.Error(err))
		os.Exit(1)
	}
}

func writeHeapProfile(logger *zap.Logger, path string) {
	f, err := os.Create(path)
	if err != nil {
		logger.Error("heap profile", zap.Error(err))
		return
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		logger.Error("heap profile", zap.Error(err))
	}
}
