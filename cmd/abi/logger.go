package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/native-abi/catalog"
	"github.com/wippyai/native-abi/chain"
	"github.com/wippyai/native-abi/marshal"
	"github.com/wippyai/native-abi/memory"
)

// setupLogger builds a console logger on stderr and installs it in every
// runtime package.
func setupLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	installLogger(logger)
	return logger, nil
}

func installLogger(l *zap.Logger) {
	catalog.SetLogger(l.Named("catalog"))
	chain.SetLogger(l.Named("chain"))
	marshal.SetLogger(l.Named("marshal"))
	memory.SetLogger(l.Named("memory"))
}
