// Package observability provides the process-wide CLI logger.
//
// The logger writes human-readable structured lines to stderr so JSONL
// audit output on stdout stays machine-parseable.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger for command-line output.
//
// It defaults to a no-op logger so packages can log before InitLogging
// runs (e.g., during flag parsing errors). InitLogging replaces it.
var CLILogger = zap.NewNop()

// InitLogging configures CLILogger for the requested verbosity.
//
// level is one of debug, info, warn, error. quiet raises the floor to
// warn regardless of level, suppressing informational output.
func InitLogging(level string, quiet bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	if quiet && lvl < zapcore.WarnLevel {
		lvl = zapcore.WarnLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)

	CLILogger = zap.New(core)
	return nil
}

// SyncLogging flushes any buffered log entries. Called on exit; sync
// errors on stderr are expected on some platforms and ignored.
func SyncLogging() {
	_ = CLILogger.Sync()
}
