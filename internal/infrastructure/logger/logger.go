package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. Helpers below are no-ops until Init runs,
// so packages can log freely from tests.
var Log *zap.Logger

// Init builds the JSON logger. An empty level means info; development
// environments also get stack traces on warnings.
func Init(env, level string) error {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(lvl),
		Development: env == "development",
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	built, err := config.Build()
	if err != nil {
		return err
	}
	Log = built
	zap.ReplaceGlobals(Log)
	return nil
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func Info(msg string, fields ...zap.Field)  { write(zapcore.InfoLevel, msg, fields) }
func Warn(msg string, fields ...zap.Field)  { write(zapcore.WarnLevel, msg, fields) }
func Error(msg string, fields ...zap.Field) { write(zapcore.ErrorLevel, msg, fields) }
func Debug(msg string, fields ...zap.Field) { write(zapcore.DebugLevel, msg, fields) }

// Fatal logs and exits. Without a logger it still exits.
func Fatal(msg string, fields ...zap.Field) {
	if Log == nil {
		os.Exit(1)
	}
	Log.WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

func write(lvl zapcore.Level, msg string, fields []zap.Field) {
	if Log == nil {
		return
	}
	if ce := Log.WithOptions(zap.AddCallerSkip(2)).Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}
