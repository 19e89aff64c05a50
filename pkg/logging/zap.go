package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig configures the zap backend.
type ZapConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
	Output string `yaml:"output"` // stdout, stderr or a file path
	Caller bool   `yaml:"caller"`
}

// DefaultZapConfig returns console output at info level on stderr, so that
// command output on stdout stays clean.
func DefaultZapConfig() ZapConfig {
	return ZapConfig{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

// ZapLogger adapts a zap sugared logger to Logger.
type ZapLogger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewZapLogger builds a Logger backed by zap.
func NewZapLogger(config ZapConfig) (*ZapLogger, error) {
	level, err := parseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	switch config.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console", "":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format: %s", config.Format)
	}

	var writeSyncer zapcore.WriteSyncer
	switch config.Output {
	case "stdout":
		writeSyncer = zapcore.Lock(os.Stdout)
	case "stderr", "":
		writeSyncer = zapcore.Lock(os.Stderr)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		writeSyncer = zapcore.Lock(zapcore.AddSync(file))
	}

	opts := []zap.Option{}
	if config.Caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	zapLogger := zap.New(zapcore.NewCore(encoder, writeSyncer, level), opts...)
	return &ZapLogger{
		logger: zapLogger,
		sugar:  zapLogger.Sugar(),
	}, nil
}

func (z *ZapLogger) LogLevelf(level int, format string, args ...interface{}) {
	switch level {
	case LogLevelDebug:
		z.sugar.Debugf(format, args...)
	case LogLevelWarn:
		z.sugar.Warnf(format, args...)
	case LogLevelError:
		z.sugar.Errorf(format, args...)
	default:
		z.sugar.Infof(format, args...)
	}
}

func (z *ZapLogger) Debugf(format string, args ...interface{}) {
	z.sugar.Debugf(format, args...)
}

func (z *ZapLogger) Infof(format string, args ...interface{}) {
	z.sugar.Infof(format, args...)
}

func (z *ZapLogger) Warnf(format string, args ...interface{}) {
	z.sugar.Warnf(format, args...)
}

func (z *ZapLogger) Errorf(format string, args ...interface{}) {
	z.sugar.Errorf(format, args...)
}

// Sync flushes buffered entries. Errors from syncing a terminal are
// ignored by callers.
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

// zapcore.ParseLevel is not available in zap v1.20.0
func parseLevel(levelStr string) (zapcore.Level, error) {
	switch levelStr {
	case "debug":
		return zap.DebugLevel, nil
	case "info", "":
		return zap.InfoLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("invalid log level: %s", levelStr)
	}
}
