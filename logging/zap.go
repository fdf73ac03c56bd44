// Package logging adapts go.uber.org/zap to the go-logger contract.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MichaelAJay/go-logger"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and encoding of a zap logger.
type Config struct {
	Level    string `json:"level" yaml:"level"`
	Format   string `json:"format" yaml:"format"` // json, console
	Output   string `json:"output" yaml:"output"` // stdout, stderr, file
	FilePath string `json:"file_path" yaml:"file_path"`

	// Rotation settings for file output; zero values use lumberjack defaults
	MaxSizeMB  int  `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `json:"compress" yaml:"compress"`
}

// zapLogger implements logger.Logger
type zapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds a zap logger from config.
func NewZapLogger(config Config) (logger.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	if config.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	switch config.Output {
	case "file":
		if config.FilePath == "" {
			return nil, fmt.Errorf("log file path is required for file output")
		}
		writeSyncer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		})
	case "stderr":
		writeSyncer = zapcore.AddSync(os.Stderr)
	default:
		writeSyncer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, writeSyncer, ParseLevel(config.Level))
	return NewFromZap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))), nil
}

// NewFromZap wraps an existing zap logger.
func NewFromZap(z *zap.Logger) logger.Logger {
	return &zapLogger{logger: z}
}

// ParseLevel maps a level name to a zap level; unknown names are info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(fields []logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			zapFields = append(zapFields, zap.NamedError(f.Key, err))
			continue
		}
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}

func (l *zapLogger) Debug(msg string, fields ...logger.Field) {
	l.logger.Debug(msg, toZapFields(fields)...)
}

func (l *zapLogger) Info(msg string, fields ...logger.Field) {
	l.logger.Info(msg, toZapFields(fields)...)
}

func (l *zapLogger) Warn(msg string, fields ...logger.Field) {
	l.logger.Warn(msg, toZapFields(fields)...)
}

func (l *zapLogger) Error(msg string, fields ...logger.Field) {
	l.logger.Error(msg, toZapFields(fields)...)
}

func (l *zapLogger) Fatal(msg string, fields ...logger.Field) {
	l.logger.Fatal(msg, toZapFields(fields)...)
}

func (l *zapLogger) With(fields ...logger.Field) logger.Logger {
	return &zapLogger{logger: l.logger.With(toZapFields(fields)...)}
}

// WithContext attaches the request ID set by the chi RequestID middleware.
func (l *zapLogger) WithContext(ctx context.Context) logger.Logger {
	if ctx == nil {
		return l
	}
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		return l.With(logger.Field{Key: "request_id", Value: requestID})
	}
	return l
}

// Sync flushes buffered entries of loggers created by this package.
func Sync(l logger.Logger) error {
	if z, ok := l.(*zapLogger); ok {
		return z.logger.Sync()
	}
	return nil
}
