// Package logging builds the process-wide zap logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "marks-api"

// Log bundles the root logger with its level, which the admin API can change
// at runtime.
type Log struct {
	Base   *zap.Logger
	Level  zap.AtomicLevel
	Closer func()
}

// ParseLevel accepts zap level names in any case. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zap.InfoLevel, nil
	}
	return zapcore.ParseLevel(s)
}

// Init returns a JSON logger for env "prod" and a console logger otherwise.
// An unknown level falls back to info rather than failing startup.
func Init(level, env string) (*Log, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zap.InfoLevel
	}
	atom := zap.NewAtomicLevelAt(lvl)

	var cfg zap.Config
	if strings.EqualFold(env, "prod") {
		cfg = zap.NewProductionConfig()
		// OTP bursts should not drown out everything else.
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 50}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = atom
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build(
		zap.AddStacktrace(zap.ErrorLevel),
		zap.Fields(zap.String("service", serviceName), zap.String("env", env)),
	)
	if err != nil {
		return nil, err
	}
	return &Log{
		Base:   base,
		Level:  atom,
		Closer: func() { _ = base.Sync() },
	}, nil
}
