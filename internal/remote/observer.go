package remote

import (
	"time"

	"go.uber.org/zap"
)

// Observer sees every exchange at the client boundary.
type Observer interface {
	Request(method, path string)
	Response(method, path string, status int, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Request(string, string) {}
func (nopObserver) Response(string, string, int, time.Duration, error) {}

type logObserver struct {
	logger *zap.Logger
}

// NewLogObserver logs requests at debug level and failures at warn.
func NewLogObserver(logger *zap.Logger) Observer {
	return logObserver{logger: logger.Named("remote")}
}

func (o logObserver) Request(method, path string) {
	o.logger.Debug("api request", zap.String("method", method), zap.String("path", path))
}

func (o logObserver) Response(method, path string, status int, took time.Duration, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("took", took),
	}
	if err != nil {
		o.logger.Warn("api error", append(fields, zap.String("kind", string(KindOf(err))), zap.Error(err))...)
		return
	}
	o.logger.Debug("api response", fields...)
}
