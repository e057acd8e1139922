package blockfat

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
	loggerLock sync.RWMutex
)

// Logger returns the package logger. It is a no-op logger until SetLogger is called.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		loggerLock.Lock()
		defer loggerLock.Unlock()
		if logger == nil {
			logger = zap.NewNop()
		}
	})

	loggerLock.RLock()
	defer loggerLock.RUnlock()
	return logger
}

// SetLogger replaces the package logger. A nil logger restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}

	loggerOnce.Do(func() {})
	loggerLock.Lock()
	defer loggerLock.Unlock()
	logger = l
}
