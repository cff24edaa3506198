package utils

import (
	"log"
	"os"
)

// Logger is a thin wrapper over two stdlib loggers so handlers and
// services never write to os.Stdout/os.Stderr directly.
type Logger struct {
	info *log.Logger
	err  *log.Logger
}

func NewLogger() *Logger {
	flags := log.LstdFlags | log.LUTC
	return &Logger{
		info: log.New(os.Stdout, "", flags),
		err:  log.New(os.Stderr, "ERROR ", flags),
	}
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.info.Printf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.err.Printf(format, args...)
}
