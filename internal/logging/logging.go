package logging

import "go.uber.org/zap"

type Logger = zap.SugaredLogger

// New builds the process logger. Verbose enables the development
// configuration with debug-level output.
func New(verbose bool) *Logger {
	if verbose {
		l, _ := zap.NewDevelopment()
		return l.Sugar()
	}
	l, _ := zap.NewProduction()
	return l.Sugar()
}
