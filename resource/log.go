package resource

import (
	"context"
	"fmt"
	"log"
)

// LogLevel defines log levels
type LogLevel int

// Log levels
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// LoggerLevel sets the logging level of the framework.
var LoggerLevel = LogLevelInfo

// Logger is the function used by the resource package to log messages. By
// default it writes to the standard logger but you can customize it to plug
// any logger:
//
//	resource.Logger = func(ctx context.Context, level resource.LogLevel, msg string, fields map[string]interface{}) {
//		zerolog.Ctx(ctx).WithLevel(zerolog.Level(level)).Fields(fields).Msg(msg)
//	}
var Logger = func(ctx context.Context, level LogLevel, msg string, fields map[string]interface{}) {
	log.Output(2, msg)
}

func logDebugf(ctx context.Context, fields map[string]interface{}, format string, a ...interface{}) {
	if LoggerLevel <= LogLevelDebug && Logger != nil {
		Logger(ctx, LogLevelDebug, fmt.Sprintf(format, a...), fields)
	}
}

func logErrorf(ctx context.Context, fields map[string]interface{}, format string, a ...interface{}) {
	if LoggerLevel <= LogLevelError && Logger != nil {
		Logger(ctx, LogLevelError, fmt.Sprintf(format, a...), fields)
	}
}

func logPanicf(ctx context.Context, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	if LoggerLevel <= LogLevelFatal && Logger != nil {
		Logger(ctx, LogLevelFatal, msg, nil)
	}
	panic(msg)
}
