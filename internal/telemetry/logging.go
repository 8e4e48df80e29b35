package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// Переменные окружения, управляющие логированием.
const (
	envLogLevel  = "LOG_LEVEL"  // DEBUG, INFO, WARN, ERROR
	envLogFormat = "LOG_FORMAT" // json (по умолчанию) или text
)

var logLevels = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

// LogLevel читает уровень логирования из LOG_LEVEL.
// Неизвестное или пустое значение означает INFO.
func LogLevel() slog.Level {
	if lvl, ok := logLevels[strings.ToUpper(os.Getenv(envLogLevel))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// SetupLogger инициализирует глобальный логгер процесса.
//
// LOG_FORMAT=json (по умолчанию) — для production, text — для локальной
// разработки. На уровне DEBUG в записи добавляется источник вызова.
func SetupLogger() *slog.Logger {
	level := LogLevel()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch os.Getenv(envLogFormat) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
