package cli

import (
	"context"
	"log/slog"
)

// Options — общие флаги CLI, заполняются root-командой.
type Options struct {
	// DSN — строка подключения к PostgreSQL.
	DSN *string

	// MQURL — строка подключения к RabbitMQ (пустая — без публикации).
	MQURL *string

	// JSON — вывод в JSON вместо таблиц.
	JSON *bool

	Logger *slog.Logger
}

func (o *Options) connect(ctx context.Context) (*Deps, error) {
	return Connect(ctx, *o.DSN)
}

func (o *Options) output() *Output {
	return NewOutput(*o.JSON)
}

func (o *Options) mqURL() string {
	if o.MQURL == nil {
		return ""
	}
	return *o.MQURL
}
