package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Ballpark/internal/mq"
	"github.com/shaiso/Ballpark/internal/warehouse"
)

// Deps — подключения и репозитории, общие для команд CLI.
type Deps struct {
	pool *pgxpool.Pool

	Runs      *warehouse.RunRepo
	Anomalies *warehouse.AnomalyRepo
	Schedules *warehouse.ScheduleRepo
}

// Connect открывает подключение к хранилищу и собирает репозитории.
func Connect(ctx context.Context, dsn string) (*Deps, error) {
	pool, err := warehouse.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	return &Deps{
		pool:      pool,
		Runs:      warehouse.NewRunRepo(pool),
		Anomalies: warehouse.NewAnomalyRepo(pool),
		Schedules: warehouse.NewScheduleRepo(pool),
	}, nil
}

// Close закрывает подключение к хранилищу.
func (d *Deps) Close() {
	d.pool.Close()
}

// ConnectPublisher подключается к RabbitMQ и возвращает Publisher.
// Возвращает nil без ошибки при пустом URL: события не публикуются,
// orchestrator подхватит runs через polling.
func ConnectPublisher(url string, logger *slog.Logger) (*mq.Publisher, func(), error) {
	if url == "" {
		return nil, func() {}, nil
	}
	conn, err := mq.Dial(url, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mq: %w", err)
	}
	return mq.NewPublisher(conn, logger), func() { conn.Close() }, nil
}
