// Package cli реализует команды ballpark CLI.
//
// CLI работает напрямую с хранилищем (PostgreSQL) и опционально
// публикует события в RabbitMQ:
//   - run.go      — runs: list, show, tasks, backfill
//   - anomaly.go  — аномалии качества данных
//   - schedule.go — расписания pipeline
//   - output.go   — табличный и JSON вывод
package cli
