package warehouse

import "errors"

// Общие ошибки хранилища.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnknownEntity — loader не умеет писать эту сущность.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrAllRowsRejected — непустой батч не дал ни одной записанной
	// строки: все строки отбракованы.
	ErrAllRowsRejected = errors.New("all rows rejected")
)
