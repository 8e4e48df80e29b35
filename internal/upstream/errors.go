package upstream

import (
	"errors"
	"fmt"
)

// ErrorKind — класс ошибки извлечения.
//
// Классификация определяет поведение Orchestrator'а: transient-ошибки
// получают retry по backoff-политике, permanent — фейлят task сразу.
type ErrorKind string

const (
	// KindTransient — временная ошибка: сетевой сбой, таймаут,
	// HTTP 5xx или 429. Повтор имеет смысл.
	KindTransient ErrorKind = "transient"

	// KindPermanent — постоянная ошибка: HTTP 4xx (кроме 429),
	// неразбираемый ответ. Повтор бесполезен.
	KindPermanent ErrorKind = "permanent"
)

// Error — классифицированная ошибка извлечения.
//
// Клиент делает ровно одну попытку и возвращает Error; решение о
// повторе принимает вызывающая сторона.
type Error struct {
	// Kind — класс ошибки.
	Kind ErrorKind

	// StatusCode — HTTP статус ответа (0, если запрос не дошёл).
	StatusCode int

	// Endpoint — путь запроса, для диагностики.
	Endpoint string

	// Summary — краткое описание: текст сетевой ошибки либо усечённое
	// начало тела ответа.
	Summary string

	// Err — исходная ошибка, если была.
	Err error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s: HTTP %d (%s): %s", e.Endpoint, e.StatusCode, e.Kind, e.Summary)
	}
	return fmt.Sprintf("upstream %s (%s): %s", e.Endpoint, e.Kind, e.Summary)
}

// Unwrap возвращает исходную ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient возвращает true, если ошибка временная и повтор
// имеет смысл.
func IsTransient(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind == KindTransient
	}
	return false
}
