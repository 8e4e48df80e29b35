package orchestrator

import "errors"

// Ошибки orchestrator.
var (
	// ErrRunAlreadyActive — run уже обрабатывается этим процессом.
	ErrRunAlreadyActive = errors.New("run already active")

	// ErrUnknownPipeline — нет DAG для такого PipelineKind.
	ErrUnknownPipeline = errors.New("unknown pipeline kind")

	// ErrMissingDates — run без дат не может построить DAG.
	ErrMissingDates = errors.New("run params carry no dates")

	// ErrUnsupportedEntity — pipeline не умеет строить цепочку для
	// этой сущности.
	ErrUnsupportedEntity = errors.New("entity not supported by pipeline")

	// ErrMissingBatch — load-узел не нашёл батч своего extract-узла.
	ErrMissingBatch = errors.New("no extracted batch for load node")

	// ErrCyclicDependency — в DAG обнаружен цикл.
	ErrCyclicDependency = errors.New("cyclic dependency in DAG")
)
