package warehouse

import "sync"

// partitionLocks — набор мьютексов по ключу (entity, partition).
//
// Гарантирует единственного писателя на партицию внутри процесса:
// два load-task одной партиции выполняются последовательно, load'ы
// разных партиций не мешают друг другу.
type partitionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPartitionLocks() *partitionLocks {
	return &partitionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire блокирует партицию и возвращает функцию разблокировки.
func (p *partitionLocks) acquire(key string) func() {
	p.mu.Lock()
	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[key] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
