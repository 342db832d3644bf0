package locker

import (
	"sync"
)

// PerUser сериализует изменяющие операции по одному пользователю.
// Последовательности чтение-изменение-запись над инвестициями (фиксация
// прибыли, вывод, пересчет уровня, пересчет реферальной прибыли) не
// защищены транзакционной изоляцией, поэтому все изменяющие пути и
// периодический пересчет берут блокировку пользователя.
type PerUser struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewPerUser создает новый набор пользовательских блокировок
func NewPerUser() *PerUser {
	return &PerUser{
		locks: make(map[int64]*sync.Mutex),
	}
}

// Lock блокирует пользователя до вызова Unlock
func (l *PerUser) Lock(userID int64) {
	l.userMutex(userID).Lock()
}

// Unlock снимает блокировку пользователя
func (l *PerUser) Unlock(userID int64) {
	l.userMutex(userID).Unlock()
}

// userMutex возвращает мьютекс пользователя, создавая его при первом обращении
func (l *PerUser) userMutex(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	return m
}
