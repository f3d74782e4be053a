package triage

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegsazonov/emergency-backend/internal/models"
)

// Entry — облегчённая запись очереди: только то, что нужно для порядка обслуживания.
type Entry struct {
	ID        uuid.UUID
	Priority  models.Priority
	CreatedAt time.Time
}

// Queue — производное представление активных (pending) вызовов,
// упорядоченное по приоритету и свежести. Очередь — кэш поверх хранилища:
// она может отставать, но никогда не участвует в решении о взаимном
// исключении — это ответственность атомарного обновления в хранилище.
type Queue struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

// NewQueue создаёт пустую очередь.
func NewQueue() *Queue {
	return &Queue{entries: make(map[uuid.UUID]Entry)}
}

// Push добавляет вызов в очередь ожидания.
func (q *Queue) Push(e *models.Emergency) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries[e.ID] = Entry{
		ID:        e.ID,
		Priority:  e.Priority,
		CreatedAt: e.CreatedAt,
	}
}

// Remove убирает вызов из очереди (принят или закрыт).
func (q *Queue) Remove(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.entries, id)
}

// Len возвращает размер очереди.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.entries)
}

// Snapshot возвращает упорядоченный срез очереди:
// вес приоритета по убыванию, затем createdAt по убыванию (свежее — раньше).
// Порядок пересчитывается на каждое чтение; этого достаточно при
// размерах очереди реального диспетчерского контура.
func (q *Queue) Snapshot() []Entry {
	q.mu.RLock()
	result := make([]Entry, 0, len(q.entries))
	for _, entry := range q.entries {
		result = append(result, entry)
	}
	q.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return entryLess(result[i], result[j])
	})
	return result
}

// Rebuild заменяет содержимое очереди срезом pending вызовов из хранилища.
// Вызывается при старте и при подозрении на рассинхронизацию.
func (q *Queue) Rebuild(pending []models.Emergency) {
	entries := make(map[uuid.UUID]Entry, len(pending))
	for i := range pending {
		e := &pending[i]
		if e.Status != models.EmergencyStatusPending {
			continue
		}
		entries[e.ID] = Entry{ID: e.ID, Priority: e.Priority, CreatedAt: e.CreatedAt}
	}

	q.mu.Lock()
	q.entries = entries
	q.mu.Unlock()
}

func entryLess(a, b Entry) bool {
	if wa, wb := a.Priority.Weight(), b.Priority.Weight(); wa != wb {
		return wa > wb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	// Полный порядок для детерминизма при равных ключах.
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// Less — функция порядка обслуживания для полных записей.
// Тот же составной ключ, что и у очереди: статус не участвует в сортировке,
// это ортогональное измерение для отображения.
func Less(a, b *models.Emergency) bool {
	return entryLess(
		Entry{ID: a.ID, Priority: a.Priority, CreatedAt: a.CreatedAt},
		Entry{ID: b.ID, Priority: b.Priority, CreatedAt: b.CreatedAt},
	)
}

// Sort упорядочивает вызовы по порядку обслуживания очереди.
func Sort(list []models.Emergency) {
	sort.Slice(list, func(i, j int) bool {
		return Less(&list[i], &list[j])
	})
}
