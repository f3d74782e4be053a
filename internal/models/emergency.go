package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/olegsazonov/emergency-backend/internal/pkg/apperror"
)

// EmergencyType — категория происшествия.
type EmergencyType string

const (
	EmergencyTypeFire            EmergencyType = "fire"
	EmergencyTypeMedical         EmergencyType = "medical"
	EmergencyTypeAccident        EmergencyType = "accident"
	EmergencyTypeCrime           EmergencyType = "crime"
	EmergencyTypeNaturalDisaster EmergencyType = "natural_disaster"
	EmergencyTypeOther           EmergencyType = "other"
)

func (t EmergencyType) IsValid() bool {
	switch t {
	case EmergencyTypeFire, EmergencyTypeMedical, EmergencyTypeAccident,
		EmergencyTypeCrime, EmergencyTypeNaturalDisaster, EmergencyTypeOther:
		return true
	}
	return false
}

// Priority — приоритет вызова. Назначается один раз при создании и не меняется.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Weight возвращает вес приоритета для сортировки очереди.
// Неизвестный приоритет получает вес 0 и уходит в конец.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// PriorityFallback подставляется, когда классификатор недоступен:
// доступность приёма вызова важнее точности классификации.
const PriorityFallback = PriorityMedium

// EmergencyStatus — статус вызова. Переходы только вперёд:
// pending -> assigned -> resolved, resolved терминален.
type EmergencyStatus string

const (
	EmergencyStatusPending  EmergencyStatus = "pending"
	EmergencyStatusAssigned EmergencyStatus = "assigned"
	EmergencyStatusResolved EmergencyStatus = "resolved"
)

func (s EmergencyStatus) IsValid() bool {
	switch s {
	case EmergencyStatusPending, EmergencyStatusAssigned, EmergencyStatusResolved:
		return true
	}
	return false
}

// Rank задаёт порядок статусов для проверки монотонности переходов.
func (s EmergencyStatus) Rank() int {
	switch s {
	case EmergencyStatusPending:
		return 0
	case EmergencyStatusAssigned:
		return 1
	case EmergencyStatusResolved:
		return 2
	}
	return -1
}

func (s EmergencyStatus) CanTransitionTo(next EmergencyStatus) bool {
	transitions := map[EmergencyStatus][]EmergencyStatus{
		EmergencyStatusPending:  {EmergencyStatusAssigned},
		EmergencyStatusAssigned: {EmergencyStatusResolved},
		EmergencyStatusResolved: {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

func NewEmergencyType(raw string) (EmergencyType, error) {
	t := EmergencyType(raw)
	if !t.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный тип вызова")
	}
	return t, nil
}

func NewPriority(raw string) (Priority, error) {
	p := Priority(raw)
	if !p.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный приоритет")
	}
	return p, nil
}

// Emergency описывает один вызов: от приёма до закрытия.
// Priority, Type, ReporterID и CreatedAt неизменяемы после создания;
// ResponderID выставляется ровно один раз при переходе pending -> assigned
// и никогда не очищается.
type Emergency struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Type        EmergencyType   `db:"type" json:"type"`
	Description string          `db:"description" json:"description"`
	Location    string          `db:"location" json:"location"`
	Priority    Priority        `db:"priority" json:"priority"`
	Status      EmergencyStatus `db:"status" json:"status"`
	ReporterID  uuid.UUID       `db:"reporter_id" json:"reporter_id"`
	ResponderID *uuid.UUID      `db:"responder_id" json:"responder_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	AssignedAt  *time.Time      `db:"assigned_at" json:"assigned_at,omitempty"`
	ResolvedAt  *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsActive сообщает, находится ли вызов в работе (не закрыт).
func (e *Emergency) IsActive() bool {
	return e.Status != EmergencyStatusResolved
}

// IsAssignedTo проверяет, закреплён ли вызов за данным спасателем.
func (e *Emergency) IsAssignedTo(responderID uuid.UUID) bool {
	return e.ResponderID != nil && *e.ResponderID == responderID
}

// TransitionEvent — событие о совершённом переходе статуса.
// Эмитится координатором после фиксации перехода в хранилище.
type TransitionEvent struct {
	EmergencyID uuid.UUID       `json:"emergency_id"`
	OldStatus   EmergencyStatus `json:"old_status"`
	NewStatus   EmergencyStatus `json:"new_status"`
	ActorID     uuid.UUID       `json:"actor_id"`
	Timestamp   time.Time       `json:"timestamp"`
}
