package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/olegsazonov/emergency-backend/internal/models"
)

var (
	ErrEmergencyNotFound = errors.New("emergency not found")

	// ErrStatusConflict означает, что условное обновление не прошло:
	// запись существует, но её статус не совпал с ожидаемым.
	// Какую именно ошибку вернуть вызывающему, решает координатор,
	// перечитав актуальный статус.
	ErrStatusConflict = errors.New("emergency status conflict")
)

// EmergencyFilter сужает выборку вызовов.
type EmergencyFilter struct {
	ReporterID  *uuid.UUID
	ResponderID *uuid.UUID
	Statuses    []models.EmergencyStatus
}

// EmergencyRepository — хранилище вызовов поверх PostgreSQL.
// Единственный источник истины о статусах; условное обновление
// UpdateStatusIf — точка линеаризации для конкурирующих переходов.
type EmergencyRepository struct {
	db *sqlx.DB
}

func NewEmergencyRepository(db *sqlx.DB) *EmergencyRepository {
	return &EmergencyRepository{db: db}
}

const emergencyColumns = `id, type, description, location, priority, status, reporter_id, responder_id, created_at, assigned_at, resolved_at`

func (r *EmergencyRepository) Create(ctx context.Context, e *models.Emergency) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO emergencies (id, type, description, location, priority, status, reporter_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.Type, e.Description, e.Location, e.Priority, e.Status, e.ReporterID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("emergency repository: не удалось создать вызов: %w", err)
	}
	return nil
}

func (r *EmergencyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error) {
	var e models.Emergency
	err := r.db.GetContext(ctx, &e, `SELECT `+emergencyColumns+` FROM emergencies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmergencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("emergency repository: не удалось прочитать вызов: %w", err)
	}
	return &e, nil
}

// List возвращает вызовы по фильтру. Порядок обслуживания накладывает
// вызывающая сторона (triage), здесь только стабильная выборка.
func (r *EmergencyRepository) List(ctx context.Context, filter EmergencyFilter) ([]models.Emergency, error) {
	query := `SELECT ` + emergencyColumns + ` FROM emergencies`
	var conditions []string
	var args []interface{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		conditions = append(conditions, fmt.Sprintf("reporter_id = $%d", len(args)))
	}
	if filter.ResponderID != nil {
		args = append(args, *filter.ResponderID)
		conditions = append(conditions, fmt.Sprintf("responder_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			args = append(args, status)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var list []models.Emergency
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("emergency repository: не удалось выбрать вызовы: %w", err)
	}
	return list, nil
}

// UpdateStatusIf атомарно переводит вызов из expected в next.
// Сравнение статуса и запись происходят в одном UPDATE: два конкурирующих
// перехода из одного и того же статуса не могут пройти оба. Если ни одна
// строка не изменилась — либо вызова нет, либо статус уже другой;
// различить это можно повторным чтением.
func (r *EmergencyRepository) UpdateStatusIf(
	ctx context.Context,
	id uuid.UUID,
	expected, next models.EmergencyStatus,
	responderID *uuid.UUID,
	at time.Time,
) (*models.Emergency, error) {
	var e models.Emergency
	err := r.db.GetContext(ctx, &e, `
		UPDATE emergencies
		SET status = $3,
		    responder_id = COALESCE($4, responder_id),
		    assigned_at = CASE WHEN $3 = 'assigned' THEN $5 ELSE assigned_at END,
		    resolved_at = CASE WHEN $3 = 'resolved' THEN $5 ELSE resolved_at END
		WHERE id = $1 AND status = $2
		RETURNING `+emergencyColumns+`
	`, id, expected, next, responderID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("emergency repository: не удалось обновить статус: %w", err)
	}
	return &e, nil
}
