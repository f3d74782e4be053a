package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/olegsazonov/emergency-backend/internal/models"
)

var ErrMediaNotFound = errors.New("media not found")

// MediaRepository — хранилище метаданных фотографий с места происшествия.
type MediaRepository struct {
	db *sqlx.DB
}

func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) Create(ctx context.Context, m *models.Media) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO media (emergency_id, uploader_id, path, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.EmergencyID, m.UploaderID, m.Path, m.MimeType, m.SizeBytes).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("media repository: не удалось сохранить метаданные: %w", err)
	}
	return nil
}

func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var m models.Media
	err := r.db.GetContext(ctx, &m, `SELECT * FROM media WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("media repository: не удалось прочитать метаданные: %w", err)
	}
	return &m, nil
}

func (r *MediaRepository) ListByEmergency(ctx context.Context, emergencyID uuid.UUID) ([]models.Media, error) {
	var list []models.Media
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM media WHERE emergency_id = $1 ORDER BY created_at ASC
	`, emergencyID)
	if err != nil {
		return nil, fmt.Errorf("media repository: не удалось выбрать вложения: %w", err)
	}
	return list, nil
}
