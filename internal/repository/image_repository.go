package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/pkg/errors"
)

type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

const imageSelect = `
        SELECT id, user_id, original_name, stored_name, file_path, file_size, mime_type,
               image_type, related_id, created_at
        FROM images
    `

func scanImage(s scanner) (*models.Image, error) {
	image := &models.Image{}
	err := s.Scan(
		&image.ID,
		&image.UserID,
		&image.OriginalName,
		&image.StoredName,
		&image.FilePath,
		&image.FileSize,
		&image.MimeType,
		&image.ImageType,
		&image.RelatedID,
		&image.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	image.URL = models.ImageURL(image.ID)
	return image, nil
}

func (r *ImageRepository) Create(ctx context.Context, image *models.Image) error {
	query := `
        INSERT INTO images (user_id, original_name, stored_name, file_path, file_size, mime_type,
                            image_type, related_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		image.UserID,
		image.OriginalName,
		image.StoredName,
		image.FilePath,
		image.FileSize,
		image.MimeType,
		image.ImageType,
		image.RelatedID,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get image ID: %w", err)
	}

	image.ID = int(id)
	image.URL = models.ImageURL(image.ID)
	image.CreatedAt = now
	return nil
}

func (r *ImageRepository) GetByID(ctx context.Context, userID, id int) (*models.Image, error) {
	image, err := scanImage(r.db.QueryRowContext(ctx, imageSelect+` WHERE id = ? AND user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return image, nil
}

func (r *ImageRepository) List(ctx context.Context, filters models.ImageListFilters) ([]*models.Image, error) {
	query := imageSelect + `
        WHERE user_id = ?
          AND (? = '' OR image_type = ?)
          AND (? IS NULL OR related_id = ?)
        ORDER BY created_at DESC, id DESC
        LIMIT ? OFFSET ?
    `

	filters.Normalize()
	related := nullableInt(filters.RelatedID)

	rows, err := r.db.QueryContext(ctx, query,
		filters.UserID,
		filters.ImageType, filters.ImageType,
		related, related,
		filters.Limit, filters.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := make([]*models.Image, 0)
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, image)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return images, nil
}

func (r *ImageRepository) Delete(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return requireAffected(result)
}
