package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/jeromwolf/FluxNews/pkg/errors"

	"github.com/jeromwolf/FluxNews/internal/repository"
)

type userRepository struct {
	*BaseRepository
}

func NewUserRepository(base *BaseRepository) repository.UserRepository {
	return &userRepository{BaseRepository: base}
}

func (r *userRepository) Email(ctx context.Context, userID string) (string, error) {
	var address string
	err := r.db.GetContext(ctx, &address,
		`SELECT email FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NotFound("user", err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load email for %s: %w", userID, err)
	}
	return address, nil
}
