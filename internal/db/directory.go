package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetUser retrieves a recipient record with its channel preferences.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, COALESCE(push_endpoint_arn, ''), email_enabled, push_enabled
		FROM users
		WHERE id = $1
	`

	var u User
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Email,
		&u.PushEndpointARN,
		&u.EmailEnabled,
		&u.PushEnabled,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &u, nil
}

// GetTemplate retrieves a message template by code.
func (r *Repository) GetTemplate(ctx context.Context, code string) (*Template, error) {
	query := `
		SELECT code, subject, content, variables_schema
		FROM templates
		WHERE code = $1
	`

	var t Template
	err := r.db.Pool().QueryRow(ctx, query, code).Scan(
		&t.Code,
		&t.Subject,
		&t.Content,
		&t.VariablesSchema,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: template %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}

	return &t, nil
}
