package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/donorline/donorline/internal/database/models"
)

// greetingRepo implements GreetingRepository.
type greetingRepo struct {
	db *DB
}

// NewGreetingRepository creates a new GreetingRepository.
func NewGreetingRepository(db *DB) GreetingRepository {
	return &greetingRepo{db: db}
}

const greetingColumns = `id, owner_user_id, display_name, description, media_url,
	 is_default, notify_email, created_at, updated_at`

// Create inserts a new greeting. Inserting a second default for the same
// owner violates the partial unique index and returns ErrConflict.
func (r *greetingRepo) Create(ctx context.Context, g *models.Greeting) error {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO greetings (owner_user_id, display_name, description, media_url,
		 is_default, notify_email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		g.OwnerUserID, g.DisplayName, g.Description, g.MediaURL,
		g.IsDefault, g.NotifyEmail, g.CreatedAt, g.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting greeting: %w", err)
	}
	g.ID = id
	return nil
}

// GetByID returns a greeting by ID.
func (r *greetingRepo) GetByID(ctx context.Context, id int64) (*models.Greeting, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+greetingColumns+` FROM greetings WHERE id = ?`), id,
	))
}

// GetDefaultByOwner returns the owner's default greeting, or nil when no
// greeting is marked default.
func (r *greetingRepo) GetDefaultByOwner(ctx context.Context, ownerUserID string) (*models.Greeting, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+greetingColumns+` FROM greetings
		 WHERE owner_user_id = ? AND is_default = ?`), ownerUserID, true,
	))
}

// ListByOwner returns all greetings for a user, default first.
func (r *greetingRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]models.Greeting, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+greetingColumns+` FROM greetings
		 WHERE owner_user_id = ? ORDER BY is_default DESC, created_at`), ownerUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying greetings: %w", err)
	}
	defer rows.Close()

	var greetings []models.Greeting
	for rows.Next() {
		var g models.Greeting
		if err := rows.Scan(&g.ID, &g.OwnerUserID, &g.DisplayName, &g.Description,
			&g.MediaURL, &g.IsDefault, &g.NotifyEmail, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning greeting row: %w", err)
		}
		greetings = append(greetings, g)
	}
	return greetings, rows.Err()
}

// Update modifies an existing greeting's display fields. Default status is
// changed only through SetDefault.
func (r *greetingRepo) Update(ctx context.Context, g *models.Greeting) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE greetings SET display_name = ?, description = ?, media_url = ?,
		 notify_email = ?, updated_at = ? WHERE id = ?`),
		g.DisplayName, g.Description, g.MediaURL, g.NotifyEmail,
		time.Now().UTC(), g.ID,
	)
	if err != nil {
		return fmt.Errorf("updating greeting: %w", err)
	}
	return nil
}

// SetDefault makes the given greeting the owner's single default. The
// previous default is cleared in the same transaction so exactly one row
// per owner carries is_default at any commit point.
func (r *greetingRepo) SetDefault(ctx context.Context, ownerUserID string, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`UPDATE greetings SET is_default = ?, updated_at = ?
		 WHERE owner_user_id = ? AND is_default = ?`),
		false, now, ownerUserID, true,
	); err != nil {
		return fmt.Errorf("clearing default greeting: %w", err)
	}

	result, err := tx.ExecContext(ctx, r.db.rebind(
		`UPDATE greetings SET is_default = ?, updated_at = ?
		 WHERE id = ? AND owner_user_id = ?`),
		true, now, id, ownerUserID,
	)
	if err != nil {
		return fmt.Errorf("setting default greeting: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

// Delete removes a greeting by ID.
func (r *greetingRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`DELETE FROM greetings WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting greeting: %w", err)
	}
	return nil
}

func (r *greetingRepo) scanOne(row *sql.Row) (*models.Greeting, error) {
	var g models.Greeting
	err := row.Scan(&g.ID, &g.OwnerUserID, &g.DisplayName, &g.Description,
		&g.MediaURL, &g.IsDefault, &g.NotifyEmail, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning greeting: %w", err)
	}
	return &g, nil
}
