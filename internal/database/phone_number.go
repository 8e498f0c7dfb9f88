package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/donorline/donorline/internal/database/models"
	"github.com/google/uuid"
)

// phoneNumberRepo implements PhoneNumberRepository.
type phoneNumberRepo struct {
	db *DB
}

// NewPhoneNumberRepository creates a new PhoneNumberRepository.
func NewPhoneNumberRepository(db *DB) PhoneNumberRepository {
	return &phoneNumberRepo{db: db}
}

const phoneNumberColumns = `id, public_id, owner_user_id, number, external_number_id,
	 friendly_name, status, voice_capable, sms_capable, created_at, updated_at`

// Create inserts a purchased number. The unique indexes on owner_user_id
// and number turn a concurrent-purchase race into ErrConflict for the loser.
func (r *phoneNumberRepo) Create(ctx context.Context, num *models.PhoneNumber) error {
	if num.PublicID == "" {
		num.PublicID = uuid.NewString()
	}
	now := time.Now().UTC()
	num.CreatedAt = now
	num.UpdatedAt = now

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO phone_numbers (public_id, owner_user_id, number, external_number_id,
		 friendly_name, status, voice_capable, sms_capable, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		num.PublicID, num.OwnerUserID, num.Number, num.ExternalNumberID,
		num.FriendlyName, num.Status, num.VoiceCapable, num.SMSCapable,
		num.CreatedAt, num.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting phone number: %w", err)
	}
	num.ID = id
	return nil
}

// GetByID returns a phone number by ID.
func (r *phoneNumberRepo) GetByID(ctx context.Context, id int64) (*models.PhoneNumber, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+phoneNumberColumns+` FROM phone_numbers WHERE id = ?`), id,
	))
}

// GetByNumber returns a phone number by its E.164 number string.
func (r *phoneNumberRepo) GetByNumber(ctx context.Context, number string) (*models.PhoneNumber, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+phoneNumberColumns+` FROM phone_numbers WHERE number = ?`), number,
	))
}

// GetByOwner returns the number owned by the given user, if any.
func (r *phoneNumberRepo) GetByOwner(ctx context.Context, ownerUserID string) (*models.PhoneNumber, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+phoneNumberColumns+` FROM phone_numbers WHERE owner_user_id = ?`), ownerUserID,
	))
}

// List returns all provisioned numbers.
func (r *phoneNumberRepo) List(ctx context.Context) ([]models.PhoneNumber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+phoneNumberColumns+` FROM phone_numbers ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("querying phone numbers: %w", err)
	}
	defer rows.Close()

	var nums []models.PhoneNumber
	for rows.Next() {
		var n models.PhoneNumber
		if err := rows.Scan(&n.ID, &n.PublicID, &n.OwnerUserID, &n.Number,
			&n.ExternalNumberID, &n.FriendlyName, &n.Status, &n.VoiceCapable,
			&n.SMSCapable, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning phone number row: %w", err)
		}
		nums = append(nums, n)
	}
	return nums, rows.Err()
}

func (r *phoneNumberRepo) scanOne(row *sql.Row) (*models.PhoneNumber, error) {
	var n models.PhoneNumber
	err := row.Scan(&n.ID, &n.PublicID, &n.OwnerUserID, &n.Number,
		&n.ExternalNumberID, &n.FriendlyName, &n.Status, &n.VoiceCapable,
		&n.SMSCapable, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning phone number: %w", err)
	}
	return &n, nil
}
