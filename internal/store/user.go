package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/memories/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.IsPremium,
		&u.StripeCustomerID, &u.FeedToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, display_name, password_hash, is_premium, stripe_customer_id, feed_token, created_at, updated_at`

func (s *UserStore) Create(email, displayName, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, display_name, password_hash, feed_token) VALUES (?, ?, ?, ?)`,
		email, displayName, passwordHash, uuid.NewString(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	return s.getOne(`SELECT `+userCols+` FROM users WHERE id = ?`, "get user", id)
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	return s.getOne(`SELECT `+userCols+` FROM users WHERE email = ?`, "get user by email", email)
}

func (s *UserStore) GetByFeedToken(token string) (*model.User, error) {
	return s.getOne(`SELECT `+userCols+` FROM users WHERE feed_token = ?`, "get user by feed token", token)
}

func (s *UserStore) getOne(query, op string, arg any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListIDs returns every user ID, oldest first.
func (s *UserStore) ListIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *UserStore) UpdateDisplayName(id int64, displayName string) (*model.User, error) {
	if _, err := s.db.Exec(`UPDATE users SET display_name = ? WHERE id = ?`, displayName, id); err != nil {
		return nil, fmt.Errorf("update display name: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) UpdatePassword(id int64, passwordHash string) error {
	if _, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *UserStore) SetPremium(id int64, premium bool) error {
	if _, err := s.db.Exec(`UPDATE users SET is_premium = ? WHERE id = ?`, premium, id); err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	return nil
}

// SetPremiumByCustomer updates the premium flag of the user linked to a
// Stripe customer. It returns the number of users updated.
func (s *UserStore) SetPremiumByCustomer(customerID string, premium bool) (int64, error) {
	result, err := s.db.Exec(`UPDATE users SET is_premium = ? WHERE stripe_customer_id = ? AND stripe_customer_id != ''`, premium, customerID)
	if err != nil {
		return 0, fmt.Errorf("set premium by customer: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *UserStore) SetStripeCustomerID(id int64, customerID string) error {
	if _, err := s.db.Exec(`UPDATE users SET stripe_customer_id = ? WHERE id = ?`, customerID, id); err != nil {
		return fmt.Errorf("set stripe customer id: %w", err)
	}
	return nil
}

// RotateFeedToken replaces the user's feed token, invalidating old feed URLs.
func (s *UserStore) RotateFeedToken(id int64) (string, error) {
	token := uuid.NewString()
	if _, err := s.db.Exec(`UPDATE users SET feed_token = ? WHERE id = ?`, token, id); err != nil {
		return "", fmt.Errorf("rotate feed token: %w", err)
	}
	return token, nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
