package store

import (
	"context"
	"database/sql"
	"fmt"

	"hesapduragi/internal/models"
)

// CreateUser creates a new user account
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, balance, total_sales, total_purchases, created_at, updated_at`

	return s.db.GetContext(ctx, user, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE email = $1", email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreditSeller adds a settled sale to the seller: balance grows by the net
// amount and the sales counter advances.
func (s *Store) CreditSeller(ctx context.Context, sellerID int64, amount int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET balance = balance + $1, total_sales = total_sales + 1, updated_at = NOW() WHERE id = $2",
		amount, sellerID)
	return err
}

// DebitBuyer conditionally takes amount from the buyer's balance. Returns
// false without mutating when the balance does not cover the amount.
func (s *Store) DebitBuyer(ctx context.Context, buyerID int64, amount int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $1",
		amount, buyerID)
	if err != nil {
		return false, fmt.Errorf("failed to debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CreditBuyer returns amount to the buyer's balance (refund path)
func (s *Store) CreditBuyer(ctx context.Context, buyerID int64, amount int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id = $2",
		amount, buyerID)
	return err
}

// IncrementPurchases advances a registered buyer's purchase counter
func (s *Store) IncrementPurchases(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET total_purchases = total_purchases + 1, updated_at = NOW() WHERE id = $1",
		userID)
	return err
}
