package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hesapduragi/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetAccountByID retrieves an account listing by ID
func (s *Store) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// AccountFilter narrows catalog listings
type AccountFilter struct {
	Game       string
	Category   string
	Featured   bool
	OnSale     bool
	WeeklyDeal bool
}

// ListAccounts retrieves catalog listings matching the filter
func (s *Store) ListAccounts(ctx context.Context, filter AccountFilter) ([]models.Account, error) {
	query := "SELECT * FROM accounts WHERE status != 'suspended'"
	args := []interface{}{}
	n := 1

	if filter.Game != "" {
		query += fmt.Sprintf(" AND game = $%d", n)
		args = append(args, filter.Game)
		n++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", n)
		args = append(args, filter.Category)
		n++
	}
	if filter.Featured {
		query += " AND is_featured = true"
	}
	if filter.OnSale {
		query += " AND is_on_sale = true"
	}
	if filter.WeeklyDeal {
		query += " AND is_weekly_deal = true"
	}
	query += " ORDER BY created_at DESC"

	var accounts []models.Account
	err := s.db.SelectContext(ctx, &accounts, query, args...)
	return accounts, err
}

// CreateAccount creates a new catalog listing
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts
			(title, game, category, description, price, stock, status, seller_id,
			 is_featured, is_on_sale, is_weekly_deal, discount_percentage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, rating, reviews, created_at, updated_at`

	return s.db.GetContext(ctx, account, query,
		account.Title, account.Game, account.Category, account.Description,
		account.Price, account.Stock, account.Status, account.SellerID,
		account.IsFeatured, account.IsOnSale, account.IsWeeklyDeal, account.DiscountPercentage)
}

// UpdateAccount updates the admin-editable fields of a listing
func (s *Store) UpdateAccount(ctx context.Context, account *models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET
			title = $1, game = $2, category = $3, description = $4, price = $5,
			stock = $6, status = $7, is_featured = $8, is_on_sale = $9,
			is_weekly_deal = $10, discount_percentage = $11, updated_at = NOW()
		WHERE id = $12`,
		account.Title, account.Game, account.Category, account.Description,
		account.Price, account.Stock, account.Status, account.IsFeatured,
		account.IsOnSale, account.IsWeeklyDeal, account.DiscountPercentage, account.ID)
	return err
}

// DeleteAccount removes a listing
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = $1", id)
	return err
}

// ReserveAccount atomically takes an account off sale before payment. The
// conditional update is the reservation primitive: of two concurrent
// checkouts for a single-stock account at most one sees rows affected.
func (s *Store) ReserveAccount(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3 AND stock > 0",
		models.AccountStatusPending, id, models.AccountStatusAvailable)
	if err != nil {
		return false, fmt.Errorf("failed to reserve account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ReleaseAccount puts a reserved account back on sale (compensation)
func (s *Store) ReleaseAccount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.AccountStatusAvailable, id, models.AccountStatusPending)
	return err
}

// FinalizeAccountSale commits a reserved account after payment: decrements
// stock by quantity, records the buyer and marks the listing sold when the
// last copy goes, otherwise back to available.
func (s *Store) FinalizeAccountSale(ctx context.Context, id int64, quantity int, buyerID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET
			stock = stock - $1,
			status = CASE WHEN stock - $1 <= 0 THEN $2 ELSE $3 END,
			buyer_id = $4,
			updated_at = NOW()
		WHERE id = $5 AND status = $6 AND stock >= $1`,
		quantity, models.AccountStatusSold, models.AccountStatusAvailable,
		buyerID, id, models.AccountStatusPending)
	if err != nil {
		return fmt.Errorf("failed to finalize sale: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("account %d not in reserved state or insufficient stock", id)
	}
	return nil
}

// UpdateAccountRating overwrites the denormalized rating cache
func (s *Store) UpdateAccountRating(ctx context.Context, id int64, rating float64, reviews int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET rating = $1, reviews = $2, updated_at = NOW() WHERE id = $3",
		rating, reviews, id)
	return err
}

// ListAccountIDs returns every listing ID, for the bulk rating refresh
func (s *Store) ListAccountIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM accounts ORDER BY id")
	return ids, err
}
