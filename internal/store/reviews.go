package store

import (
	"context"
	"database/sql"

	"hesapduragi/internal/models"
)

// CreateReview creates a new review in the unapproved state. The
// (user_id, account_id) unique index rejects a second review for the same
// account; callers detect it with IsUniqueViolation.
func (s *Store) CreateReview(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (account_id, user_id, order_id, rating, comment, is_anonymous, is_approved)
		VALUES ($1, $2, $3, $4, $5, $6, false)
		RETURNING id, is_approved, created_at, updated_at`

	return s.db.GetContext(ctx, review, query,
		review.AccountID, review.UserID, review.OrderID,
		review.Rating, review.Comment, review.IsAnonymous)
}

// GetReviewByID retrieves a review by ID
func (s *Store) GetReviewByID(ctx context.Context, id int64) (*models.Review, error) {
	var review models.Review
	err := s.db.GetContext(ctx, &review, "SELECT * FROM reviews WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// SetReviewApproval persists a moderation decision and returns the review
func (s *Store) SetReviewApproval(ctx context.Context, id int64, approved bool) (*models.Review, error) {
	var review models.Review
	err := s.db.GetContext(ctx, &review,
		"UPDATE reviews SET is_approved = $1, updated_at = NOW() WHERE id = $2 RETURNING *",
		approved, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ListApprovedReviews retrieves the visible reviews for an account
func (s *Store) ListApprovedReviews(ctx context.Context, accountID int64) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.SelectContext(ctx, &reviews,
		"SELECT * FROM reviews WHERE account_id = $1 AND is_approved = true ORDER BY created_at DESC",
		accountID)
	return reviews, err
}

// GetApprovedReviewStats returns the mean rating and count over the approved
// reviews of an account. Both are zero when no approved review exists.
func (s *Store) GetApprovedReviewStats(ctx context.Context, accountID int64) (float64, int, error) {
	var stats struct {
		Avg   sql.NullFloat64 `db:"avg"`
		Count int             `db:"count"`
	}
	err := s.db.GetContext(ctx, &stats,
		"SELECT AVG(rating) AS avg, COUNT(*) AS count FROM reviews WHERE account_id = $1 AND is_approved = true",
		accountID)
	if err != nil {
		return 0, 0, err
	}
	return stats.Avg.Float64, stats.Count, nil
}
