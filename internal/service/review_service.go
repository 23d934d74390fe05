package service

import (
	"context"
	"math"
	"strconv"

	"hesapduragi/internal/apperrors"
	"hesapduragi/internal/models"
	"hesapduragi/internal/store"
	"hesapduragi/internal/util"

	"go.uber.org/zap"
)

// ReviewStore covers the persistence the review workflow needs
type ReviewStore interface {
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewByID(ctx context.Context, id int64) (*models.Review, error)
	SetReviewApproval(ctx context.Context, id int64, approved bool) (*models.Review, error)
	ListApprovedReviews(ctx context.Context, accountID int64) ([]models.Review, error)
	GetApprovedReviewStats(ctx context.Context, accountID int64) (float64, int, error)
	UpdateAccountRating(ctx context.Context, id int64, rating float64, reviews int) error
	ListAccountIDs(ctx context.Context) ([]int64, error)
}

// ReviewService handles review submission, moderation and the derived
// rating cache on account listings
type ReviewService struct {
	store  ReviewStore
	logger *zap.Logger
}

// NewReviewService creates a new review service
func NewReviewService(store ReviewStore) *ReviewService {
	return &ReviewService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// SubmitReviewRequest is a buyer review submission
type SubmitReviewRequest struct {
	AccountID   int64  `json:"account_id" binding:"required"`
	OrderID     int64  `json:"order_id" binding:"required"`
	Rating      int    `json:"rating" binding:"required"`
	Comment     string `json:"comment"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// Submit creates a review in the unapproved state. The caller must own an
// order for the reviewed account, and may review each account only once.
func (s *ReviewService) Submit(ctx context.Context, userID int64, req *SubmitReviewRequest) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Submit")
	defer span.End()

	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperrors.Validation("Puan 1 ile 5 arasında olmalıdır")
	}

	account, err := s.store.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if account == nil {
		return nil, apperrors.NotFound("Ürün bulunamadı")
	}

	order, err := s.store.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if order == nil || order.AccountID != req.AccountID || order.BuyerID != strconv.FormatInt(userID, 10) {
		return nil, apperrors.Validation("Bu ürün için siparişiniz bulunamadı")
	}

	review := &models.Review{
		AccountID:   req.AccountID,
		UserID:      userID,
		OrderID:     req.OrderID,
		Rating:      req.Rating,
		Comment:     req.Comment,
		IsAnonymous: req.IsAnonymous,
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("Bu ürünü zaten değerlendirdiniz")
		}
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("Review submitted, pending moderation",
		zap.Int64("review_id", review.ID),
		zap.Int64("account_id", review.AccountID))
	return review, nil
}

// Moderate persists an admin approval decision and refreshes the account's
// rating cache. A recompute failure is logged and swallowed: the cache is
// advisory display data, the moderation itself must not fail because of it.
func (s *ReviewService) Moderate(ctx context.Context, reviewID int64, approved bool) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Moderate")
	defer span.End()

	review, err := s.store.SetReviewApproval(ctx, reviewID, approved)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if review == nil {
		return nil, apperrors.NotFound("Değerlendirme bulunamadı")
	}

	if err := s.RecomputeRating(ctx, review.AccountID); err != nil {
		s.logger.Error("Failed to recompute rating after moderation",
			zap.Int64("account_id", review.AccountID),
			zap.Error(err))
	}

	return review, nil
}

// RecomputeRating rewrites the denormalized rating cache of an account from
// the approved review set. Idempotent: the write-back is unconditional and
// an empty set resets the cache to zero.
func (s *ReviewService) RecomputeRating(ctx context.Context, accountID int64) error {
	ctx, span := util.StartSpan(ctx, "ReviewService.RecomputeRating")
	defer span.End()

	avg, count, err := s.store.GetApprovedReviewStats(ctx, accountID)
	if err != nil {
		return err
	}

	rating := 0.0
	if count > 0 {
		rating = math.Round(avg*10) / 10
	}

	if err := s.store.UpdateAccountRating(ctx, accountID, rating, count); err != nil {
		return err
	}

	util.RatingsRecomputedTotal.Inc()
	return nil
}

// RecomputeAllRatings refreshes the cache of every listing; per-account
// failures are logged and skipped. Returns the number recomputed.
func (s *ReviewService) RecomputeAllRatings(ctx context.Context) (int, error) {
	ids, err := s.store.ListAccountIDs(ctx)
	if err != nil {
		return 0, apperrors.Internal(err)
	}

	recomputed := 0
	for _, id := range ids {
		if err := s.RecomputeRating(ctx, id); err != nil {
			s.logger.Error("Failed to recompute rating",
				zap.Int64("account_id", id),
				zap.Error(err))
			continue
		}
		recomputed++
	}

	s.logger.Info("Bulk rating refresh completed",
		zap.Int("accounts", len(ids)),
		zap.Int("recomputed", recomputed))
	return recomputed, nil
}

// ListApproved returns the visible reviews for an account
func (s *ReviewService) ListApproved(ctx context.Context, accountID int64) ([]models.Review, error) {
	reviews, err := s.store.ListApprovedReviews(ctx, accountID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return reviews, nil
}
