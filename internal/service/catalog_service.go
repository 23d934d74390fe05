package service

import (
	"context"

	"hesapduragi/internal/apperrors"
	"hesapduragi/internal/models"
	"hesapduragi/internal/store"
	"hesapduragi/internal/util"

	"go.uber.org/zap"
)

// CatalogStore covers listing persistence for the catalog surface
type CatalogStore interface {
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	ListAccounts(ctx context.Context, filter store.AccountFilter) ([]models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	UpdateAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, id int64) error
}

// CatalogMirror keeps the Redis availability mirror in step with admin edits
type CatalogMirror interface {
	InitAccount(ctx context.Context, accountID int64, status string, stock int) error
	DropAccount(ctx context.Context, accountID int64) error
}

// CatalogService handles listing reads and the admin CRUD surface
type CatalogService struct {
	store  CatalogStore
	mirror CatalogMirror
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service. mirror may be nil.
func NewCatalogService(store CatalogStore, mirror CatalogMirror) *CatalogService {
	return &CatalogService{
		store:  store,
		mirror: mirror,
		logger: util.GetLogger(),
	}
}

// Get retrieves a single listing
func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Account, error) {
	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if account == nil {
		return nil, apperrors.NotFound("Ürün bulunamadı")
	}
	return account, nil
}

// List retrieves listings matching the filter
func (s *CatalogService) List(ctx context.Context, filter store.AccountFilter) ([]models.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return accounts, nil
}

// CreateAccountRequest is the admin listing creation payload
type CreateAccountRequest struct {
	Title              string `json:"title" binding:"required"`
	Game               string `json:"game" binding:"required"`
	Category           string `json:"category"`
	Description        string `json:"description"`
	Price              int64  `json:"price" binding:"required"`
	Stock              int    `json:"stock"`
	SellerID           int64  `json:"seller_id" binding:"required"`
	IsFeatured         bool   `json:"is_featured"`
	IsOnSale           bool   `json:"is_on_sale"`
	IsWeeklyDeal       bool   `json:"is_weekly_deal"`
	DiscountPercentage int    `json:"discount_percentage"`
}

// Create adds a listing; it goes on sale only when stocked
func (s *CatalogService) Create(ctx context.Context, req *CreateAccountRequest) (*models.Account, error) {
	if req.Price <= 0 {
		return nil, apperrors.Validation("Fiyat sıfırdan büyük olmalıdır")
	}
	if req.Stock < 0 {
		return nil, apperrors.Validation("Stok negatif olamaz")
	}

	status := models.AccountStatusAvailable
	if req.Stock == 0 {
		status = models.AccountStatusSold
	}

	account := &models.Account{
		Title:              req.Title,
		Game:               req.Game,
		Category:           req.Category,
		Description:        req.Description,
		Price:              req.Price,
		Stock:              req.Stock,
		Status:             status,
		SellerID:           req.SellerID,
		IsFeatured:         req.IsFeatured,
		IsOnSale:           req.IsOnSale,
		IsWeeklyDeal:       req.IsWeeklyDeal,
		DiscountPercentage: req.DiscountPercentage,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.syncMirror(ctx, account)
	return account, nil
}

// Update rewrites the admin-editable fields of a listing
func (s *CatalogService) Update(ctx context.Context, id int64, req *CreateAccountRequest) (*models.Account, error) {
	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if account == nil {
		return nil, apperrors.NotFound("Ürün bulunamadı")
	}

	account.Title = req.Title
	account.Game = req.Game
	account.Category = req.Category
	account.Description = req.Description
	account.Price = req.Price
	account.Stock = req.Stock
	account.IsFeatured = req.IsFeatured
	account.IsOnSale = req.IsOnSale
	account.IsWeeklyDeal = req.IsWeeklyDeal
	account.DiscountPercentage = req.DiscountPercentage

	// Admin edits never override an in-flight reservation
	if account.Status != models.AccountStatusPending {
		if req.Stock > 0 && account.Status == models.AccountStatusSold {
			account.Status = models.AccountStatusAvailable
		}
		if req.Stock == 0 && account.Status == models.AccountStatusAvailable {
			account.Status = models.AccountStatusSold
		}
	}

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.syncMirror(ctx, account)
	return account, nil
}

// Delete removes a listing
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return apperrors.Internal(err)
	}
	if account == nil {
		return apperrors.NotFound("Ürün bulunamadı")
	}

	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return apperrors.Internal(err)
	}

	if s.mirror != nil {
		if err := s.mirror.DropAccount(ctx, id); err != nil {
			s.logger.Error("Failed to drop account from mirror",
				zap.Int64("account_id", id),
				zap.Error(err))
		}
	}
	return nil
}

// SyncMirror seeds the availability mirror from the catalog, at startup
func (s *CatalogService) SyncMirror(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}

	accounts, err := s.store.ListAccounts(ctx, store.AccountFilter{})
	if err != nil {
		return err
	}
	for i := range accounts {
		s.syncMirror(ctx, &accounts[i])
	}
	s.logger.Info("Availability mirror synced", zap.Int("accounts", len(accounts)))
	return nil
}

func (s *CatalogService) syncMirror(ctx context.Context, account *models.Account) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.InitAccount(ctx, account.ID, account.Status, account.Stock); err != nil {
		s.logger.Error("Failed to sync account to mirror",
			zap.Int64("account_id", account.ID),
			zap.Error(err))
	}
}
