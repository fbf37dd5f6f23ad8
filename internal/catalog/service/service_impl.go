package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error) {
	if req.SellerID == 0 {
		return domain.Product{}, domain.ErrInvalidSeller
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Product{}, domain.ErrInvalidTitle
	}
	if req.Price <= 0 {
		return domain.Product{}, domain.ErrInvalidPrice
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:          s.genID.Generate(),
		SellerID:    req.SellerID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Image:       strings.TrimSpace(req.Image),
		Price:       req.Price,
		Stock:       req.Stock,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Product, error) {
	if id == 0 {
		return domain.Product{}, domain.ErrInvalidID
	}
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Product{}, err
	}
	if product == nil {
		return domain.Product{}, domain.ErrNotFound
	}
	return *product, nil
}

func (s *Service) ListBySeller(ctx context.Context, sellerID snowflake.ID, limit int) ([]domain.Product, error) {
	if sellerID == 0 {
		return nil, domain.ErrInvalidSeller
	}
	return s.repo.ListBySeller(ctx, s.db, sellerID, limit)
}
