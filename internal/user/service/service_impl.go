package service

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolopay/kolopay/internal/user/domain"
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
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.User{}, domain.ErrInvalidName
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return domain.User{}, domain.ErrInvalidPhone
	}
	if !req.Role.Valid() {
		return domain.User{}, domain.ErrInvalidRole
	}

	code, err := newReferralCode()
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           s.genID.Generate(),
		Name:         name,
		Phone:        phone,
		Email:        strings.TrimSpace(req.Email),
		Role:         req.Role,
		ReferralCode: code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	inserted, err := s.repo.Insert(ctx, s.db, &user)
	if err != nil {
		return domain.User{}, err
	}
	if !inserted {
		return domain.User{}, domain.ErrPhoneTaken
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
	)
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.User, error) {
	if id == 0 {
		return domain.User{}, domain.ErrInvalidID
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) GetByReferralCode(ctx context.Context, code string) (domain.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.User{}, domain.ErrReferralCodeNotFound
	}
	user, err := s.repo.FindByReferralCode(ctx, s.db, code)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrReferralCodeNotFound
	}
	return *user, nil
}

// Ambiguous glyphs are left out so codes survive being read over the phone.
const referralAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func newReferralCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = referralAlphabet[int(b)%len(referralAlphabet)]
	}
	return string(out), nil
}
