package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/kolopay/kolopay/internal/catalog/domain"
	"github.com/kolopay/kolopay/internal/config"
	"github.com/kolopay/kolopay/internal/notify"
	obsmetrics "github.com/kolopay/kolopay/internal/observability/metrics"
	"github.com/kolopay/kolopay/internal/order/domain"
	referraldomain "github.com/kolopay/kolopay/internal/referral/domain"
	userdomain "github.com/kolopay/kolopay/internal/user/domain"
	walletdomain "github.com/kolopay/kolopay/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Policy      *config.PolicyHolder
	Repo        domain.Repository
	WalletSvc   walletdomain.Service
	CatalogRepo catalogdomain.Repository
	UserRepo    userdomain.Repository
	ReferralSvc referraldomain.Service `optional:"true"`
	Notifier    notify.Provider        `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	policy      *config.PolicyHolder
	repo        domain.Repository
	walletSvc   walletdomain.Service
	catalogRepo catalogdomain.Repository
	userRepo    userdomain.Repository
	referralSvc referraldomain.Service
	notifier    notify.Provider
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		policy:      p.Policy,
		repo:        p.Repo,
		walletSvc:   p.WalletSvc,
		catalogRepo: p.CatalogRepo,
		userRepo:    p.UserRepo,
		referralSvc: p.ReferralSvc,
		notifier:    p.Notifier,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if req.BuyerID == 0 {
		return domain.Order{}, domain.ErrInvalidBuyer
	}
	if len(req.Items) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}
	if req.ShippingFee < 0 {
		return domain.Order{}, domain.ErrInvalidShipping
	}

	seller, err := s.userRepo.FindByID(ctx, s.db, req.SellerID)
	if err != nil {
		return domain.Order{}, err
	}
	if seller == nil || seller.Role != userdomain.RoleSeller {
		return domain.Order{}, domain.ErrSellerNotFound
	}

	productIDs := make([]snowflake.ID, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.catalogRepo.FindByIDs(ctx, s.db, productIDs)
	if err != nil {
		return domain.Order{}, err
	}
	byID := make(map[snowflake.ID]catalogdomain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:              s.genID.Generate(),
		BuyerID:         req.BuyerID,
		SellerID:        req.SellerID,
		ShippingFee:     req.ShippingFee,
		Status:          domain.StatusCreated,
		DeliveryAddress: req.DeliveryAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var total int64
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return domain.Order{}, domain.ErrProductNotFound
		}
		if product.SellerID != req.SellerID {
			return domain.Order{}, domain.ErrSellerMismatch
		}
		if !product.Active {
			return domain.Order{}, domain.ErrProductInactive
		}
		total += product.Price * int64(line.Quantity)
		items = append(items, domain.OrderItem{
			ID:        s.genID.Generate(),
			OrderID:   order.ID,
			ProductID: product.ID,
			Name:      product.Title,
			Image:     product.Image,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
			CreatedAt: now,
		})
	}
	order.TotalAmount = total + req.ShippingFee
	order.Items = items

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}
		return s.repo.InsertItems(ctx, tx, items)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", order.BuyerID.String()),
		zap.String("seller_id", order.SellerID.String()),
		zap.Int64("total_amount", order.TotalAmount),
	)
	return order, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	items, err := s.repo.ListItems(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return *order, nil
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID snowflake.ID, limit int) ([]domain.Order, error) {
	if buyerID == 0 {
		return nil, domain.ErrInvalidBuyer
	}
	return s.repo.ListByBuyer(ctx, s.db, buyerID, limit)
}

func (s *Service) AttachPayinTx(ctx context.Context, tx *gorm.DB, orderID, payinID snowflake.ID) (domain.Order, error) {
	order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	switch order.Status {
	case domain.StatusCreated, domain.StatusPaymentPending:
	default:
		return domain.Order{}, domain.ErrPaymentNotEligible
	}

	order.Status = domain.StatusPaymentPending
	order.PayinTransactionID = &payinID
	order.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, tx, order); err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) LockEscrowTx(ctx context.Context, tx *gorm.DB, orderID, payinID snowflake.ID) (domain.Order, error) {
	order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if order.EscrowLocked {
		return *order, nil
	}
	switch order.Status {
	case domain.StatusCreated, domain.StatusPaymentPending:
	default:
		return domain.Order{}, domain.ErrPaymentNotEligible
	}

	fee := s.policy.Current().PlatformFeeBps
	net := order.TotalAmount * (10000 - fee) / 10000

	if _, err := s.walletSvc.ApplyTx(ctx, tx, walletdomain.Movement{
		UserID:        order.SellerID,
		Kind:          walletdomain.MovementCreditLocked,
		Amount:        net,
		ReferenceID:   payinID.String(),
		ReferenceType: walletdomain.ReferenceTypePayin,
		Description:   fmt.Sprintf("escrow lock for order %s", order.ID),
	}); err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	order.Status = domain.StatusPaid
	order.NetAmount = net
	order.EscrowLocked = true
	order.EscrowLockedAt = &now
	order.PayinTransactionID = &payinID
	order.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, order); err != nil {
		return domain.Order{}, err
	}

	obsmetrics.Default().IncEscrowMovement("lock")
	s.log.Info("escrow locked",
		zap.String("order_id", order.ID.String()),
		zap.Int64("net_amount", net),
	)
	return *order, nil
}

func (s *Service) ConfirmByClient(ctx context.Context, orderID, clientID snowflake.ID) (domain.Order, error) {
	var confirmed domain.Order
	var releasedNow bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if order.BuyerID != clientID {
			return domain.ErrNotOwner
		}
		if order.ConfirmedByClient {
			confirmed = *order
			return nil
		}

		eligible := order.Status == domain.StatusDelivered ||
			(!s.policy.Current().RequireDeliveryBeforeConfirm && order.Status.EscrowHolds())
		if !eligible || !order.EscrowLocked {
			return domain.ErrPaymentNotEligible
		}

		if _, err := s.walletSvc.ApplyTx(ctx, tx, walletdomain.Movement{
			UserID:        order.SellerID,
			Kind:          walletdomain.MovementRelease,
			Amount:        order.NetAmount,
			ReferenceID:   order.ID.String(),
			ReferenceType: walletdomain.ReferenceTypeOrder,
			Description:   "escrow release on client confirmation",
		}); err != nil {
			return err
		}

		now := time.Now().UTC()
		order.Status = domain.StatusCompleted
		order.EscrowLocked = false
		order.EscrowReleasedAt = &now
		order.ConfirmedByClient = true
		order.ConfirmedAt = &now
		order.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}
		confirmed = *order
		releasedNow = true
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if releasedNow {
		obsmetrics.Default().IncEscrowMovement("release")
		s.afterCompletion(ctx, confirmed)
	}
	return confirmed, nil
}

// afterCompletion runs the best-effort follow-ups. The release has committed;
// failures here are logged, never unwound.
func (s *Service) afterCompletion(ctx context.Context, order domain.Order) {
	if s.referralSvc != nil {
		if err := s.referralSvc.OnOrderCompleted(ctx, referraldomain.CompletedOrder{
			OrderID:   order.ID,
			SellerID:  order.SellerID,
			NetAmount: order.NetAmount,
		}); err != nil {
			s.log.Warn("referral commission hook failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}

	if s.notifier != nil {
		seller, err := s.userRepo.FindByID(ctx, s.db, order.SellerID)
		if err != nil || seller == nil || seller.Email == "" {
			return
		}
		subject := "Funds released"
		body := fmt.Sprintf("<p>Order %s was confirmed. %d XOF is now available in your wallet.</p>", order.ID, order.NetAmount)
		if err := s.notifier.Send(ctx, []string{seller.Email}, subject, body); err != nil {
			s.log.Warn("seller notification failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) MarkAssigned(ctx context.Context, orderID snowflake.ID) (domain.Order, error) {
	return s.transition(ctx, orderID, domain.StatusPaid, domain.StatusAssigned)
}

func (s *Service) MarkShipped(ctx context.Context, orderID snowflake.ID) (domain.Order, error) {
	return s.transition(ctx, orderID, domain.StatusAssigned, domain.StatusShipped)
}

func (s *Service) MarkDelivered(ctx context.Context, orderID snowflake.ID) (domain.Order, error) {
	return s.transition(ctx, orderID, domain.StatusShipped, domain.StatusDelivered)
}

func (s *Service) transition(ctx context.Context, orderID snowflake.ID, from, to domain.Status) (domain.Order, error) {
	var updated domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if order.Status == to {
			updated = *order
			return nil
		}
		if order.Status != from {
			return domain.ErrInvalidTransition
		}
		order.Status = to
		order.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}
		updated = *order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, orderID snowflake.ID, reason string) (domain.Order, error) {
	var cancelled domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if order.Status == domain.StatusCancelled {
			cancelled = *order
			return nil
		}
		if order.Status == domain.StatusCompleted {
			return domain.ErrInvalidTransition
		}

		if order.EscrowLocked {
			if _, err := s.walletSvc.ApplyTx(ctx, tx, walletdomain.Movement{
				UserID:        order.SellerID,
				Kind:          walletdomain.MovementDebitLocked,
				Amount:        order.NetAmount,
				ReferenceID:   fmt.Sprintf("%s-cancel", order.ID),
				ReferenceType: walletdomain.ReferenceTypeOrder,
				Description:   "escrow reversal on cancellation",
			}); err != nil {
				return err
			}
			obsmetrics.Default().IncEscrowMovement("reversal")
		}

		order.Status = domain.StatusCancelled
		order.EscrowLocked = false
		order.CancelReason = reason
		order.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}
		cancelled = *order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return cancelled, nil
}
