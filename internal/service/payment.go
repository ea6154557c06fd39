package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"velora-storefront/internal/client"
	"velora-storefront/internal/dto"
	"velora-storefront/internal/model"
	"velora-storefront/internal/repository"
)

type PaymentService interface {
	// CreateSession returns the hosted payment page URL for an order. It is
	// idempotent per order: while a session is still initiated or pending,
	// repeated calls return that session's URL instead of opening a new one.
	CreateSession(ctx context.Context, userID string, req *dto.CreatePaymentRequest) (string, error)
	// HandleReturn reconciles the provider's browser-redirect callback into
	// a payment-state transition, applying side effects at most once no
	// matter how many times the same callback is delivered.
	HandleReturn(ctx context.Context, params url.Values) (*dto.PaymentReturnResponse, error)
	// ExpireStale closes sessions that outlived the provider session TTL,
	// consulting the provider first for ones it may have settled.
	ExpireStale(ctx context.Context, olderThan time.Time) (int, error)
}

type paymentServiceImpl struct {
	db          *gorm.DB
	gateway     client.GatewayClient
	orderRepo   repository.OrderRepository
	sessionRepo repository.PaymentSessionRepository
	eventRepo   repository.PaymentEventRepository
}

func NewPaymentService(
	db *gorm.DB,
	gateway client.GatewayClient,
	orderRepo repository.OrderRepository,
	sessionRepo repository.PaymentSessionRepository,
	eventRepo repository.PaymentEventRepository,
) PaymentService {
	return &paymentServiceImpl{
		db:          db,
		gateway:     gateway,
		orderRepo:   orderRepo,
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
	}
}

func (s *paymentServiceImpl) CreateSession(ctx context.Context, userID string, req *dto.CreatePaymentRequest) (string, error) {
	order, err := s.orderRepo.FindByIDForUser(ctx, userID, req.OrderID)
	if err != nil {
		return "", err
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return "", ErrOrderAlreadyPaid
	}
	if !req.Amount.IsZero() && !req.Amount.Equal(order.FinalAmount) {
		return "", ErrPaymentIntegrity
	}

	description := req.Description
	if description == "" {
		description = "Payment for order " + order.OrderNumber
	}

	var session *model.PaymentSession
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.sessionRepo.FindActiveByOrder(ctx, tx, order.ID)
		if err == nil {
			session = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		session = &model.PaymentSession{
			OrderID:   order.ID,
			TxnRef:    uuid.NewString(),
			Amount:    order.FinalAmount,
			BankCode:  req.BankCode,
			Status:    model.PaymentSessionInitiated,
			Active:    model.SessionActive(),
			CreatedAt: time.Now(),
		}
		return s.sessionRepo.Create(ctx, tx, session)
	})
	if err != nil {
		// the (order_id, active) unique index rejects the second of two
		// concurrent inserts; adopt the winner's session instead of failing
		existing, findErr := s.sessionRepo.FindActiveByOrder(ctx, nil, order.ID)
		if findErr != nil {
			return "", fmt.Errorf("ensure payment session: %w", err)
		}
		session = existing
	}

	return s.gateway.BuildPayURL(session, description), nil
}

func (s *paymentServiceImpl) HandleReturn(ctx context.Context, params url.Values) (*dto.PaymentReturnResponse, error) {
	rp, err := s.gateway.VerifyReturn(params)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindByTxnRef(ctx, rp.TxnRef)
	if err != nil {
		return nil, err
	}

	amountMismatch := !rp.Amount.Equal(session.Amount)
	target := model.PaymentSessionConfirmed
	if !rp.Success() || amountMismatch {
		target = model.PaymentSessionFailed
	}

	eventID := rp.TxnRef + ":" + rp.ResultCode
	processed, err := s.eventRepo.Exists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("check payment event: %w", err)
	}

	// Duplicate delivery, or a callback for an already-terminal session:
	// accepted, but no side effects are re-applied.
	if processed || session.Status.IsTerminal() {
		return s.recordedResult(ctx, session, amountMismatch)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.sessionRepo.Transition(ctx, tx, session.TxnRef, target)
		if err != nil {
			return err
		}
		if rows == 0 {
			// lost the guard to a concurrent delivery; treat as duplicate
			return nil
		}
		session.Status = target

		switch target {
		case model.PaymentSessionConfirmed:
			if err := s.orderRepo.MarkPaid(ctx, tx, session.OrderID); err != nil {
				return fmt.Errorf("mark order paid: %w", err)
			}
			if _, err := s.orderRepo.TransitionStatus(ctx, tx, session.OrderID,
				[]model.OrderStatus{model.OrderStatusPending}, model.OrderStatusConfirmed); err != nil {
				return fmt.Errorf("confirm order: %w", err)
			}
		case model.PaymentSessionFailed:
			if err := s.orderRepo.MarkPaymentFailed(ctx, tx, session.OrderID); err != nil {
				return fmt.Errorf("mark payment failed: %w", err)
			}
		}

		return s.eventRepo.MarkProcessed(ctx, tx, &model.PaymentEvent{
			EventID:    eventID,
			TxnRef:     rp.TxnRef,
			ResultCode: rp.ResultCode,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("txn_ref", rp.TxnRef).
		Str("result_code", rp.ResultCode).
		Str("session_status", session.Status.String()).
		Bool("amount_mismatch", amountMismatch).
		Msg("payment return reconciled")

	return s.recordedResult(ctx, session, amountMismatch)
}

// recordedResult reports the already-recorded outcome for a session. The
// amount-mismatch error is recomputed from the callback itself so duplicate
// deliveries return the same result as the first one.
func (s *paymentServiceImpl) recordedResult(ctx context.Context, session *model.PaymentSession, amountMismatch bool) (*dto.PaymentReturnResponse, error) {
	current, err := s.sessionRepo.FindByTxnRef(ctx, session.TxnRef)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.FindByID(ctx, current.OrderID)
	if err != nil {
		return nil, err
	}

	resp := &dto.PaymentReturnResponse{
		OrderID:       order.ID,
		TxnRef:        current.TxnRef,
		SessionStatus: current.Status.String(),
		OrderStatus:   order.Status.String(),
	}
	if amountMismatch {
		return resp, ErrPaymentIntegrity
	}
	return resp, nil
}

func (s *paymentServiceImpl) ExpireStale(ctx context.Context, olderThan time.Time) (int, error) {
	sessions, err := s.sessionRepo.ListStale(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	expired := 0
	for i := range sessions {
		session := &sessions[i]

		status, err := s.gateway.QueryTransaction(ctx, session.TxnRef)
		if err != nil {
			// provider unreachable or breaker open: leave the session for
			// the next sweep rather than guessing
			log.Warn().Err(err).Str("txn_ref", session.TxnRef).Msg("gateway query failed")
			continue
		}
		if status.Settled {
			// the provider settled it but the return redirect never reached
			// us; confirm through the same guarded path
			if err := s.confirmSettled(ctx, session); err != nil {
				log.Error().Err(err).Str("txn_ref", session.TxnRef).Msg("confirm settled session")
			}
			continue
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			rows, err := s.sessionRepo.Transition(ctx, tx, session.TxnRef, model.PaymentSessionExpired)
			if err != nil {
				return err
			}
			if rows > 0 {
				expired++
			}
			return nil
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}

func (s *paymentServiceImpl) confirmSettled(ctx context.Context, session *model.PaymentSession) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.sessionRepo.Transition(ctx, tx, session.TxnRef, model.PaymentSessionConfirmed)
		if err != nil || rows == 0 {
			return err
		}
		if err := s.orderRepo.MarkPaid(ctx, tx, session.OrderID); err != nil {
			return err
		}
		_, err = s.orderRepo.TransitionStatus(ctx, tx, session.OrderID,
			[]model.OrderStatus{model.OrderStatusPending}, model.OrderStatusConfirmed)
		return err
	})
}
