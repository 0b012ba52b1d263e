package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/giridharan-7/my-paytm/internal/interfaces"
	"github.com/giridharan-7/my-paytm/internal/models"
	"github.com/giridharan-7/my-paytm/internal/models/events"
)

const (
	// maxDescriptionLen bounds the free-text description on a transfer.
	maxDescriptionLen = 255

	// maxCommitRetries bounds internal retries of a conflicted commit
	// before the attempt surfaces as ErrTransferFailed.
	maxCommitRetries = 3

	// TopicTransferCompleted is the event topic for committed transfers.
	TopicTransferCompleted = "transfer_completed"
)

// Service is the transfer engine plus the read-only query surface. All
// balance mutations in the system go through Transfer and OpenAccount.
type Service struct {
	store   interfaces.LedgerStore
	users   interfaces.UserStore
	events  interfaces.EventPublisher
	log     *zap.Logger
	ceiling decimal.Decimal
	initial decimal.Decimal
}

// Config carries the business parameters of the engine. Ceiling rejects
// absurdly large transfers; InitialBalance seeds newly opened accounts.
type Config struct {
	Ceiling        decimal.Decimal
	InitialBalance decimal.Decimal
}

func NewService(store interfaces.LedgerStore, users interfaces.UserStore, pub interfaces.EventPublisher, cfg Config, log *zap.Logger) *Service {
	return &Service{
		store:   store,
		users:   users,
		events:  pub,
		log:     log,
		ceiling: cfg.Ceiling,
		initial: cfg.InitialBalance,
	}
}

// TransferRequest is one transfer attempt. IdempotencyKey is optional; when
// set, a repeated key replays the original record instead of re-applying.
type TransferRequest struct {
	FromAccountID  string
	ToAccountID    string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// TransferResult is the committed record plus the recipient's display name
// for caller-side confirmation.
type TransferResult struct {
	Record        models.TransactionRecord
	RecipientName string
	Replayed      bool
}

// Transfer executes one transfer as an all-or-nothing unit of work.
//
// Validation happens before any I/O; existence checks before any mutation.
// The debit, the credit and the log append are staged on a LedgerTx and
// committed as one atomic step. On any failure the unit of work rolls back
// and neither balance changes.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := validate(req, s.ceiling); err != nil {
		return nil, err
	}

	// Existence checks. Accounts are never deleted, so a hit here is stable.
	if _, err := s.store.GetBalance(ctx, req.FromAccountID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetBalance(ctx, req.ToAccountID); err != nil {
		return nil, err
	}

	var commitErr error
	for attempt := 0; attempt <= maxCommitRetries; attempt++ {
		if req.IdempotencyKey != "" {
			rec, err := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return nil, fmt.Errorf("%w: idempotency lookup: %v", ErrTransferFailed, err)
			}
			if rec != nil {
				s.log.Info("transfer replayed",
					zap.String("transaction_id", rec.ID),
					zap.String("idempotency_key", req.IdempotencyKey))
				return s.result(ctx, *rec, true), nil
			}
		}

		rec := models.TransactionRecord{
			ID:             uuid.NewString(),
			FromAccountID:  req.FromAccountID,
			ToAccountID:    req.ToAccountID,
			Amount:         req.Amount,
			Description:    req.Description,
			Status:         models.StatusCompleted,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		}

		res, err := s.attempt(ctx, req, rec)
		if err == nil {
			s.publish(ctx, rec)
			s.log.Info("transfer completed",
				zap.String("transaction_id", rec.ID),
				zap.String("from", rec.FromAccountID),
				zap.String("to", rec.ToAccountID),
				zap.String("amount", rec.Amount.String()))
			return res, nil
		}
		if isBusinessErr(err) {
			s.log.Warn("transfer rejected",
				zap.String("from", req.FromAccountID),
				zap.String("to", req.ToAccountID),
				zap.Error(err))
			return nil, err
		}
		if !errors.Is(err, ErrTxConflict) {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		commitErr = err
	}

	s.log.Error("transfer gave up after conflicts",
		zap.String("from", req.FromAccountID),
		zap.String("to", req.ToAccountID),
		zap.Error(commitErr))
	return nil, fmt.Errorf("%w: %v", ErrTransferFailed, commitErr)
}

// attempt runs a single unit of work. The debit is staged before the
// credit, so a doomed debit never produces an orphan credit.
func (s *Service) attempt(ctx context.Context, req TransferRequest, rec models.TransactionRecord) (*TransferResult, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrTransferFailed, err)
	}
	defer tx.Rollback()

	if err := tx.ApplyDelta(ctx, req.FromAccountID, req.Amount.Neg()); err != nil {
		return nil, err
	}
	if err := tx.ApplyDelta(ctx, req.ToAccountID, req.Amount); err != nil {
		return nil, err
	}
	if err := tx.AppendRecord(ctx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.result(ctx, rec, false), nil
}

// OpenAccount creates the wallet for a new user, seeded with the
// configured initial balance. This is the only way money enters the ledger.
func (s *Service) OpenAccount(ctx context.Context, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: empty account id", ErrInvalidRequest)
	}
	if s.initial.IsNegative() {
		return nil, fmt.Errorf("%w: negative initial balance", ErrInvalidRequest)
	}
	if err := s.store.CreateAccount(ctx, accountID, s.initial); err != nil {
		return nil, err
	}
	s.log.Info("account opened",
		zap.String("account_id", accountID),
		zap.String("initial_balance", s.initial.String()))
	now := time.Now().UTC()
	return &models.Account{ID: accountID, Balance: s.initial, CreatedAt: now, UpdatedAt: now}, nil
}

// Balance is a read-only projection; two calls with no intervening
// transfer return the same value.
func (s *Service) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.store.GetBalance(ctx, accountID)
}

// Statement returns one newest-first page of the account's records plus
// the total count for page computation. Page numbering starts at 1.
func (s *Service) Statement(ctx context.Context, accountID string, page, pageSize int) ([]models.TransactionRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	if _, err := s.store.GetBalance(ctx, accountID); err != nil {
		return nil, 0, err
	}
	return s.store.ListForAccount(ctx, accountID, page, pageSize)
}

func (s *Service) result(ctx context.Context, rec models.TransactionRecord, replayed bool) *TransferResult {
	res := &TransferResult{Record: rec, Replayed: replayed}
	if u, err := s.users.UserByID(ctx, rec.ToAccountID); err == nil && u != nil {
		res.RecipientName = u.FirstName + " " + u.LastName
	}
	return res
}

// publish is best-effort: the transfer is already committed, a publish
// failure must not fail the call.
func (s *Service) publish(ctx context.Context, rec models.TransactionRecord) {
	ev := events.TransferCompleted{
		TransactionID: rec.ID,
		FromAccountID: rec.FromAccountID,
		ToAccountID:   rec.ToAccountID,
		Amount:        rec.Amount,
		OccurredAt:    rec.CreatedAt,
	}
	if err := s.events.Publish(ctx, TopicTransferCompleted, ev); err != nil {
		s.log.Warn("event publish failed",
			zap.String("transaction_id", rec.ID),
			zap.Error(err))
	}
}

func validate(req TransferRequest, ceiling decimal.Decimal) error {
	if req.FromAccountID == "" || req.ToAccountID == "" {
		return fmt.Errorf("%w: missing account id", ErrInvalidRequest)
	}
	if req.FromAccountID == req.ToAccountID {
		return ErrSelfTransfer
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if req.Amount.GreaterThan(ceiling) {
		return fmt.Errorf("%w: amount exceeds ceiling %s", ErrInvalidRequest, ceiling)
	}
	if len(req.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description too long", ErrInvalidRequest)
	}
	return nil
}

func isBusinessErr(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrSelfTransfer)
}
