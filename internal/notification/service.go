package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/models"
	"yearn-vaults/internal/repository"
)

const (
	EventCreated = "notification.created"
	EventUpdated = "notification.updated"
)

var (
	ErrInvalidStatus = errors.New("invalid status transition")
	ErrInvalidInput  = errors.New("invalid notification")
)

// Publisher pushes events to connected clients.
type Publisher interface {
	Publish(event string, data interface{})
}

type CreateInput struct {
	Owner      string                 `json:"owner"`
	ChainID    uint64                 `json:"chainId"`
	Action     string                 `json:"action"`
	Solver     string                 `json:"solver"`
	Vault      string                 `json:"vault"`
	FromToken  string                 `json:"fromToken"`
	FromAmount string                 `json:"fromAmount"`
	ToToken    string                 `json:"toToken"`
	ToAmount   string                 `json:"toAmount"`
	TxHash     string                 `json:"txHash"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type UpdateInput struct {
	Status      string `json:"status"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Error       string `json:"error"`
}

var actions = map[string]bool{
	"deposit":  true,
	"withdraw": true,
	"migrate":  true,
	"approve":  true,
	"stake":    true,
	"unstake":  true,
	"claim":    true,
}

type Service struct {
	repo      repository.NotificationRepository
	publisher Publisher
	log       *logger.Logger
}

func NewService(repo repository.NotificationRepository, publisher Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, publisher: publisher, log: log}
}

// Create records a pending transaction for a wallet.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(input.Owner) {
		return nil, fmt.Errorf("%w: owner must be an address", ErrInvalidInput)
	}
	if input.ChainID == 0 {
		return nil, fmt.Errorf("%w: chainId is required", ErrInvalidInput)
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if !actions[action] {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, input.Action)
	}

	n := &models.Notification{
		Owner:      strings.ToLower(input.Owner),
		ChainID:    input.ChainID,
		Action:     action,
		Solver:     input.Solver,
		Status:     models.NotificationStatusPending,
		Vault:      strings.ToLower(input.Vault),
		FromToken:  strings.ToLower(input.FromToken),
		FromAmount: input.FromAmount,
		ToToken:    strings.ToLower(input.ToToken),
		ToAmount:   input.ToAmount,
		TxHash:     input.TxHash,
		Metadata:   models.JSONMap(input.Metadata),
	}

	if err := s.repo.Create(n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.log.Debug("🔔 Notification %s created for %s (%s)", n.ID, n.Owner, n.Action)
	s.publish(EventCreated, n)
	return n, nil
}

// UpdateStatus settles a pending notification. Only pending → success and
// pending → error are allowed.
func (s *Service) UpdateStatus(ctx context.Context, id string, input UpdateInput) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	status := strings.ToLower(strings.TrimSpace(input.Status))
	if !n.IsPending() {
		return nil, fmt.Errorf("%w: notification is already %s", ErrInvalidStatus, n.Status)
	}

	txHash := input.TxHash
	if txHash == "" {
		txHash = n.TxHash
	}

	switch status {
	case models.NotificationStatusSuccess:
		n.MarkAsSuccess(txHash, input.BlockNumber)
	case models.NotificationStatusError:
		n.MarkAsError(txHash, input.Error)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, input.Status)
	}

	if err := s.repo.Update(n); err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}

	s.log.Debug("🔔 Notification %s is now %s", n.ID, n.Status)
	s.publish(EventUpdated, n)
	return n, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id)
}

func (s *Service) List(ctx context.Context, owner string, limit int) ([]*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("%w: owner must be an address", ErrInvalidInput)
	}
	return s.repo.ListByOwner(owner, limit)
}

func (s *Service) publish(event string, n *models.Notification) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event, n)
}
