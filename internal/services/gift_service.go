package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"giftregistry/internal/amqp"
	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
	"giftregistry/internal/store"
)

var (
	// ErrForbidden is returned when a user edits or deletes a gift they did not add.
	ErrForbidden = errors.New("only the user who added a gift can change it")
	// ErrUnknownSuggestion is returned when accepting a suggestion that does not exist.
	ErrUnknownSuggestion = errors.New("unknown suggestion")
	// ErrNotPooled is returned when contributing to an Individual gift.
	ErrNotPooled = errors.New("only group and cash gifts take contributions")
)

// EventPublisher announces gift changes to other processes.
type EventPublisher interface {
	PublishGiftChanged(ctx context.Context, id string, op amqp.Op) error
}

// GiftService turns raw form input into store mutations. Every successful
// mutation is announced through the publisher; publishing is best effort and
// never fails the mutation.
type GiftService struct {
	store     store.Store
	publisher EventPublisher
	logger    *log.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewGiftService(st store.Store, publisher EventPublisher, logger *log.Logger, m *metrics.Metrics) *GiftService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &GiftService{
		store:     st,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentGift),
		metrics:   m,
		now:       time.Now,
	}
}

// CreateGift validates in and stores a new gift added by user.
func (s *GiftService) CreateGift(ctx context.Context, in core.GiftInput, user string) (string, error) {
	rec, err := core.NewGift(in, user, s.now())
	if err != nil {
		return "", err
	}
	id, err := s.store.CreateGift(ctx, rec)
	s.observe(log.OpCreate, err)
	if err != nil {
		return "", fmt.Errorf("save gift: %w", err)
	}

	s.logger.InfoContext(ctx, "Gift created", log.NewFields().
		WithGift(id, rec.Name, rec.Recipient).
		WithUser(user).
		WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, id, amqp.OpCreate)
	return id, nil
}

// EditGift replaces the editable fields of a gift. Only the user who added
// it may edit it.
func (s *GiftService) EditGift(ctx context.Context, id string, in core.GiftInput, user string) error {
	patch, err := core.EditPatch(in)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, id, user); err != nil {
		return err
	}
	err = s.store.UpdateGift(ctx, id, patch)
	s.observe(log.OpUpdate, err)
	if err != nil {
		return fmt.Errorf("update gift: %w", err)
	}
	s.publish(ctx, id, amqp.OpUpdate)
	return nil
}

// TogglePurchased flips the purchased flag and returns the new value. Any
// signed-in user may mark a gift purchased.
func (s *GiftService) TogglePurchased(ctx context.Context, id, user string) (bool, error) {
	if user == "" {
		return false, core.ErrEmptyUser
	}
	rec, err := s.store.GetGift(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get gift: %w", err)
	}
	purchased := !rec.Purchased
	err = s.store.UpdateGift(ctx, id, core.GiftPatch{Purchased: &purchased})
	s.observe(log.OpToggle, err)
	if err != nil {
		return false, fmt.Errorf("toggle gift: %w", err)
	}
	s.publish(ctx, id, amqp.OpUpdate)
	return purchased, nil
}

// AddContribution appends a contribution to a Group or Cash gift. The amount
// is normalized and must be positive. The store appends atomically, so
// concurrent contributions are all kept.
func (s *GiftService) AddContribution(ctx context.Context, id, rawAmount, user string) (core.Progress, error) {
	if user == "" {
		return core.Progress{}, core.ErrEmptyUser
	}
	amount := core.NormalizePrice(rawAmount)
	if amount == nil || *amount <= 0 {
		return core.Progress{}, core.ErrInvalidAmount
	}
	rec, err := s.store.GetGift(ctx, id)
	if err != nil {
		return core.Progress{}, fmt.Errorf("get gift: %w", err)
	}
	if !rec.Type.UsesGoal() {
		return core.Progress{}, ErrNotPooled
	}
	rec, err = s.store.AppendContribution(ctx, id, core.Contribution{Amount: *amount})
	s.observe(log.OpContribute, err)
	if err != nil {
		return core.Progress{}, fmt.Errorf("add contribution: %w", err)
	}
	s.publish(ctx, id, amqp.OpUpdate)

	goal := 0.0
	if rec.Goal != nil {
		goal = *rec.Goal
	}
	return core.ComputeProgress(goal, rec.Contributions), nil
}

// DeleteGift removes a gift. Only the user who added it may delete it.
func (s *GiftService) DeleteGift(ctx context.Context, id, user string) error {
	rec, err := s.authorize(ctx, id, user)
	if err != nil {
		return err
	}
	err = s.store.DeleteGift(ctx, id)
	s.observe(log.OpDelete, err)
	if err != nil {
		return fmt.Errorf("delete gift: %w", err)
	}
	s.logger.InfoContext(ctx, "Gift deleted", log.NewFields().
		WithGift(id, rec.Name, rec.Recipient).
		WithUser(user).
		WithOperation(log.OpDelete).ToSlice()...)
	s.publish(ctx, id, amqp.OpDelete)
	return nil
}

// AcceptSuggestion adds the named suggestion as a gift for recipient.
func (s *GiftService) AcceptSuggestion(ctx context.Context, name, recipient, user string) (string, error) {
	sug, ok := core.FindSuggestion(name)
	if !ok {
		return "", ErrUnknownSuggestion
	}
	rec, err := core.SuggestedGift(sug, recipient, user, s.now())
	if err != nil {
		return "", err
	}
	id, err := s.store.CreateGift(ctx, rec)
	s.observe(log.OpCreate, err)
	if err != nil {
		return "", fmt.Errorf("save suggested gift: %w", err)
	}
	s.publish(ctx, id, amqp.OpCreate)
	return id, nil
}

func (s *GiftService) authorize(ctx context.Context, id, user string) (core.GiftRecord, error) {
	rec, err := s.store.GetGift(ctx, id)
	if err != nil {
		return core.GiftRecord{}, fmt.Errorf("get gift: %w", err)
	}
	if !rec.CanModify(user) {
		s.logger.WarnContext(ctx, "Rejected change to another user's gift",
			log.FieldGiftID, id, log.FieldUser, user)
		return core.GiftRecord{}, ErrForbidden
	}
	return rec, nil
}

func (s *GiftService) publish(ctx context.Context, id string, op amqp.Op) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishGiftChanged(ctx, id, op)
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish gift event",
			log.FieldGiftID, id, log.FieldOperation, string(op), log.FieldError, err)
	}
}

func (s *GiftService) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.Mutations.WithLabelValues(op, metrics.Result(err)).Inc()
	}
}

// Close releases the store and the publisher when it can be closed.
func (s *GiftService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
