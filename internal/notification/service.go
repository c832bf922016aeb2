// Package notification stores in-app notifications and dispatches them to
// every configured sink.
package notification

import (
	"context"
	"errors"
	"log/slog"

	"trustlane/internal/notification/models"
	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/sentinel"
)

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error)
	ListByUser(ctx context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Notification, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID) error
	MarkAllRead(ctx context.Context, userID id.UserID) (int, error)
	CountUnread(ctx context.Context, userID id.UserID) (int, error)
}

// Service is the read side of notifications for their recipients.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("notification store is required")
	}
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

const defaultListLimit = 50

func (s *Service) List(ctx context.Context, actor id.Actor, filter models.ListFilter) ([]*models.Notification, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	out, err := s.store.ListByUser(ctx, actor.UserID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return out, nil
}

// MarkRead flips one notification to read. Another user's notification is
// reported as not found.
func (s *Service) MarkRead(ctx context.Context, actor id.Actor, notificationID id.NotificationID) (*models.Notification, error) {
	n, err := s.store.FindByID(ctx, notificationID)
	if err != nil {
		return nil, wrapErr(err)
	}
	if n.UserID != actor.UserID {
		return nil, dErrors.New(dErrors.CodeNotFound, "notification not found")
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.store.MarkRead(ctx, notificationID); err != nil {
		return nil, wrapErr(err)
	}
	n.MarkRead()
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, actor id.Actor) (int, error) {
	n, err := s.store.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	s.logger.InfoContext(ctx, "notifications marked read", "user_id", actor.UserID, "count", n)
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, actor id.Actor) (int, error) {
	n, err := s.store.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count unread notifications")
	}
	return n, nil
}

func wrapErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "notification not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "notification store failure")
}
