package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	collabmodels "trustlane/internal/collaboration/models"
	collabservice "trustlane/internal/collaboration/service"
	collabstore "trustlane/internal/collaboration/store"
	"trustlane/internal/notification"
	notificationstore "trustlane/internal/notification/store"
	"trustlane/internal/platform/config"
	"trustlane/internal/platform/postgres"
	profilemodels "trustlane/internal/profile/models"
	profileservice "trustlane/internal/profile/service"
	profilestore "trustlane/internal/profile/store"
	reportmodels "trustlane/internal/report/models"
	reportservice "trustlane/internal/report/service"
	reportstore "trustlane/internal/report/store"
	verificationmodels "trustlane/internal/verification/models"
	verificationservice "trustlane/internal/verification/service"
	verificationstore "trustlane/internal/verification/store"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/audit"
	auditmemory "trustlane/pkg/platform/audit/store/memory"
	auditpostgres "trustlane/pkg/platform/audit/store/postgres"
	"trustlane/pkg/platform/tx"
)

type profileStore interface {
	profileservice.ProfileStore
	ListIDs(ctx context.Context) ([]id.ProfileID, error)
	CountByStatus(ctx context.Context) (map[profilemodels.VerificationStatus]int, error)
}

type verificationStore interface {
	verificationservice.RequestStore
	CountByStatus(ctx context.Context, status verificationmodels.Status) (int, error)
}

type collaborationStore interface {
	collabservice.Store
	CountAccepted(ctx context.Context, profileID id.ProfileID) (int, error)
	LastRequestActivity(ctx context.Context, profileID id.ProfileID) (time.Time, bool, error)
	CountCollaborationsByStatus(ctx context.Context) (map[collabmodels.Status]int, error)
}

type reportStore interface {
	reportservice.Store
	CountByStatus(ctx context.Context, status reportmodels.Status) (int, error)
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// storeSet is every record store plus the transaction runner that spans them.
type storeSet struct {
	profiles       profileStore
	verifications  verificationStore
	collaborations collaborationStore
	reports        reportStore
	notifications  notification.Store
	audit          audit.Store
	tx             txRunner
	ping           func(ctx context.Context) error
	close          func() error
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*storeSet, error) {
	if cfg.InMemory() {
		logger.WarnContext(ctx, "no DATABASE_URL configured, records are kept in memory")
		return &storeSet{
			profiles:       profilestore.NewInMemory(),
			verifications:  verificationstore.NewInMemory(),
			collaborations: collabstore.NewInMemory(),
			reports:        reportstore.NewInMemory(),
			notifications:  notificationstore.NewInMemory(),
			audit:          auditmemory.NewInMemoryStore(),
			tx:             tx.NewInMemory(),
			ping:           func(context.Context) error { return nil },
			close:          func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return postgresStores(db, cfg.TxTimeout), nil
}

func postgresStores(db *sql.DB, txTimeout time.Duration) *storeSet {
	return &storeSet{
		profiles:       profilestore.NewPostgres(db),
		verifications:  verificationstore.NewPostgres(db),
		collaborations: collabstore.NewPostgres(db),
		reports:        reportstore.NewPostgres(db),
		notifications:  notificationstore.NewPostgres(db),
		audit:          auditpostgres.New(db),
		tx:             tx.NewPostgres(db, tx.WithTimeout(txTimeout)),
		ping:           db.PingContext,
		close:          db.Close,
	}
}
