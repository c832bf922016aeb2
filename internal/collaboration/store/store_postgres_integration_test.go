//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustlane/internal/collaboration/models"
	"trustlane/internal/collaboration/store"
	profilemodels "trustlane/internal/profile/models"
	profilestore "trustlane/internal/profile/store"
	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/sentinel"
	"trustlane/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	profiles *profilestore.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.profiles = profilestore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) seedProfile() *profilemodels.Profile {
	p, err := profilemodels.NewProfile(id.NewProfileID(), id.NewUserID(), profilemodels.Details{
		DisplayName: "Grace",
		Category:    "tech",
	}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.profiles.Create(context.Background(), p))
	return p
}

func (s *PostgresStoreSuite) newRequest(profile *profilemodels.Profile, campaignID id.CampaignID, at time.Time) *models.Request {
	r, err := models.NewRequest(id.NewCollaborationRequestID(), id.NewUserID(), profile.UserID, models.Invitation{
		CampaignID:       campaignID,
		CampaignName:     "Spring launch",
		CreatorProfileID: profile.ID,
	}, at.Truncate(time.Microsecond))
	s.Require().NoError(err)
	return r
}

func (s *PostgresStoreSuite) TestDuplicateInvitationConflicts() {
	ctx := context.Background()
	profile := s.seedProfile()
	campaignID := id.NewCampaignID()

	s.Require().NoError(s.store.CreateRequest(ctx, s.newRequest(profile, campaignID, time.Now())))
	err := s.store.CreateRequest(ctx, s.newRequest(profile, campaignID, time.Now()))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestAcceptedCountAndActivity() {
	ctx := context.Background()
	profile := s.seedProfile()

	_, found, err := s.store.LastRequestActivity(ctx, profile.ID)
	s.Require().NoError(err)
	s.False(found)

	older := time.Now().UTC().Add(-48 * time.Hour)
	newer := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	accepted := s.newRequest(profile, id.NewCampaignID(), older)
	s.Require().NoError(s.store.CreateRequest(ctx, accepted))
	accepted.ApplyResponse(true, newer)
	s.Require().NoError(s.store.UpdateRequest(ctx, accepted))

	s.Require().NoError(s.store.CreateRequest(ctx, s.newRequest(profile, id.NewCampaignID(), older)))

	n, err := s.store.CountAccepted(ctx, profile.ID)
	s.Require().NoError(err)
	s.Equal(1, n)

	last, found, err := s.store.LastRequestActivity(ctx, profile.ID)
	s.Require().NoError(err)
	s.True(found)
	s.True(newer.Equal(last))
}
