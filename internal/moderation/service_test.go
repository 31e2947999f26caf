package moderation_test

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Notifier,Observer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/internal/moderation/mocks"
	"github.com/escena-local/directory/internal/store/memory"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	store    *memory.Store
	notifier *mocks.MockNotifier
	observer *mocks.MockObserver
	svc      *moderation.Service
	admin    moderation.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.store = memory.New()
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.observer = mocks.NewMockObserver(s.ctrl)
	s.svc = s.newService(s.store.Entities())

	admin := s.newUser(models.RoleAdmin, "Ada Admin")
	s.admin = moderation.Actor{UserID: admin.ID, Role: admin.Role}
}

func (s *ServiceSuite) newService(entities moderation.EntityStore, opts ...moderation.Option) *moderation.Service {
	base := []moderation.Option{
		moderation.WithNotifier(s.notifier),
		moderation.WithTransactor(s.store),
		moderation.WithClock(func() time.Time { return fixedNow }),
		moderation.WithContactInbox("hola@escena.local"),
	}
	svc, err := moderation.New(entities, s.store.Claims(), s.store.Events(), s.store.Users(), append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) newUser(role models.Role, name string) *models.User {
	u := &models.User{
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "-" + uuid.NewString()[:8] + "@example.com",
		FullName: name,
		Role:     role,
	}
	s.Require().NoError(s.store.Users().Create(s.ctx, u))
	return u
}

func (s *ServiceSuite) newEntity(kind models.EntityKind, owner *uuid.UUID, approved bool) *models.Entity {
	e := &models.Entity{
		Kind:        kind,
		Slug:        "e-" + uuid.NewString()[:8],
		Name:        "Entity " + string(kind),
		OwnerUserID: owner,
		Approved:    approved,
	}
	s.Require().NoError(s.store.Entities().Create(s.ctx, e))
	return e
}

func (s *ServiceSuite) reload(e *models.Entity) *models.Entity {
	got, err := s.store.Entities().GetByID(s.ctx, e.Kind, e.ID)
	s.Require().NoError(err)
	return got
}

func (s *ServiceSuite) allowNotifications() {
	s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

// approvedOperator returns a user holding role with an approved entity of the matching kind.
func (s *ServiceSuite) approvedOperator(role models.Role) (*models.User, *models.Entity) {
	u := s.newUser(role, "Operator "+string(role))
	kind, ok := models.KindForRole(role)
	s.Require().True(ok)
	return u, s.newEntity(kind, &u.ID, true)
}

func day(offset int) time.Time {
	return time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func strPtr(v string) *string { return &v }

func (s *ServiceSuite) TestNew() {
	s.Run("requires every store", func() {
		_, err := moderation.New(nil, s.store.Claims(), s.store.Events(), s.store.Users())
		s.Require().Error(err)
		_, err = moderation.New(s.store.Entities(), nil, s.store.Events(), s.store.Users())
		s.Require().Error(err)
		_, err = moderation.New(s.store.Entities(), s.store.Claims(), nil, s.store.Users())
		s.Require().Error(err)
		_, err = moderation.New(s.store.Entities(), s.store.Claims(), s.store.Events(), nil)
		s.Require().Error(err)
	})

	s.Run("window defaults to five days", func() {
		s.Equal(moderation.DefaultEventWindowDays, s.svc.EventWindowDays())
		svc := s.newService(s.store.Entities(), moderation.WithEventWindowDays(3))
		s.Equal(3, svc.EventWindowDays())
	})
}

// TestSetApproval verifies the approval state machine across every kind.
func (s *ServiceSuite) TestSetApproval() {
	for _, kind := range models.EntityKinds {
		s.Run("approve stamps audit fields for "+string(kind), func() {
			owner := s.newUser(models.RoleUser, "Owner")
			e := s.newEntity(kind, &owner.ID, false)

			got, err := s.svc.SetApproval(s.ctx, kind, e.ID, true, s.admin)
			s.Require().NoError(err)
			s.True(got.Approved)

			stored := s.reload(e)
			s.True(stored.Approved)
			s.Require().NotNil(stored.ApprovedAt)
			s.True(stored.ApprovedAt.Equal(fixedNow))
			s.Require().NotNil(stored.ApprovedBy)
			s.Equal(s.admin.UserID, *stored.ApprovedBy)

			_, err = s.svc.SetApproval(s.ctx, kind, e.ID, true, s.admin)
			s.Require().NoError(err)
			again := s.reload(e)
			s.Equal(stored.Approved, again.Approved)
			s.Equal(*stored.ApprovedBy, *again.ApprovedBy)
		})
	}

	s.Run("non-admin is unauthorized and state is unchanged", func() {
		for _, role := range []models.Role{models.RoleUser, models.RoleVenue, models.RoleAct} {
			e := s.newEntity(models.KindVenue, nil, false)
			_, err := s.svc.SetApproval(s.ctx, models.KindVenue, e.ID, true, moderation.Actor{UserID: uuid.New(), Role: role})
			s.Require().ErrorIs(err, moderation.ErrUnauthorized)
			s.False(s.reload(e).Approved)
		}
	})

	s.Run("re-approval by another admin keeps the original stamp", func() {
		clock := fixedNow
		svc := s.newService(s.store.Entities(), moderation.WithClock(func() time.Time { return clock }))
		e := s.newEntity(models.KindVenue, nil, false)

		_, err := svc.SetApproval(s.ctx, e.Kind, e.ID, true, s.admin)
		s.Require().NoError(err)
		first := s.reload(e)

		clock = fixedNow.Add(48 * time.Hour)
		other := s.newUser(models.RoleAdmin, "Otra Admin")
		got, err := svc.SetApproval(s.ctx, e.Kind, e.ID, true, moderation.Actor{UserID: other.ID, Role: other.Role})
		s.Require().NoError(err)
		s.True(got.Approved)

		again := s.reload(e)
		s.Require().NotNil(again.ApprovedAt)
		s.True(again.ApprovedAt.Equal(fixedNow))
		s.Equal(s.admin.UserID, *again.ApprovedBy)
		s.Equal(*first, *again)
	})

	s.Run("approval after revocation stamps anew", func() {
		clock := fixedNow
		svc := s.newService(s.store.Entities(), moderation.WithClock(func() time.Time { return clock }))
		e := s.newEntity(models.KindAct, nil, false)

		_, err := svc.SetApproval(s.ctx, e.Kind, e.ID, true, s.admin)
		s.Require().NoError(err)
		_, err = svc.SetApproval(s.ctx, e.Kind, e.ID, false, s.admin)
		s.Require().NoError(err)

		clock = fixedNow.Add(24 * time.Hour)
		_, err = svc.SetApproval(s.ctx, e.Kind, e.ID, true, s.admin)
		s.Require().NoError(err)
		s.True(s.reload(e).ApprovedAt.Equal(clock))
	})

	s.Run("revoking keeps the previous stamp", func() {
		e := s.newEntity(models.KindFestival, nil, false)
		_, err := s.svc.SetApproval(s.ctx, e.Kind, e.ID, true, s.admin)
		s.Require().NoError(err)
		_, err = s.svc.SetApproval(s.ctx, e.Kind, e.ID, false, s.admin)
		s.Require().NoError(err)

		stored := s.reload(e)
		s.False(stored.Approved)
		s.NotNil(stored.ApprovedAt)
	})

	s.Run("unknown id or kind is not found", func() {
		_, err := s.svc.SetApproval(s.ctx, models.KindAct, uuid.New(), true, s.admin)
		s.Require().ErrorIs(err, moderation.ErrNotFound)

		e := s.newEntity(models.KindAct, nil, false)
		_, err = s.svc.SetApproval(s.ctx, models.KindVenue, e.ID, true, s.admin)
		s.Require().ErrorIs(err, moderation.ErrNotFound)

		_, err = s.svc.SetApproval(s.ctx, models.EntityKind("band"), e.ID, true, s.admin)
		s.Require().ErrorIs(err, moderation.ErrNotFound)
	})

	s.Run("observer is told the queue changed", func() {
		svc := s.newService(s.store.Entities(), moderation.WithObserver(s.observer))
		e := s.newEntity(models.KindVenue, nil, false)
		s.observer.EXPECT().QueueChanged(gomock.Any()).Times(1)

		_, err := svc.SetApproval(s.ctx, e.Kind, e.ID, true, s.admin)
		s.Require().NoError(err)
	})
}

// TestSubmitClaim verifies claim preconditions and the single pending claim rule.
func (s *ServiceSuite) TestSubmitClaim() {
	s.Run("second pending claim conflicts until the first is decided", func() {
		user := s.newUser(models.RoleUser, "Claimant")
		e := s.newEntity(models.KindVenue, nil, true)

		first, err := s.svc.SubmitClaim(s.ctx, user.ID, e.Kind, e.ID, "  es mía  ")
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusPending, first.Status)
		s.Equal("es mía", first.Message)

		_, err = s.svc.SubmitClaim(s.ctx, user.ID, e.Kind, e.ID, "")
		s.Require().ErrorIs(err, moderation.ErrDuplicateClaim)
		s.ErrorIs(err, moderation.ErrConflict)

		s.allowNotifications()
		_, err = s.svc.DecideClaim(s.ctx, first.ID, models.ClaimReject, s.admin)
		s.Require().NoError(err)

		_, err = s.svc.SubmitClaim(s.ctx, user.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)
		s.Nil(s.reload(e).OwnerUserID, "submitting never mutates the entity")
	})

	s.Run("owned entity is not claimable", func() {
		owner := s.newUser(models.RoleVenue, "Owner")
		e := s.newEntity(models.KindVenue, &owner.ID, true)
		_, err := s.svc.SubmitClaim(s.ctx, uuid.New(), e.Kind, e.ID, "")
		s.Require().ErrorIs(err, moderation.ErrNotClaimable)
		s.ErrorIs(err, moderation.ErrConflict)
	})

	s.Run("unapproved entity is not claimable", func() {
		e := s.newEntity(models.KindAct, nil, false)
		_, err := s.svc.SubmitClaim(s.ctx, uuid.New(), e.Kind, e.ID, "")
		s.Require().ErrorIs(err, moderation.ErrNotClaimable)
	})

	s.Run("missing entity is not found", func() {
		_, err := s.svc.SubmitClaim(s.ctx, uuid.New(), models.KindAct, uuid.New(), "")
		s.Require().ErrorIs(err, moderation.ErrNotFound)
	})

	s.Run("overlong message is invalid", func() {
		e := s.newEntity(models.KindAct, nil, true)
		_, err := s.svc.SubmitClaim(s.ctx, uuid.New(), e.Kind, e.ID, strings.Repeat("x", 2001))
		s.Require().ErrorIs(err, moderation.ErrInvalidInput)
	})

	s.Run("operator of another kind cannot claim", func() {
		venue := s.newUser(models.RoleVenue, "Sala Norte")
		e := s.newEntity(models.KindAct, nil, true)
		_, err := s.svc.SubmitClaim(s.ctx, venue.ID, e.Kind, e.ID, "")
		s.Require().ErrorIs(err, moderation.ErrUnauthorized)

		list, err := s.svc.ListUserClaims(s.ctx, venue.ID)
		s.Require().NoError(err)
		s.Empty(list)
	})

	s.Run("operator of the same kind can claim", func() {
		act := s.newUser(models.RoleAct, "Banda Sur")
		e := s.newEntity(models.KindAct, nil, true)
		c, err := s.svc.SubmitClaim(s.ctx, act.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusPending, c.Status)
	})

	s.Run("unknown claimant is not found", func() {
		e := s.newEntity(models.KindAct, nil, true)
		_, err := s.svc.SubmitClaim(s.ctx, uuid.New(), e.Kind, e.ID, "")
		s.Require().ErrorIs(err, moderation.ErrNotFound)
	})
}

// TestDecideClaim verifies that approval binds ownership without touching visibility.
func (s *ServiceSuite) TestDecideClaim() {
	s.Run("claimant promoted for another kind keeps the second claim pending", func() {
		s.allowNotifications()
		user := s.newUser(models.RoleUser, "Doble")
		act := s.newEntity(models.KindAct, nil, true)
		fest := s.newEntity(models.KindFestival, nil, true)
		ca, err := s.svc.SubmitClaim(s.ctx, user.ID, act.Kind, act.ID, "")
		s.Require().NoError(err)
		cf, err := s.svc.SubmitClaim(s.ctx, user.ID, fest.Kind, fest.ID, "")
		s.Require().NoError(err)

		_, err = s.svc.DecideClaim(s.ctx, ca.ID, models.ClaimApprove, s.admin)
		s.Require().NoError(err)

		_, err = s.svc.DecideClaim(s.ctx, cf.ID, models.ClaimApprove, s.admin)
		s.Require().ErrorIs(err, moderation.ErrConflict)
		s.Nil(s.reload(fest).OwnerUserID)

		got, err := s.store.Claims().GetByID(s.ctx, cf.ID)
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusPending, got.Status)
		u, err := s.store.Users().GetByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(models.RoleAct, u.Role)
	})

	s.Run("approve binds owner and keeps approved=true", func() {
		user := s.newUser(models.RoleUser, "Claimant")
		e := s.newEntity(models.KindVenue, nil, true)
		c, err := s.svc.SubmitClaim(s.ctx, user.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)

		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, n moderation.Notification) error {
				s.Equal(models.EmailTypeClaimApproved, n.Type)
				s.Equal(user.Email, n.RecipientEmail)
				s.Equal(e.Name, n.Name)
				return nil
			})
		decided, err := s.svc.DecideClaim(s.ctx, c.ID, models.ClaimApprove, s.admin)
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusApproved, decided.Status)

		stored := s.reload(e)
		s.Require().NotNil(stored.OwnerUserID)
		s.Equal(user.ID, *stored.OwnerUserID)
		s.True(stored.Approved)

		promoted, err := s.store.Users().GetByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(models.RoleVenue, promoted.Role)
	})

	s.Run("approve keeps approved=false when revoked after submission", func() {
		s.allowNotifications()
		user := s.newUser(models.RoleUser, "Claimant")
		e := s.newEntity(models.KindAct, nil, true)
		c, err := s.svc.SubmitClaim(s.ctx, user.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)
		_, err = s.svc.SetApproval(s.ctx, e.Kind, e.ID, false, s.admin)
		s.Require().NoError(err)

		_, err = s.svc.DecideClaim(s.ctx, c.ID, models.ClaimApprove, s.admin)
		s.Require().NoError(err)
		stored := s.reload(e)
		s.False(stored.Approved)
		s.Equal(user.ID, *stored.OwnerUserID)
	})

	s.Run("decided claims are terminal", func() {
		s.allowNotifications()
		user := s.newUser(models.RoleUser, "Claimant")
		e := s.newEntity(models.KindFestival, nil, true)
		c, err := s.svc.SubmitClaim(s.ctx, user.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)
		_, err = s.svc.DecideClaim(s.ctx, c.ID, models.ClaimReject, s.admin)
		s.Require().NoError(err)

		_, err = s.svc.DecideClaim(s.ctx, c.ID, models.ClaimApprove, s.admin)
		s.Require().ErrorIs(err, moderation.ErrNotFound)
		s.Nil(s.reload(e).OwnerUserID)
	})

	s.Run("competing claims are decided individually", func() {
		s.allowNotifications()
		a := s.newUser(models.RoleUser, "First")
		b := s.newUser(models.RoleUser, "Second")
		e := s.newEntity(models.KindVenue, nil, true)
		ca, err := s.svc.SubmitClaim(s.ctx, a.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)
		cb, err := s.svc.SubmitClaim(s.ctx, b.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)

		_, err = s.svc.DecideClaim(s.ctx, ca.ID, models.ClaimApprove, s.admin)
		s.Require().NoError(err)

		other, err := s.store.Claims().GetByID(s.ctx, cb.ID)
		s.Require().NoError(err)
		s.True(other.Pending())

		_, err = s.svc.DecideClaim(s.ctx, cb.ID, models.ClaimApprove, s.admin)
		s.Require().ErrorIs(err, moderation.ErrConflict)
		still, err := s.store.Claims().GetByID(s.ctx, cb.ID)
		s.Require().NoError(err)
		s.True(still.Pending(), "failed approval rolls back")

		_, err = s.svc.DecideClaim(s.ctx, cb.ID, models.ClaimReject, s.admin)
		s.Require().NoError(err)
	})

	s.Run("non-admin and unknown decision", func() {
		user := s.newUser(models.RoleUser, "Claimant")
		e := s.newEntity(models.KindVenue, nil, true)
		c, err := s.svc.SubmitClaim(s.ctx, user.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)

		_, err = s.svc.DecideClaim(s.ctx, c.ID, models.ClaimApprove, moderation.Actor{UserID: user.ID, Role: user.Role})
		s.Require().ErrorIs(err, moderation.ErrUnauthorized)
		_, err = s.svc.DecideClaim(s.ctx, c.ID, models.ClaimDecision("maybe"), s.admin)
		s.Require().ErrorIs(err, moderation.ErrInvalidInput)
	})
}

// TestRejection verifies the rejection protocol and its notification intents.
func (s *ServiceSuite) TestRejection() {
	s.Run("entity rejection notifies the owner with the reason", func() {
		owner := s.newUser(models.RoleVenue, "Owner")
		e := s.newEntity(models.KindVenue, &owner.ID, true)

		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, n moderation.Notification) error {
				s.Equal(models.EmailTypeEntityRejected, n.Type)
				s.Equal(owner.Email, n.RecipientEmail)
				s.Require().NotNil(n.Reason)
				s.Equal("faltan datos", *n.Reason)
				return nil
			})
		got, err := s.svc.RejectEntity(s.ctx, e.Kind, e.ID, strPtr("  faltan datos "), s.admin)
		s.Require().NoError(err)
		s.False(got.Approved)
		s.False(s.reload(e).Approved)
	})

	s.Run("blank reason becomes nil and delivery failure does not undo", func() {
		owner := s.newUser(models.RoleAct, "Owner")
		e := s.newEntity(models.KindAct, &owner.ID, true)

		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, n moderation.Notification) error {
				s.Nil(n.Reason)
				return errors.New("redis down")
			})
		_, err := s.svc.RejectEntity(s.ctx, e.Kind, e.ID, strPtr("   "), s.admin)
		s.Require().NoError(err)
		s.False(s.reload(e).Approved)
	})

	s.Run("unowned entity falls back to its contact email", func() {
		e := &models.Entity{Kind: models.KindFestival, Slug: "fest-contacto", Name: "Fest", ContactEmail: "info@fest.example", Approved: true}
		s.Require().NoError(s.store.Entities().Create(s.ctx, e))

		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, n moderation.Notification) error {
				s.Equal("info@fest.example", n.RecipientEmail)
				return nil
			})
		_, err := s.svc.RejectEntity(s.ctx, e.Kind, e.ID, nil, s.admin)
		s.Require().NoError(err)
	})

	s.Run("no recipient skips the notification", func() {
		e := s.newEntity(models.KindPromoter, nil, true)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)
		_, err := s.svc.RejectEntity(s.ctx, e.Kind, e.ID, nil, s.admin)
		s.Require().NoError(err)
	})

	s.Run("claim rejection notifies the requester", func() {
		user := s.newUser(models.RoleUser, "Requester")
		e := s.newEntity(models.KindVenue, nil, true)
		c, err := s.svc.SubmitClaim(s.ctx, user.ID, e.Kind, e.ID, "")
		s.Require().NoError(err)

		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, n moderation.Notification) error {
				s.Equal(models.EmailTypeClaimRejected, n.Type)
				s.Equal(user.Email, n.RecipientEmail)
				s.Equal(e.Name, n.Name)
				s.Require().NotNil(n.ClaimID)
				s.Equal(c.ID, *n.ClaimID)
				return nil
			})
		got, err := s.svc.RejectClaim(s.ctx, c.ID, strPtr("no acreditado"), s.admin)
		s.Require().NoError(err)
		s.Equal(models.ClaimStatusRejected, got.Status)
		s.Require().NotNil(got.RejectionReason)
		s.Equal("no acreditado", *got.RejectionReason)
		s.Nil(s.reload(e).OwnerUserID)
	})

	s.Run("non-admin cannot reject", func() {
		e := s.newEntity(models.KindVenue, nil, true)
		_, err := s.svc.RejectEntity(s.ctx, e.Kind, e.ID, nil, moderation.Actor{UserID: uuid.New(), Role: models.RoleVenue})
		s.Require().ErrorIs(err, moderation.ErrUnauthorized)
		s.True(s.reload(e).Approved)
	})
}

// TestCanPublishEvent verifies the ordered role, approval and window checks.
func (s *ServiceSuite) TestCanPublishEvent() {
	s.Run("window admits once per eleven days", func() {
		u, _ := s.approvedOperator(models.RoleVenue)

		d, err := s.svc.CanPublishEvent(s.ctx, u.ID, day(0), nil)
		s.Require().NoError(err)
		s.True(d.Allowed)
		_, err = s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "Concierto", Date: day(0)})
		s.Require().NoError(err)

		for _, offset := range []int{-5, -1, 0, 3, 5} {
			d, err := s.svc.CanPublishEvent(s.ctx, u.ID, day(offset), nil)
			s.Require().NoError(err)
			s.False(d.Allowed, "offset %d", offset)
			s.Equal(moderation.ReasonLimitExceeded, d.Reason)
		}
		for _, offset := range []int{-6, 6} {
			d, err := s.svc.CanPublishEvent(s.ctx, u.ID, day(offset), nil)
			s.Require().NoError(err)
			s.True(d.Allowed, "offset %d", offset)
		}
	})

	s.Run("exempt events never block", func() {
		u, _ := s.approvedOperator(models.RoleFestival)
		s.Require().NoError(s.store.Events().Create(s.ctx, &models.Event{
			CreatedByUserID: u.ID, Title: "Gala", Date: day(0), EventLimitExempt: true,
		}))
		d, err := s.svc.CanPublishEvent(s.ctx, u.ID, day(0), nil)
		s.Require().NoError(err)
		s.True(d.Allowed)
	})

	s.Run("no_role for non-publishers regardless of entity", func() {
		for _, role := range []models.Role{models.RoleUser, models.RoleAct, models.RoleAssociation} {
			u := s.newUser(role, "Nope")
			if kind, ok := models.KindForRole(role); ok {
				s.newEntity(kind, &u.ID, true)
			}
			d, err := s.svc.CanPublishEvent(s.ctx, u.ID, day(0), nil)
			s.Require().NoError(err)
			s.Equal(moderation.ReasonNoRole, d.Reason, "role %s", role)
		}

		d, err := s.svc.CanPublishEvent(s.ctx, uuid.New(), day(0), nil)
		s.Require().NoError(err)
		s.Equal(moderation.ReasonNoRole, d.Reason)
	})

	s.Run("not_approved takes precedence over the window", func() {
		u := s.newUser(models.RolePromoter, "Promo")
		e := s.newEntity(models.KindPromoter, &u.ID, true)
		_, err := s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "Uno", Date: day(0)})
		s.Require().NoError(err)

		_, err = s.svc.SetApproval(s.ctx, e.Kind, e.ID, false, s.admin)
		s.Require().NoError(err)
		d, err := s.svc.CanPublishEvent(s.ctx, u.ID, day(0), nil)
		s.Require().NoError(err)
		s.Equal(moderation.ReasonNotApproved, d.Reason)
		s.NotEmpty(d.Message())
	})

	s.Run("not_approved when the operator has no entity", func() {
		u := s.newUser(models.RoleOrganizer, "Org")
		d, err := s.svc.CanPublishEvent(s.ctx, u.ID, day(0), nil)
		s.Require().NoError(err)
		s.Equal(moderation.ReasonNotApproved, d.Reason)
	})
}

// TestPublishEvent verifies the publishing operations built on the policy.
func (s *ServiceSuite) TestPublishEvent() {
	s.Run("denial surfaces as PolicyDeniedError", func() {
		u := s.newUser(models.RoleUser, "Basic")
		_, err := s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "x", Date: day(0)})
		pd, ok := moderation.AsPolicyDenied(err)
		s.Require().True(ok)
		s.Equal(moderation.ReasonNoRole, pd.Reason)
	})

	s.Run("stores the calendar day", func() {
		u, _ := s.approvedOperator(models.RoleVenue)
		ev, err := s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "Noche", Date: day(0).Add(22 * time.Hour)})
		s.Require().NoError(err)
		s.True(ev.Date.Equal(day(0)))
		s.False(ev.EventLimitExempt)
	})

	s.Run("reschedule excludes the event itself", func() {
		u, _ := s.approvedOperator(models.RoleVenue)
		ev, err := s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "Uno", Date: day(0)})
		s.Require().NoError(err)

		moved, err := s.svc.RescheduleEvent(s.ctx, u.ID, ev.ID, moderation.EventInput{Title: "Uno bis", Date: day(2)})
		s.Require().NoError(err)
		s.True(moved.Date.Equal(day(2)))

		second, err := s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "Dos", Date: day(20)})
		s.Require().NoError(err)
		_, err = s.svc.RescheduleEvent(s.ctx, u.ID, second.ID, moderation.EventInput{Title: "Dos", Date: day(4)})
		pd, ok := moderation.AsPolicyDenied(err)
		s.Require().True(ok)
		s.Equal(moderation.ReasonLimitExceeded, pd.Reason)
	})

	s.Run("only the creator reschedules", func() {
		u, _ := s.approvedOperator(models.RoleVenue)
		ev, err := s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "Mío", Date: day(0)})
		s.Require().NoError(err)
		other, _ := s.approvedOperator(models.RoleVenue)
		_, err = s.svc.RescheduleEvent(s.ctx, other.ID, ev.ID, moderation.EventInput{Title: "Tuyo", Date: day(30)})
		s.Require().ErrorIs(err, moderation.ErrUnauthorized)
	})

	s.Run("admin events are exempt", func() {
		ev, err := s.svc.PublishExemptEvent(s.ctx, s.admin, moderation.EventInput{Title: "Festival municipal", Date: day(0)})
		s.Require().NoError(err)
		s.True(ev.EventLimitExempt)

		_, err = s.svc.PublishExemptEvent(s.ctx, moderation.Actor{UserID: uuid.New(), Role: models.RoleVenue}, moderation.EventInput{Title: "x", Date: day(0)})
		s.Require().ErrorIs(err, moderation.ErrUnauthorized)
	})

	s.Run("invalid input", func() {
		u, _ := s.approvedOperator(models.RoleVenue)
		_, err := s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: " ", Date: day(0)})
		s.Require().ErrorIs(err, moderation.ErrInvalidInput)
		_, err = s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "x"})
		s.Require().ErrorIs(err, moderation.ErrInvalidInput)
	})

	s.Run("concurrent publications in one window admit exactly one", func() {
		u, _ := s.approvedOperator(models.RoleVenue)
		const n = 8
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			go func(i int) {
				_, err := s.svc.PublishEvent(s.ctx, u.ID, moderation.EventInput{Title: "Carrera", Date: day(i % 3)})
				errs <- err
			}(i)
		}
		ok := 0
		for i := 0; i < n; i++ {
			if err := <-errs; err == nil {
				ok++
			} else {
				_, denied := moderation.AsPolicyDenied(err)
				s.True(denied)
			}
		}
		s.Equal(1, ok)
	})
}

// TestCanAccessContact verifies the contact policy and display name resolution.
func (s *ServiceSuite) TestCanAccessContact() {
	s.Run("admin is always allowed", func() {
		d, err := s.svc.CanAccessContact(s.ctx, s.admin.UserID)
		s.Require().NoError(err)
		s.True(d.Allowed)
		s.Equal("Ada Admin", d.DisplayName)
		s.Equal(models.RoleAdmin, d.Role)
	})

	s.Run("approved operator uses the entity name", func() {
		u, e := s.approvedOperator(models.RoleAct)
		d, err := s.svc.CanAccessContact(s.ctx, u.ID)
		s.Require().NoError(err)
		s.True(d.Allowed)
		s.Equal(e.Name, d.DisplayName)
	})

	s.Run("unapproved or missing entity is pending review", func() {
		u := s.newUser(models.RoleVenue, "Pend")
		s.newEntity(models.KindVenue, &u.ID, false)
		d, err := s.svc.CanAccessContact(s.ctx, u.ID)
		s.Require().NoError(err)
		s.False(d.Allowed)
		s.Equal(moderation.ReasonPendingReview, d.Reason)

		lonely := s.newUser(models.RoleFestival, "Lonely")
		d, err = s.svc.CanAccessContact(s.ctx, lonely.ID)
		s.Require().NoError(err)
		s.Equal(moderation.ReasonPendingReview, d.Reason)
	})

	s.Run("basic users are not members", func() {
		u := s.newUser(models.RoleUser, "Basic")
		d, err := s.svc.CanAccessContact(s.ctx, u.ID)
		s.Require().NoError(err)
		s.False(d.Allowed)
		s.Equal(moderation.ReasonNotMember, d.Reason)
		s.Equal(moderation.ReasonNotMember.Message(), d.Message())

		d, err = s.svc.CanAccessContact(s.ctx, uuid.New())
		s.Require().NoError(err)
		s.Equal(moderation.ReasonNotMember, d.Reason)
	})
}

// TestSendContactMessage verifies the contact message is addressed to the inbox.
func (s *ServiceSuite) TestSendContactMessage() {
	s.Run("allowed member reaches the inbox", func() {
		u, e := s.approvedOperator(models.RoleVenue)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, n moderation.Notification) error {
				s.Equal(models.EmailTypeContactMessage, n.Type)
				s.Equal("hola@escena.local", n.RecipientEmail)
				s.Equal(u.Email, n.ReplyTo)
				s.Equal(e.Name, n.Name)
				s.Contains(n.Body, "Consulta")
				return nil
			})
		err := s.svc.SendContactMessage(s.ctx, u.ID, moderation.ContactMessage{Subject: "Consulta", Body: "Hola"})
		s.Require().NoError(err)
	})

	s.Run("denied member gets the policy error", func() {
		u := s.newUser(models.RoleUser, "Basic")
		err := s.svc.SendContactMessage(s.ctx, u.ID, moderation.ContactMessage{Subject: "a", Body: "b"})
		pd, ok := moderation.AsPolicyDenied(err)
		s.Require().True(ok)
		s.Equal(moderation.ReasonNotMember, pd.Reason)
	})

	s.Run("enqueue failure is returned", func() {
		u, _ := s.approvedOperator(models.RoleVenue)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		err := s.svc.SendContactMessage(s.ctx, u.ID, moderation.ContactMessage{Subject: "a", Body: "b"})
		s.Require().ErrorIs(err, moderation.ErrStoreFailure)
	})

	s.Run("empty subject is invalid", func() {
		err := s.svc.SendContactMessage(s.ctx, s.admin.UserID, moderation.ContactMessage{Body: "b"})
		s.Require().ErrorIs(err, moderation.ErrInvalidInput)
	})
}

type failingCounts struct {
	*memory.EntityStore
	kind models.EntityKind
}

func (f failingCounts) CountAwaitingReview(ctx context.Context, kind models.EntityKind) (int, error) {
	if kind == f.kind {
		return 0, errors.New("connection reset")
	}
	return f.EntityStore.CountAwaitingReview(ctx, kind)
}

// TestPendingCounts verifies the moderation queue aggregate.
func (s *ServiceSuite) TestPendingCounts() {
	s.Run("tracks registrations and claims", func() {
		s.allowNotifications()
		s.Equal(moderation.PendingCounts{}, s.svc.PendingCounts(s.ctx))

		owner := s.newUser(models.RoleUser, "Owner")
		venue, err := s.svc.RegisterEntity(s.ctx, owner.ID, moderation.EntityInput{Kind: models.KindVenue, Slug: "sala-nueva", Name: "Sala Nueva"})
		s.Require().NoError(err)

		claimant := s.newUser(models.RoleUser, "Claimant")
		public := s.newEntity(models.KindAct, nil, true)
		c, err := s.svc.SubmitClaim(s.ctx, claimant.ID, public.Kind, public.ID, "")
		s.Require().NoError(err)
		s.newEntity(models.KindFestival, nil, false)

		s.Equal(moderation.PendingCounts{Solicitudes: 1, Reclamaciones: 1}, s.svc.PendingCounts(s.ctx))

		queue, err := s.svc.ListPendingQueue(s.ctx)
		s.Require().NoError(err)
		s.Len(queue.Entities, 1)
		s.Len(queue.Claims, 1)

		_, err = s.svc.SetApproval(s.ctx, venue.Kind, venue.ID, true, s.admin)
		s.Require().NoError(err)
		s.Equal(0, s.svc.PendingCounts(s.ctx).Solicitudes)

		_, err = s.svc.DecideClaim(s.ctx, c.ID, models.ClaimApprove, s.admin)
		s.Require().NoError(err)
		s.Equal(0, s.svc.PendingCounts(s.ctx).Reclamaciones)
	})

	s.Run("a failing kind degrades to zero", func() {
		owner := s.newUser(models.RoleUser, "Owner")
		s.newEntity(models.KindVenue, &owner.ID, false)
		other := s.newUser(models.RoleUser, "Other")
		s.newEntity(models.KindAct, &other.ID, false)

		svc := s.newService(failingCounts{EntityStore: s.store.Entities(), kind: models.KindVenue})
		got := svc.PendingCounts(s.ctx)
		s.Equal(1, got.Solicitudes)
	})
}

// TestEntities verifies creation, self-registration and listing.
func (s *ServiceSuite) TestEntities() {
	s.Run("platform entities are approved and unowned", func() {
		e, err := s.svc.CreateEntity(s.ctx, moderation.EntityInput{Kind: models.KindVenue, Slug: "Teatro-Principal", Name: "Teatro Principal"}, s.admin)
		s.Require().NoError(err)
		s.True(e.Approved)
		s.True(e.CreatedByPlatform)
		s.Nil(e.OwnerUserID)
		s.Equal("teatro-principal", e.Slug)
		s.Equal(0, s.svc.PendingCounts(s.ctx).Solicitudes)

		_, err = s.svc.CreateEntity(s.ctx, moderation.EntityInput{Kind: models.KindVenue, Slug: "teatro-principal", Name: "Otro"}, s.admin)
		s.Require().ErrorIs(err, moderation.ErrConflict)
	})

	s.Run("create requires admin and a valid slug", func() {
		_, err := s.svc.CreateEntity(s.ctx, moderation.EntityInput{Kind: models.KindAct, Slug: "ok-slug", Name: "x"}, moderation.Actor{Role: models.RoleAct})
		s.Require().ErrorIs(err, moderation.ErrUnauthorized)
		_, err = s.svc.CreateEntity(s.ctx, moderation.EntityInput{Kind: models.KindAct, Slug: "no spaces", Name: "x"}, s.admin)
		s.Require().ErrorIs(err, moderation.ErrInvalidInput)
		_, err = s.svc.CreateEntity(s.ctx, moderation.EntityInput{Kind: models.KindAct, Slug: "ok-slug", Name: "x", ContactEmail: "nope"}, s.admin)
		s.Require().ErrorIs(err, moderation.ErrInvalidInput)
	})

	s.Run("registration promotes and queues", func() {
		svc := s.newService(s.store.Entities(), moderation.WithObserver(s.observer))
		s.observer.EXPECT().QueueChanged(gomock.Any()).Times(1)
		u := s.newUser(models.RoleUser, "Band")

		e, err := svc.RegisterEntity(s.ctx, u.ID, moderation.EntityInput{Kind: models.KindAct, Slug: "los-nuevos", Name: "Los Nuevos"})
		s.Require().NoError(err)
		s.False(e.Approved)
		s.True(e.AwaitingReview())

		promoted, err := s.store.Users().GetByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(models.RoleAct, promoted.Role)

		_, err = svc.RegisterEntity(s.ctx, u.ID, moderation.EntityInput{Kind: models.KindAct, Slug: "los-otros", Name: "Los Otros"})
		s.Require().ErrorIs(err, moderation.ErrConflict)
		_, err = svc.RegisterEntity(s.ctx, u.ID, moderation.EntityInput{Kind: models.KindVenue, Slug: "su-sala", Name: "Su Sala"})
		s.Require().ErrorIs(err, moderation.ErrUnauthorized)
	})

	s.Run("failed registration leaves the role untouched", func() {
		s.newEntity(models.KindVenue, nil, true)
		taken := s.newEntity(models.KindVenue, nil, true)
		u := s.newUser(models.RoleUser, "Late")
		_, err := s.svc.RegisterEntity(s.ctx, u.ID, moderation.EntityInput{Kind: models.KindVenue, Slug: taken.Slug, Name: "Dup"})
		s.Require().ErrorIs(err, moderation.ErrConflict)

		still, err := s.store.Users().GetByID(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(models.RoleUser, still.Role)
	})

	s.Run("listing hides unapproved and gates restricted kinds", func() {
		s.newEntity(models.KindPromoter, nil, true)
		_, err := s.svc.ListEntities(s.ctx, models.KindPromoter, models.RoleUser, 0)
		s.Require().ErrorIs(err, moderation.ErrUnauthorized)

		list, err := s.svc.ListEntities(s.ctx, models.KindPromoter, models.RoleVenue, 0)
		s.Require().NoError(err)
		s.NotEmpty(list)

		hidden := s.newEntity(models.KindFestival, nil, false)
		list, err = s.svc.ListEntities(s.ctx, models.KindFestival, models.RoleUser, 0)
		s.Require().NoError(err)
		for _, e := range list {
			s.NotEqual(hidden.ID, e.ID)
		}

		_, err = s.svc.GetEntityBySlug(s.ctx, hidden.Kind, hidden.Slug, false)
		s.Require().ErrorIs(err, moderation.ErrNotFound)
		got, err := s.svc.GetEntityBySlug(s.ctx, hidden.Kind, hidden.Slug, true)
		s.Require().NoError(err)
		s.Equal(hidden.ID, got.ID)
	})

	s.Run("claimable search only returns public unowned entities", func() {
		owner := s.newUser(models.RoleAssociation, "Assoc")
		s.newEntity(models.KindAssociation, &owner.ID, true)
		free := s.newEntity(models.KindAssociation, nil, true)

		list, err := s.svc.SearchClaimable(s.ctx, models.KindAssociation, "entity", 10)
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Equal(free.ID, list[0].ID)
	})
}

func (s *ServiceSuite) TestListUserClaims() {
	user := s.newUser(models.RoleUser, "Collector")
	other := s.newUser(models.RoleUser, "Someone else")
	a := s.newEntity(models.KindAct, nil, true)
	b := s.newEntity(models.KindFestival, nil, true)

	_, err := s.svc.SubmitClaim(s.ctx, user.ID, a.Kind, a.ID, "")
	s.Require().NoError(err)
	_, err = s.svc.SubmitClaim(s.ctx, user.ID, b.Kind, b.ID, "")
	s.Require().NoError(err)
	_, err = s.svc.SubmitClaim(s.ctx, other.ID, a.Kind, a.ID, "")
	s.Require().NoError(err)

	list, err := s.svc.ListUserClaims(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Len(list, 2)
	for _, c := range list {
		s.Equal(user.ID, c.UserID)
	}

	none, err := s.svc.ListUserClaims(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.Empty(none)
}
