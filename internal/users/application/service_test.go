package application_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/users/application"
	"github.com/felixgeelhaar/teamfinder/internal/users/domain"
)

type memoryRepo struct {
	users map[uuid.UUID]*domain.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *memoryRepo) Create(ctx context.Context, u *domain.User) error {
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return domain.ErrUserExists
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, u *domain.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

type recordingPublisher struct {
	published []publishedMessage
	err       error
}

type publishedMessage struct {
	routingKey string
	body       []byte
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedMessage{routingKey, body})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestService_RegisterPublishesEvent(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	svc := application.NewService(repo, pub, testLogger())

	user, err := svc.Register(context.Background(), application.RegisterInput{
		Username:       "alice",
		Email:          "alice@example.com",
		GamingPlatform: "PC",
		PreferredGame:  "Rocket League",
		SkillLevel:     "Gold",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)

	require.Len(t, pub.published, 1)
	assert.Equal(t, events.RoutingKeyUserRegistered, pub.published[0].routingKey)

	decoded, err := events.Decode(events.RoutingKeyUserRegistered, pub.published[0].body)
	require.NoError(t, err)
	reg := decoded.(*events.UserRegistered)
	assert.Equal(t, user.ID, reg.UserID)
	assert.Equal(t, "alice", reg.Username)
}

func TestService_RegisterDuplicate(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	svc := application.NewService(repo, pub, testLogger())

	_, err := svc.Register(context.Background(), application.RegisterInput{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), application.RegisterInput{Username: "bob", Email: "other@example.com"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
	// No event for the failed registration.
	assert.Len(t, pub.published, 1)
}

func TestService_UpdatePublishesEvent(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	svc := application.NewService(repo, pub, testLogger())

	user, err := svc.Register(context.Background(), application.RegisterInput{Username: "carol", Email: "carol@example.com"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), user.ID, application.UpdateInput{
		Username: "carol2",
		Email:    "carol2@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "carol2", updated.Username)

	require.Len(t, pub.published, 2)
	assert.Equal(t, events.RoutingKeyUserUpdated, pub.published[1].routingKey)
}

func TestService_UpdateUnknownUser(t *testing.T) {
	svc := application.NewService(newMemoryRepo(), &recordingPublisher{}, testLogger())

	_, err := svc.Update(context.Background(), uuid.New(), application.UpdateInput{Username: "x"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestService_DeletePublishesEvent(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	svc := application.NewService(repo, pub, testLogger())

	user, err := svc.Register(context.Background(), application.RegisterInput{Username: "dave", Email: "dave@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), user.ID))

	_, err = svc.Get(context.Background(), user.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	require.Len(t, pub.published, 2)
	assert.Equal(t, events.RoutingKeyUserDeleted, pub.published[1].routingKey)
}

func TestService_PublishFailureDoesNotFailOperation(t *testing.T) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{err: assert.AnError}
	svc := application.NewService(repo, pub, testLogger())

	// The broker being down must not surface to the caller.
	user, err := svc.Register(context.Background(), application.RegisterInput{Username: "erin", Email: "erin@example.com"})
	require.NoError(t, err)

	stored, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "erin", stored.Username)
}
