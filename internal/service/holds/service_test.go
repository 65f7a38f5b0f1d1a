package holds

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/avoronin/cineseat/internal/domain"
	"github.com/avoronin/cineseat/internal/repository"
	postgresrepo "github.com/avoronin/cineseat/internal/repository/postgres"
	"github.com/avoronin/cineseat/internal/uow"
)

// fakeUoW runs fn without a real transaction and fires after-commit hooks
// only when fn succeeds, mirroring the real unit of work.
type fakeUoW struct {
	lastErr error
}

func (f *fakeUoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error,
) error {
	var hooks []uow.AfterCommit
	err := fn(ctx, nil, func(h uow.AfterCommit) {
		hooks = append(hooks, h)
	})
	f.lastErr = err
	if err != nil {
		return err
	}
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

type MockSeatStore struct {
	mock.Mock
}

func (m *MockSeatStore) Lock(ctx context.Context, tx postgresrepo.DB, showID int64, seatIDs []uuid.UUID, lockedAt time.Time) error {
	args := m.Called(ctx, tx, showID, seatIDs, lockedAt)
	return args.Error(0)
}

func (m *MockSeatStore) Release(ctx context.Context, tx postgresrepo.DB, seatIDs []uuid.UUID) error {
	args := m.Called(ctx, tx, seatIDs)
	return args.Error(0)
}

type MockDraftStore struct {
	mock.Mock
}

func (m *MockDraftStore) Create(ctx context.Context, tx postgresrepo.DB, d *domain.Draft) error {
	args := m.Called(ctx, tx, d)
	return args.Error(0)
}

func (m *MockDraftStore) ByID(ctx context.Context, tx postgresrepo.DB, id string) (*domain.Draft, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Draft), args.Error(1)
}

func (m *MockDraftStore) Delete(ctx context.Context, tx postgresrepo.DB, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockDraftStore) ExpiredBefore(ctx context.Context, tx postgresrepo.DB, cutoff time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, tx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockShowReader struct {
	mock.Mock
}

func (m *MockShowReader) ShowByID(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Show, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Show), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidateShow(ctx context.Context, showID int64) error {
	args := m.Called(ctx, showID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishShowChanged(ctx context.Context, showID int64) error {
	args := m.Called(ctx, showID)
	return args.Error(0)
}

func newTestService(seats *MockSeatStore, drafts *MockDraftStore, shows *MockShowReader, cache *MockCache, pubsub *MockPublisher) *Service {
	return NewService(
		&fakeUoW{}, seats, drafts, shows, cache, pubsub,
		Config{HoldTimeout: 10 * time.Minute, SweepBatch: 100},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestCreateDraft_Success(t *testing.T) {
	seats := &MockSeatStore{}
	drafts := &MockDraftStore{}
	shows := &MockShowReader{}
	cache := &MockCache{}
	pubsub := &MockPublisher{}
	svc := newTestService(seats, drafts, shows, cache, pubsub)

	ctx := context.Background()
	userID := uuid.New()
	seatIDs := []uuid.UUID{uuid.New(), uuid.New()}

	shows.On("ShowByID", ctx, nil, int64(7)).Return(&domain.Show{ID: 7}, nil).Once()
	drafts.On("Create", ctx, nil, mock.AnythingOfType("*domain.Draft")).Return(nil).Once()
	seats.On("Lock", ctx, nil, int64(7), seatIDs, mock.AnythingOfType("time.Time")).Return(nil).Once()
	cache.On("InvalidateShow", ctx, int64(7)).Return(nil).Once()
	pubsub.On("PublishShowChanged", ctx, int64(7)).Return(nil).Once()

	draft, err := svc.CreateDraft(ctx, userID, 7, seatIDs)

	assert.NoError(t, err)
	assert.NotNil(t, draft)
	assert.Len(t, draft.ID, 16)
	assert.Equal(t, userID, draft.UserID)
	assert.Equal(t, int64(7), draft.ShowID)
	assert.Equal(t, seatIDs, draft.SeatIDs)

	seats.AssertExpectations(t)
	drafts.AssertExpectations(t)
	cache.AssertExpectations(t)
	pubsub.AssertExpectations(t)
}

func TestCreateDraft_DeduplicatesSeatIDs(t *testing.T) {
	seats := &MockSeatStore{}
	drafts := &MockDraftStore{}
	shows := &MockShowReader{}
	cache := &MockCache{}
	pubsub := &MockPublisher{}
	svc := newTestService(seats, drafts, shows, cache, pubsub)

	ctx := context.Background()
	seatID := uuid.New()

	shows.On("ShowByID", ctx, nil, int64(7)).Return(&domain.Show{ID: 7}, nil).Once()
	drafts.On("Create", ctx, nil, mock.AnythingOfType("*domain.Draft")).Return(nil).Once()
	seats.On("Lock", ctx, nil, int64(7), []uuid.UUID{seatID}, mock.AnythingOfType("time.Time")).Return(nil).Once()
	cache.On("InvalidateShow", ctx, int64(7)).Return(nil).Once()
	pubsub.On("PublishShowChanged", ctx, int64(7)).Return(nil).Once()

	draft, err := svc.CreateDraft(ctx, uuid.New(), 7, []uuid.UUID{seatID, seatID, seatID})

	assert.NoError(t, err)
	assert.Equal(t, []uuid.UUID{seatID}, draft.SeatIDs)
	seats.AssertExpectations(t)
}

func TestCreateDraft_NoSeats(t *testing.T) {
	svc := newTestService(&MockSeatStore{}, &MockDraftStore{}, &MockShowReader{}, &MockCache{}, &MockPublisher{})

	draft, err := svc.CreateDraft(context.Background(), uuid.New(), 7, nil)

	assert.ErrorIs(t, err, ErrNoSeatsSelected)
	assert.Nil(t, draft)
}

func TestCreateDraft_ShowMissing(t *testing.T) {
	seats := &MockSeatStore{}
	drafts := &MockDraftStore{}
	shows := &MockShowReader{}
	svc := newTestService(seats, drafts, shows, &MockCache{}, &MockPublisher{})

	ctx := context.Background()
	shows.On("ShowByID", ctx, nil, int64(99)).Return(nil, repository.ErrNotFound).Once()

	draft, err := svc.CreateDraft(ctx, uuid.New(), 99, []uuid.UUID{uuid.New()})

	assert.ErrorIs(t, err, ErrShowNotFound)
	assert.Nil(t, draft)
	drafts.AssertNotCalled(t, "Create")
	seats.AssertNotCalled(t, "Lock")
}

func TestCreateDraft_SecondDraftConflicts(t *testing.T) {
	seats := &MockSeatStore{}
	drafts := &MockDraftStore{}
	shows := &MockShowReader{}
	cache := &MockCache{}
	pubsub := &MockPublisher{}
	svc := newTestService(seats, drafts, shows, cache, pubsub)

	ctx := context.Background()
	shows.On("ShowByID", ctx, nil, int64(7)).Return(&domain.Show{ID: 7}, nil).Once()
	drafts.On("Create", ctx, nil, mock.AnythingOfType("*domain.Draft")).Return(repository.ErrConflict).Once()

	draft, err := svc.CreateDraft(ctx, uuid.New(), 7, []uuid.UUID{uuid.New()})

	assert.ErrorIs(t, err, ErrDraftConflict)
	assert.Nil(t, draft)
	seats.AssertNotCalled(t, "Lock")
	cache.AssertNotCalled(t, "InvalidateShow")
	pubsub.AssertNotCalled(t, "PublishShowChanged")
}

func TestCreateDraft_SeatsUnavailable(t *testing.T) {
	seats := &MockSeatStore{}
	drafts := &MockDraftStore{}
	shows := &MockShowReader{}
	cache := &MockCache{}
	svc := newTestService(seats, drafts, shows, cache, &MockPublisher{})

	ctx := context.Background()
	seatIDs := []uuid.UUID{uuid.New()}

	shows.On("ShowByID", ctx, nil, int64(7)).Return(&domain.Show{ID: 7}, nil).Once()
	drafts.On("Create", ctx, nil, mock.AnythingOfType("*domain.Draft")).Return(nil).Once()
	seats.On("Lock", ctx, nil, int64(7), seatIDs, mock.AnythingOfType("time.Time")).Return(repository.ErrSeatsUnavailable).Once()

	draft, err := svc.CreateDraft(ctx, uuid.New(), 7, seatIDs)

	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.Nil(t, draft)
	// the hook must not fire when the transaction fails
	cache.AssertNotCalled(t, "InvalidateShow")
}

func TestDeleteDraft_Success(t *testing.T) {
	seats := &MockSeatStore{}
	drafts := &MockDraftStore{}
	cache := &MockCache{}
	pubsub := &MockPublisher{}
	svc := newTestService(seats, drafts, &MockShowReader{}, cache, pubsub)

	ctx := context.Background()
	userID := uuid.New()
	seatIDs := []uuid.UUID{uuid.New(), uuid.New()}
	draft := &domain.Draft{ID: "d1", UserID: userID, ShowID: 7, SeatIDs: seatIDs}

	drafts.On("ByID", ctx, nil, "d1").Return(draft, nil).Once()
	seats.On("Release", ctx, nil, seatIDs).Return(nil).Once()
	drafts.On("Delete", ctx, nil, "d1").Return(nil).Once()
	cache.On("InvalidateShow", ctx, int64(7)).Return(nil).Once()
	pubsub.On("PublishShowChanged", ctx, int64(7)).Return(nil).Once()

	err := svc.DeleteDraft(ctx, userID, "d1")

	assert.NoError(t, err)
	seats.AssertExpectations(t)
	drafts.AssertExpectations(t)
}

func TestDeleteDraft_NotOwner(t *testing.T) {
	seats := &MockSeatStore{}
	drafts := &MockDraftStore{}
	svc := newTestService(seats, drafts, &MockShowReader{}, &MockCache{}, &MockPublisher{})

	ctx := context.Background()
	draft := &domain.Draft{ID: "d1", UserID: uuid.New(), ShowID: 7}

	drafts.On("ByID", ctx, nil, "d1").Return(draft, nil).Once()

	err := svc.DeleteDraft(ctx, uuid.New(), "d1")

	assert.ErrorIs(t, err, ErrNotOwner)
	seats.AssertNotCalled(t, "Release")
	drafts.AssertNotCalled(t, "Delete")
}

func TestDeleteDraft_NotFound(t *testing.T) {
	drafts := &MockDraftStore{}
	svc := newTestService(&MockSeatStore{}, drafts, &MockShowReader{}, &MockCache{}, &MockPublisher{})

	ctx := context.Background()
	drafts.On("ByID", ctx, nil, "missing").Return(nil, repository.ErrNotFound).Once()

	err := svc.DeleteDraft(ctx, uuid.New(), "missing")

	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestReleaseExpired_SkipsConsumedDrafts(t *testing.T) {
	seats := &MockSeatStore{}
	drafts := &MockDraftStore{}
	cache := &MockCache{}
	pubsub := &MockPublisher{}
	svc := newTestService(seats, drafts, &MockShowReader{}, cache, pubsub)

	ctx := context.Background()
	seatIDs := []uuid.UUID{uuid.New()}
	alive := &domain.Draft{ID: "old1", UserID: uuid.New(), ShowID: 7, SeatIDs: seatIDs}

	drafts.On("ExpiredBefore", ctx, nil, mock.AnythingOfType("time.Time"), 100).
		Return([]string{"old1", "gone"}, nil).Once()
	drafts.On("ByID", ctx, nil, "old1").Return(alive, nil).Once()
	seats.On("Release", ctx, nil, seatIDs).Return(nil).Once()
	drafts.On("Delete", ctx, nil, "old1").Return(nil).Once()
	// confirmed between scan and release
	drafts.On("ByID", ctx, nil, "gone").Return(nil, repository.ErrNotFound).Once()
	cache.On("InvalidateShow", ctx, int64(7)).Return(nil).Once()
	pubsub.On("PublishShowChanged", ctx, int64(7)).Return(nil).Once()

	released, err := svc.ReleaseExpired(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, released)
	seats.AssertExpectations(t)
	drafts.AssertExpectations(t)
}

func TestReleaseExpired_NothingExpired(t *testing.T) {
	drafts := &MockDraftStore{}
	svc := newTestService(&MockSeatStore{}, drafts, &MockShowReader{}, &MockCache{}, &MockPublisher{})

	ctx := context.Background()
	drafts.On("ExpiredBefore", ctx, nil, mock.AnythingOfType("time.Time"), 100).
		Return([]string{}, nil).Once()

	released, err := svc.ReleaseExpired(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 0, released)
}
