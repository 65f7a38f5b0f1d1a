package settlement

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
	"github.com/avoronin/cineseat/internal/notify"
	"github.com/avoronin/cineseat/internal/repository"
	postgresrepo "github.com/avoronin/cineseat/internal/repository/postgres"
	"github.com/avoronin/cineseat/internal/uow"
)

type fakeUoW struct{}

func (f *fakeUoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error,
) error {
	var hooks []uow.AfterCommit
	err := fn(ctx, nil, func(h uow.AfterCommit) {
		hooks = append(hooks, h)
	})
	if err != nil {
		return err
	}
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) BalanceForUpdate(ctx context.Context, tx postgresrepo.DB, userID uuid.UUID) (float64, error) {
	args := m.Called(ctx, tx, userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockLedgerStore) AddToBalance(ctx context.Context, tx postgresrepo.DB, userID uuid.UUID, delta float64) error {
	args := m.Called(ctx, tx, userID, delta)
	return args.Error(0)
}

func (m *MockLedgerStore) SetBalance(ctx context.Context, tx postgresrepo.DB, userID uuid.UUID, balance float64) error {
	args := m.Called(ctx, tx, userID, balance)
	return args.Error(0)
}

func (m *MockLedgerStore) DraftTotal(ctx context.Context, tx postgresrepo.DB, draftID string) (float64, error) {
	args := m.Called(ctx, tx, draftID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockLedgerStore) CreateBooking(ctx context.Context, tx postgresrepo.DB, b *domain.Booking, h *domain.HistoryEntry) error {
	args := m.Called(ctx, tx, b, h)
	return args.Error(0)
}

func (m *MockLedgerStore) BookingByID(ctx context.Context, tx postgresrepo.DB, id string) (*domain.Booking, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockLedgerStore) DeleteBooking(ctx context.Context, tx postgresrepo.DB, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

type MockDraftStore struct {
	mock.Mock
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

type MockSeatStore struct {
	mock.Mock
}

func (m *MockSeatStore) Book(ctx context.Context, tx postgresrepo.DB, seatIDs []uuid.UUID) error {
	args := m.Called(ctx, tx, seatIDs)
	return args.Error(0)
}

func (m *MockSeatStore) Unbook(ctx context.Context, tx postgresrepo.DB, seatIDs []uuid.UUID) error {
	args := m.Called(ctx, tx, seatIDs)
	return args.Error(0)
}

type MockCatalogReader struct {
	mock.Mock
}

func (m *MockCatalogReader) ShowWithMovieTitle(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Show, string, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*domain.Show), args.String(1), args.Error(2)
}

func (m *MockCatalogReader) SeatCodes(ctx context.Context, tx postgresrepo.DB, seatIDs []uuid.UUID) ([]string, error) {
	args := m.Called(ctx, tx, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCatalogReader) UserByID(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
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

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, payload any) error {
	args := m.Called(ctx, topic, key, payload)
	return args.Error(0)
}

type testDeps struct {
	ledger   *MockLedgerStore
	drafts   *MockDraftStore
	seats    *MockSeatStore
	catalog  *MockCatalogReader
	cache    *MockCache
	pubsub   *MockPublisher
	producer *MockProducer
}

func newTestService() (*Service, *testDeps) {
	d := &testDeps{
		ledger:   &MockLedgerStore{},
		drafts:   &MockDraftStore{},
		seats:    &MockSeatStore{},
		catalog:  &MockCatalogReader{},
		cache:    &MockCache{},
		pubsub:   &MockPublisher{},
		producer: &MockProducer{},
	}
	svc := NewService(
		&fakeUoW{}, d.ledger, d.drafts, d.seats, d.catalog, d.cache, d.pubsub, d.producer,
		Config{
			CancelCutoff:       20 * time.Minute,
			RefundRate:         0.8,
			DefaultBalance:     1500,
			NotificationsTopic: "booking-notifications",
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, d
}

func TestConfirm_Success(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	userID := uuid.New()
	seatIDs := []uuid.UUID{uuid.New(), uuid.New()}
	starts := time.Now().Add(2 * time.Hour).UTC()
	draft := &domain.Draft{ID: "draft1", UserID: userID, ShowID: 7, SeatIDs: seatIDs}

	d.drafts.On("ByID", ctx, nil, "draft1").Return(draft, nil).Once()
	d.catalog.On("ShowWithMovieTitle", ctx, nil, int64(7)).
		Return(&domain.Show{ID: 7, StartsAt: starts, BasePrice: 10}, "Heat", nil).Once()
	d.ledger.On("BalanceForUpdate", ctx, nil, userID).Return(1500.0, nil).Once()
	d.ledger.On("DraftTotal", ctx, nil, "draft1").Return(20.0, nil).Once()
	d.ledger.On("AddToBalance", ctx, nil, userID, -20.0).Return(nil).Once()
	d.seats.On("Book", ctx, nil, seatIDs).Return(nil).Once()
	d.catalog.On("SeatCodes", ctx, nil, seatIDs).Return([]string{"A1", "A2"}, nil).Once()
	d.ledger.On("CreateBooking", ctx, nil, mock.AnythingOfType("*domain.Booking"), mock.AnythingOfType("*domain.HistoryEntry")).
		Run(func(args mock.Arguments) {
			b := args.Get(2).(*domain.Booking)
			h := args.Get(3).(*domain.HistoryEntry)
			assert.Equal(t, 20.0, b.TotalAmount)
			assert.Equal(t, b.ID, h.BookingID)
			assert.Equal(t, "Heat", h.MovieTitle)
			assert.Equal(t, []string{"A1", "A2"}, h.SeatCodes)
		}).Return(nil).Once()
	d.drafts.On("Delete", ctx, nil, "draft1").Return(nil).Once()
	d.catalog.On("UserByID", ctx, nil, userID).Return(&domain.User{ID: userID, Email: "u@example.com"}, nil).Once()
	d.cache.On("InvalidateShow", ctx, int64(7)).Return(nil).Once()
	d.pubsub.On("PublishShowChanged", ctx, int64(7)).Return(nil).Once()
	d.producer.On("Publish", ctx, "booking-notifications", mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			ev := args.Get(3).(notify.BookingEvent)
			assert.Equal(t, notify.EventBookingConfirmed, ev.Type)
			assert.Equal(t, "u@example.com", ev.UserEmail)
			assert.Equal(t, 20.0, ev.TotalAmount)
		}).Return(nil).Once()

	booking, err := svc.Confirm(ctx, userID, "draft1")

	assert.NoError(t, err)
	assert.NotNil(t, booking)
	assert.Equal(t, 20.0, booking.TotalAmount)
	assert.Len(t, booking.ID, 16)

	d.ledger.AssertExpectations(t)
	d.drafts.AssertExpectations(t)
	d.seats.AssertExpectations(t)
	d.producer.AssertExpectations(t)
}

func TestConfirm_InsufficientBalance(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	userID := uuid.New()
	draft := &domain.Draft{ID: "draft1", UserID: userID, ShowID: 7, SeatIDs: []uuid.UUID{uuid.New()}}

	d.drafts.On("ByID", ctx, nil, "draft1").Return(draft, nil).Once()
	d.catalog.On("ShowWithMovieTitle", ctx, nil, int64(7)).
		Return(&domain.Show{ID: 7}, "Heat", nil).Once()
	d.ledger.On("BalanceForUpdate", ctx, nil, userID).Return(10.0, nil).Once()
	d.ledger.On("DraftTotal", ctx, nil, "draft1").Return(20.0, nil).Once()

	booking, err := svc.Confirm(ctx, userID, "draft1")

	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Nil(t, booking)
	// nothing settled: no debit, no seat change, draft untouched
	d.ledger.AssertNotCalled(t, "AddToBalance")
	d.seats.AssertNotCalled(t, "Book")
	d.drafts.AssertNotCalled(t, "Delete")
	d.producer.AssertNotCalled(t, "Publish")
}

func TestConfirm_NotOwner(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	draft := &domain.Draft{ID: "draft1", UserID: uuid.New(), ShowID: 7}

	d.drafts.On("ByID", ctx, nil, "draft1").Return(draft, nil).Once()

	booking, err := svc.Confirm(ctx, uuid.New(), "draft1")

	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Nil(t, booking)
	d.ledger.AssertNotCalled(t, "BalanceForUpdate")
}

func TestConfirm_DraftMissing(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	d.drafts.On("ByID", ctx, nil, "missing").Return(nil, repository.ErrNotFound).Once()

	booking, err := svc.Confirm(ctx, uuid.New(), "missing")

	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.Nil(t, booking)
}

func TestConfirm_SeatsAlreadyReleased(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	userID := uuid.New()
	seatIDs := []uuid.UUID{uuid.New()}
	draft := &domain.Draft{ID: "draft1", UserID: userID, ShowID: 7, SeatIDs: seatIDs}

	d.drafts.On("ByID", ctx, nil, "draft1").Return(draft, nil).Once()
	d.catalog.On("ShowWithMovieTitle", ctx, nil, int64(7)).
		Return(&domain.Show{ID: 7}, "Heat", nil).Once()
	d.ledger.On("BalanceForUpdate", ctx, nil, userID).Return(1500.0, nil).Once()
	d.ledger.On("DraftTotal", ctx, nil, "draft1").Return(20.0, nil).Once()
	d.ledger.On("AddToBalance", ctx, nil, userID, -20.0).Return(nil).Once()
	d.seats.On("Book", ctx, nil, seatIDs).Return(repository.ErrSeatStateConflict).Once()

	booking, err := svc.Confirm(ctx, userID, "draft1")

	assert.ErrorIs(t, err, ErrDraftExpired)
	assert.Nil(t, booking)
	d.ledger.AssertNotCalled(t, "CreateBooking")
	d.producer.AssertNotCalled(t, "Publish")
}

func TestCancel_Success(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	userID := uuid.New()
	seatIDs := []uuid.UUID{uuid.New(), uuid.New()}
	starts := time.Now().Add(30 * time.Minute)
	booking := &domain.Booking{ID: "book1", UserID: userID, ShowID: 7, SeatIDs: seatIDs, TotalAmount: 20}

	d.ledger.On("BookingByID", ctx, nil, "book1").Return(booking, nil).Once()
	d.catalog.On("ShowWithMovieTitle", ctx, nil, int64(7)).
		Return(&domain.Show{ID: 7, StartsAt: starts}, "Heat", nil).Once()
	d.ledger.On("BalanceForUpdate", ctx, nil, userID).Return(100.0, nil).Once()
	d.ledger.On("AddToBalance", ctx, nil, userID, 16.0).Return(nil).Once()
	d.seats.On("Unbook", ctx, nil, seatIDs).Return(nil).Once()
	d.ledger.On("DeleteBooking", ctx, nil, "book1").Return(nil).Once()
	d.catalog.On("UserByID", ctx, nil, userID).Return(&domain.User{ID: userID, Email: "u@example.com"}, nil).Once()
	d.catalog.On("SeatCodes", ctx, nil, seatIDs).Return([]string{"A1", "A2"}, nil).Once()
	d.cache.On("InvalidateShow", ctx, int64(7)).Return(nil).Once()
	d.pubsub.On("PublishShowChanged", ctx, int64(7)).Return(nil).Once()
	d.producer.On("Publish", ctx, "booking-notifications", "book1", mock.Anything).
		Run(func(args mock.Arguments) {
			ev := args.Get(3).(notify.BookingEvent)
			assert.Equal(t, notify.EventBookingCancelled, ev.Type)
			assert.Equal(t, 16.0, ev.RefundAmount)
		}).Return(nil).Once()

	refund, err := svc.Cancel(ctx, userID, "book1")

	assert.NoError(t, err)
	assert.Equal(t, 16.0, refund)
	d.ledger.AssertExpectations(t)
	d.seats.AssertExpectations(t)
	d.producer.AssertExpectations(t)
}

func TestCancel_TooLate(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	userID := uuid.New()
	// show starts inside the cutoff window
	starts := time.Now().Add(10 * time.Minute)
	booking := &domain.Booking{ID: "book1", UserID: userID, ShowID: 7, TotalAmount: 20}

	d.ledger.On("BookingByID", ctx, nil, "book1").Return(booking, nil).Once()
	d.catalog.On("ShowWithMovieTitle", ctx, nil, int64(7)).
		Return(&domain.Show{ID: 7, StartsAt: starts}, "Heat", nil).Once()

	refund, err := svc.Cancel(ctx, userID, "book1")

	assert.ErrorIs(t, err, ErrTooLateToCancel)
	assert.Equal(t, 0.0, refund)
	d.ledger.AssertNotCalled(t, "AddToBalance")
	d.seats.AssertNotCalled(t, "Unbook")
	d.ledger.AssertNotCalled(t, "DeleteBooking")
}

func TestCancel_NotOwner(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	booking := &domain.Booking{ID: "book1", UserID: uuid.New(), ShowID: 7}

	d.ledger.On("BookingByID", ctx, nil, "book1").Return(booking, nil).Once()

	refund, err := svc.Cancel(ctx, uuid.New(), "book1")

	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, 0.0, refund)
}

func TestCancel_BookingMissing(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	d.ledger.On("BookingByID", ctx, nil, "missing").Return(nil, repository.ErrNotFound).Once()

	refund, err := svc.Cancel(ctx, uuid.New(), "missing")

	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.Equal(t, 0.0, refund)
}

func TestRefill_ResetsToDefault(t *testing.T) {
	svc, d := newTestService()

	ctx := context.Background()
	userID := uuid.New()

	d.ledger.On("BalanceForUpdate", ctx, nil, userID).Return(3.0, nil).Once()
	d.ledger.On("SetBalance", ctx, nil, userID, 1500.0).Return(nil).Once()

	balance, err := svc.Refill(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, 1500.0, balance)
	d.ledger.AssertExpectations(t)
}
