package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/internal/repository"
	repo_mocks "github.com/openshelf/library-service/internal/repository/mocks"
	"github.com/openshelf/library-service/internal/service"
)

func newService(t *testing.T, ops ...service.Option) (*service.Service, *repo_mocks.MockRepository) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	repo := repo_mocks.NewMockRepository(c)
	return service.NewService(repo, zap.NewExample().Named("test"), ops...), repo
}

func TestService_CreateRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("available book gets a pending request due in 14 days", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)

		repo.EXPECT().GetBook(ctx, 7).
			Return(model.Book{ID: 7, Status: model.BookAvailable}, nil)
		repo.EXPECT().CreateRequest(ctx, 3, 7, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, userID, bookID int, borrowDate, returnDate time.Time) (model.Request, error) {
				require.Equal(t, borrowDate.Add(14*24*time.Hour), returnDate)
				require.WithinDuration(t, time.Now(), borrowDate, time.Minute)
				return model.Request{
					ID:         1,
					UserID:     userID,
					BookID:     bookID,
					BorrowDate: borrowDate,
					ReturnDate: returnDate,
					Status:     model.RequestPending,
				}, nil
			})

		req, err := svc.CreateRequest(ctx, 3, 7)
		require.NoError(t, err)
		require.Equal(t, model.RequestPending, req.Status)
	})

	t.Run("borrowed book is unavailable", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)

		repo.EXPECT().GetBook(ctx, 7).
			Return(model.Book{ID: 7, Status: model.BookBorrowed}, nil)

		_, err := svc.CreateRequest(ctx, 3, 7)
		require.ErrorIs(t, err, errs.ErrBookUnavailable)
	})

	t.Run("missing book reported as unavailable", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)

		repo.EXPECT().GetBook(ctx, 99).
			Return(model.Book{}, errs.ErrNotFound)

		_, err := svc.CreateRequest(ctx, 3, 99)
		require.ErrorIs(t, err, errs.ErrBookUnavailable)
	})

	t.Run("repo failure propagates", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)

		repo.EXPECT().GetBook(ctx, 7).
			Return(model.Book{}, errors.New("db internal"))

		_, err := svc.CreateRequest(ctx, 3, 7)
		require.EqualError(t, err, "db internal")
	})
}

func TestService_UpdateRequestStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	borrowed := model.BookBorrowed
	available := model.BookAvailable

	var tests = []struct {
		name       string
		strict     bool
		action     model.RequestStatus
		wantParams repository.TransitionParams
	}{
		{
			name:   "approve cascades book to borrowed",
			action: model.RequestApproved,
			wantParams: repository.TransitionParams{
				Status:     model.RequestApproved,
				BookStatus: &borrowed,
			},
		},
		{
			name:   "reject leaves book untouched",
			action: model.RequestRejected,
			wantParams: repository.TransitionParams{
				Status: model.RequestRejected,
			},
		},
		{
			name:   "return cascades book to available",
			action: model.RequestReturned,
			wantParams: repository.TransitionParams{
				Status:     model.RequestReturned,
				BookStatus: &available,
			},
		},
		{
			name:   "strict approve guards both rows",
			strict: true,
			action: model.RequestApproved,
			wantParams: repository.TransitionParams{
				Status:     model.RequestApproved,
				From:       []model.RequestStatus{model.RequestPending},
				BookStatus: &borrowed,
				BookFrom:   &available,
			},
		},
		{
			name:   "strict return only from approved",
			strict: true,
			action: model.RequestReturned,
			wantParams: repository.TransitionParams{
				Status:     model.RequestReturned,
				From:       []model.RequestStatus{model.RequestApproved},
				BookStatus: &available,
			},
		},
		{
			name:   "strict reject only from pending",
			strict: true,
			action: model.RequestRejected,
			wantParams: repository.TransitionParams{
				Status: model.RequestRejected,
				From:   []model.RequestStatus{model.RequestPending},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newService(t, service.WithStrictTransitions(tt.strict))

			repo.EXPECT().ApplyTransition(ctx, 5, tt.wantParams).
				Return(model.Request{ID: 5, BookID: 7, Status: tt.action}, nil)

			req, err := svc.UpdateRequestStatus(ctx, 5, tt.action)
			require.NoError(t, err)
			require.Equal(t, tt.action, req.Status)
		})
	}

	t.Run("unknown action fails before any write", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)

		_, err := svc.UpdateRequestStatus(ctx, 5, model.RequestStatus("LOST"))
		require.ErrorIs(t, err, errs.ErrInvalidAction)
	})

	t.Run("pending is not an action", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)

		_, err := svc.UpdateRequestStatus(ctx, 5, model.RequestPending)
		require.ErrorIs(t, err, errs.ErrInvalidAction)
	})

	t.Run("strict illegal transition surfaces invalid action", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t, service.WithStrictTransitions(true))

		repo.EXPECT().ApplyTransition(ctx, 5, gomock.Any()).
			Return(model.Request{}, errs.ErrInvalidAction)

		_, err := svc.UpdateRequestStatus(ctx, 5, model.RequestReturned)
		require.ErrorIs(t, err, errs.ErrInvalidAction)
	})

	t.Run("strict approve race loser gets book unavailable", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t, service.WithStrictTransitions(true))

		repo.EXPECT().ApplyTransition(ctx, 6, gomock.Any()).
			Return(model.Request{}, errs.ErrBookUnavailable)

		_, err := svc.UpdateRequestStatus(ctx, 6, model.RequestApproved)
		require.ErrorIs(t, err, errs.ErrBookUnavailable)
	})

	t.Run("missing request", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)

		repo.EXPECT().ApplyTransition(ctx, 42, gomock.Any()).
			Return(model.Request{}, errs.ErrNotFound)

		_, err := svc.UpdateRequestStatus(ctx, 42, model.RequestApproved)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}
