package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/internal/repository"
)

// borrowPeriod is the fixed due-date policy applied at request creation.
const borrowPeriod = 14 * 24 * time.Hour

type Service struct {
	log    *zap.Logger
	repo   repository.Repository
	strict bool
	now    func() time.Time
}

type Option func(*Service)

// WithStrictTransitions turns on transition-legality checks and the
// conditional book update on approval. Off by default: the upstream contract
// allows RETURNED on a never-approved request and concurrent approvals of one
// book.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) {
		s.strict = strict
	}
}

func NewService(repo repository.Repository, log *zap.Logger, ops ...Option) *Service {
	s := &Service{
		log:  log,
		repo: repo,
		now:  time.Now,
	}
	for _, op := range ops {
		op(s)
	}
	return s
}

func (s *Service) CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	return s.repo.CreateUser(ctx, req)
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id int) (model.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id int, req model.UpdateUserRequest) (model.User, error) {
	return s.repo.UpdateUser(ctx, id, req)
}

func (s *Service) DeleteUser(ctx context.Context, id int) error {
	return s.repo.DeleteUser(ctx, id)
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest, addedBy int) (model.Book, error) {
	return s.repo.CreateBook(ctx, req, addedBy)
}

func (s *Service) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	return s.repo.ListBooks(ctx, filter)
}

func (s *Service) GetBook(ctx context.Context, id int) (model.Book, error) {
	return s.repo.GetBookDetail(ctx, id)
}

func (s *Service) UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	return s.repo.UpdateBook(ctx, id, req)
}

func (s *Service) DeleteBook(ctx context.Context, id int) error {
	return s.repo.DeleteBook(ctx, id)
}

func (s *Service) BookStats(ctx context.Context) (model.BookStats, error) {
	return s.repo.BookStats(ctx)
}

func (s *Service) ListRequests(ctx context.Context) ([]model.Request, error) {
	return s.repo.ListRequests(ctx)
}

func (s *Service) RequestsByUser(ctx context.Context, userID int) ([]model.Request, error) {
	return s.repo.RequestsByUser(ctx, userID)
}

func (s *Service) RequestsByBook(ctx context.Context, bookID int) ([]model.Request, error) {
	return s.repo.RequestsByBook(ctx, bookID)
}

func (s *Service) GetRequest(ctx context.Context, id int) (model.Request, error) {
	return s.repo.GetRequest(ctx, id)
}

// CreateRequest opens a borrow request against an AVAILABLE book. A missing
// book and an unavailable one are deliberately indistinguishable to the
// caller. The book stays AVAILABLE until some request on it is approved, so
// several PENDING requests may coexist.
func (s *Service) CreateRequest(ctx context.Context, userID, bookID int) (model.Request, error) {
	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Request{}, errs.ErrBookUnavailable
		}
		return model.Request{}, err
	}
	if book.Status != model.BookAvailable {
		return model.Request{}, errs.ErrBookUnavailable
	}

	borrowDate := s.now()
	returnDate := borrowDate.Add(borrowPeriod)
	req, err := s.repo.CreateRequest(ctx, userID, bookID, borrowDate, returnDate)
	if err != nil {
		return model.Request{}, err
	}
	s.log.Info("request created",
		zap.Int("requestID", req.ID),
		zap.Int("bookID", bookID),
		zap.Int("userID", userID))
	return req, nil
}

// UpdateRequestStatus runs the lifecycle step for the given action:
//
//	APPROVED -> request APPROVED, book BORROWED
//	REJECTED -> request REJECTED, book untouched
//	RETURNED -> request RETURNED, book AVAILABLE
//
// The action is validated before any write. In strict mode the step must be
// legal from the request's current status (PENDING -> APPROVED|REJECTED,
// APPROVED -> RETURNED) and approval only wins while the book is still
// AVAILABLE.
func (s *Service) UpdateRequestStatus(ctx context.Context, requestID int, action model.RequestStatus) (model.Request, error) {
	if _, ok := model.LegalActions[action]; !ok {
		return model.Request{}, errs.ErrInvalidAction
	}

	p := repository.TransitionParams{Status: action}
	switch action {
	case model.RequestApproved:
		borrowed := model.BookBorrowed
		p.BookStatus = &borrowed
		if s.strict {
			available := model.BookAvailable
			p.From = []model.RequestStatus{model.RequestPending}
			p.BookFrom = &available
		}
	case model.RequestRejected:
		if s.strict {
			p.From = []model.RequestStatus{model.RequestPending}
		}
	case model.RequestReturned:
		available := model.BookAvailable
		p.BookStatus = &available
		if s.strict {
			p.From = []model.RequestStatus{model.RequestApproved}
		}
	}

	req, err := s.repo.ApplyTransition(ctx, requestID, p)
	if err != nil {
		return model.Request{}, err
	}
	s.log.Info("request transition",
		zap.Int("requestID", requestID),
		zap.String("status", string(action)))
	return req, nil
}
