package handler

import (
	"context"

	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int) (model.User, error)
	UpdateUser(ctx context.Context, id int, req model.UpdateUserRequest) (model.User, error)
	DeleteUser(ctx context.Context, id int) error

	CreateBook(ctx context.Context, req model.CreateBookRequest, addedBy int) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)
	UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id int) error
	BookStats(ctx context.Context) (model.BookStats, error)

	CreateRequest(ctx context.Context, userID, bookID int) (model.Request, error)
	ListRequests(ctx context.Context) ([]model.Request, error)
	RequestsByUser(ctx context.Context, userID int) ([]model.Request, error)
	RequestsByBook(ctx context.Context, bookID int) ([]model.Request, error)
	GetRequest(ctx context.Context, id int) (model.Request, error)
	UpdateRequestStatus(ctx context.Context, requestID int, action model.RequestStatus) (model.Request, error)
}

var _ LibraryService = (*service.Service)(nil)
