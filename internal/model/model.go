package model

import (
	"time"
)

type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

type BookStatus string

const (
	BookAvailable BookStatus = "AVAILABLE"
	BookBorrowed  BookStatus = "BORROWED"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
	RequestReturned RequestStatus = "RETURNED"
)

// Action values accepted by the request status update.
var LegalActions = map[RequestStatus]struct{}{
	RequestApproved: {},
	RequestRejected: {},
	RequestReturned: {},
}

type User struct {
	ID       int    `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	Username string `json:"username" db:"username"`
	Age      *int   `json:"age" db:"age"`
	Role     Role   `json:"role" db:"role"`
}

// Book.Status is a denormalized cache of "some APPROVED request on this book
// has not been RETURNED yet"; it is maintained by the lifecycle transition,
// not derived per query.
type Book struct {
	ID          int        `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Author      string     `json:"author" db:"author"`
	BookNumber  string     `json:"bookNumber" db:"book_number"`
	PublishYear int        `json:"publishYear" db:"publish_year"`
	Genre       string     `json:"genre" db:"genre"`
	Status      BookStatus `json:"status" db:"status"`
	AddedByID   int        `json:"addedById" db:"added_by"`
	AddedBy     *User      `json:"addedBy,omitempty" db:"-"`
	Requests    []Request  `json:"requests,omitempty" db:"-"`
}

type Request struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"userId" db:"user_id"`
	BookID     int       `json:"bookId" db:"book_id"`
	BorrowDate time.Time `json:"borrowDate" db:"borrow_date"`
	// ReturnDate is the due date computed at creation, not the moment the
	// book actually came back.
	ReturnDate time.Time     `json:"returnDate" db:"return_date"`
	Status     RequestStatus `json:"status" db:"status"`
	User       *User         `json:"user,omitempty" db:"-"`
	Book       *Book         `json:"book,omitempty" db:"-"`
}

type CreateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Age      *int    `json:"age"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Age      *int    `json:"age"`
	Role     *Role   `json:"role"`
}

type CreateBookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	BookNumber  *string `json:"bookNumber"`
	PublishYear *int    `json:"publishYear"`
	Genre       *string `json:"genre"`
}

type UpdateBookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	BookNumber  *string `json:"bookNumber"`
	PublishYear *int    `json:"publishYear"`
	Genre       *string `json:"genre"`
}

type CreateRequestRequest struct {
	UserID int `json:"userId" validate:"required"`
	BookID int `json:"bookId" validate:"required"`
}

type UpdateRequestStatusRequest struct {
	Action RequestStatus `json:"action"`
}

// BookFilter narrows the catalog listing; Search matches a substring of
// title or author.
type BookFilter struct {
	Status string
	Genre  string
	Search string
}

type BookStats struct {
	Total     int `json:"total" db:"total"`
	Available int `json:"available" db:"available"`
	Borrowed  int `json:"borrowed" db:"borrowed"`
}
