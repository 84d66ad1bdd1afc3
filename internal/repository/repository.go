package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int) (model.User, error)
	UpdateUser(ctx context.Context, id int, req model.UpdateUserRequest) (model.User, error)
	DeleteUser(ctx context.Context, id int) error

	CreateBook(ctx context.Context, req model.CreateBookRequest, addedBy int) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)
	GetBookDetail(ctx context.Context, id int) (model.Book, error)
	UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id int) error
	BookStats(ctx context.Context) (model.BookStats, error)

	CreateRequest(ctx context.Context, userID, bookID int, borrowDate, returnDate time.Time) (model.Request, error)
	ListRequests(ctx context.Context) ([]model.Request, error)
	RequestsByUser(ctx context.Context, userID int) ([]model.Request, error)
	RequestsByBook(ctx context.Context, bookID int) ([]model.Request, error)
	GetRequest(ctx context.Context, id int) (model.Request, error)
	ApplyTransition(ctx context.Context, requestID int, p TransitionParams) (model.Request, error)
}

// TransitionParams is one lifecycle step: the request status to write, the
// statuses it may be applied from (empty means unconditional), and the book
// cascade. Both writes share a transaction.
type TransitionParams struct {
	Status     model.RequestStatus
	From       []model.RequestStatus
	BookStatus *model.BookStatus
	BookFrom   *model.BookStatus
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName    = `users`
	booksTableName    = `books`
	requestsTableName = `requests`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	userColumns    = `id, name, email, username, age, role`
	bookColumns    = `id, title, author, book_number, publish_year, genre, status, added_by`
	requestColumns = `id, user_id, book_id, borrow_date, return_date, status`
)

// wrapPgError hides driver detail behind the error taxonomy so raw constraint
// text never reaches a response.
func wrapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return errs.ErrConflict
		case pgerrcode.ForeignKeyViolation:
			return errs.ErrReferenced
		}
	}
	return err
}

func (r *repository) CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	query, args, err := qb.Insert(usersTableName).
		Columns("name", "email", "username", "age").
		Values(req.Name, req.Email, req.Username, req.Age).
		Suffix("returning " + userColumns).
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		r.log.Error("CreateUser", zap.String("q", query), zap.Error(err))
		return model.User{}, wrapPgError(err)
	}
	return user, nil
}

func (r *repository) ListUsers(ctx context.Context) ([]model.User, error) {
	query, args, err := qb.Select(userColumns).
		From(usersTableName).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	users := make([]model.User, 0)
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) GetUser(ctx context.Context, id int) (model.User, error) {
	query, args, err := qb.Select(userColumns).
		From(usersTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) UpdateUser(ctx context.Context, id int, req model.UpdateUserRequest) (model.User, error) {
	q := qb.Update(usersTableName).Where(sq.Eq{"id": id})
	touched := false
	if req.Name != nil {
		q = q.Set("name", *req.Name)
		touched = true
	}
	if req.Email != nil {
		q = q.Set("email", *req.Email)
		touched = true
	}
	if req.Username != nil {
		q = q.Set("username", *req.Username)
		touched = true
	}
	if req.Age != nil {
		q = q.Set("age", *req.Age)
		touched = true
	}
	if req.Role != nil {
		q = q.Set("role", *req.Role)
		touched = true
	}
	if !touched {
		return r.GetUser(ctx, id)
	}

	query, args, err := q.Suffix("returning " + userColumns).ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, wrapPgError(err)
	}
	return user, nil
}

func (r *repository) DeleteUser(ctx context.Context, id int) error {
	query, args, err := qb.Delete(usersTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapPgError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest, addedBy int) (model.Book, error) {
	query, args, err := qb.Insert(booksTableName).
		Columns("title", "author", "book_number", "publish_year", "genre", "status", "added_by").
		Values(req.Title, req.Author, req.BookNumber, req.PublishYear, req.Genre, model.BookAvailable, addedBy).
		Suffix("returning " + bookColumns).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", query), zap.Error(err))
		return model.Book{}, wrapPgError(err)
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	q := qb.Select(bookColumns).
		From(booksTableName).
		OrderBy("id")

	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Genre != "" {
		q = q.Where(sq.Eq{"genre": filter.Genre})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"author": pattern},
		})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	books := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	if err := r.attachAddedBy(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) GetBook(ctx context.Context, id int) (model.Book, error) {
	query, args, err := qb.Select(bookColumns).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

// GetBookDetail embeds addedBy and the book's requests, each request carrying
// its user where that user still exists.
func (r *repository) GetBookDetail(ctx context.Context, id int) (model.Book, error) {
	book, err := r.GetBook(ctx, id)
	if err != nil {
		return model.Book{}, err
	}

	if added, err := r.GetUser(ctx, book.AddedByID); err == nil {
		book.AddedBy = &added
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.Book{}, err
	}

	reqs, err := r.requestsWhere(ctx, sq.Eq{"book_id": id})
	if err != nil {
		return model.Book{}, err
	}
	if err := r.attachRequestUsers(ctx, reqs); err != nil {
		return model.Book{}, err
	}
	book.Requests = reqs
	return book, nil
}

func (r *repository) UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	q := qb.Update(booksTableName).Where(sq.Eq{"id": id})
	touched := false
	if req.Title != nil {
		q = q.Set("title", *req.Title)
		touched = true
	}
	if req.Author != nil {
		q = q.Set("author", *req.Author)
		touched = true
	}
	if req.BookNumber != nil {
		q = q.Set("book_number", *req.BookNumber)
		touched = true
	}
	if req.PublishYear != nil {
		q = q.Set("publish_year", *req.PublishYear)
		touched = true
	}
	if req.Genre != nil {
		q = q.Set("genre", *req.Genre)
		touched = true
	}
	if !touched {
		return r.GetBook(ctx, id)
	}

	query, args, err := q.Suffix("returning " + bookColumns).ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, wrapPgError(err)
	}
	return book, nil
}

func (r *repository) DeleteBook(ctx context.Context, id int) error {
	query, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapPgError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) BookStats(ctx context.Context) (model.BookStats, error) {
	q := `
select count(*)                                      as total,
       count(*) filter (where status = 'AVAILABLE')  as available,
       count(*) filter (where status = 'BORROWED')   as borrowed
from books`

	var stats model.BookStats
	if err := r.db.GetContext(ctx, &stats, q); err != nil {
		return model.BookStats{}, err
	}
	return stats, nil
}

func (r *repository) CreateRequest(ctx context.Context, userID, bookID int, borrowDate, returnDate time.Time) (model.Request, error) {
	query, args, err := qb.Insert(requestsTableName).
		Columns("user_id", "book_id", "borrow_date", "return_date", "status").
		Values(userID, bookID, borrowDate, returnDate, model.RequestPending).
		Suffix("returning " + requestColumns).
		ToSql()
	if err != nil {
		return model.Request{}, err
	}

	var req model.Request
	if err := r.db.GetContext(ctx, &req, query, args...); err != nil {
		r.log.Error("CreateRequest", zap.String("q", query), zap.Error(err))
		return model.Request{}, wrapPgError(err)
	}
	return req, nil
}

func (r *repository) ListRequests(ctx context.Context) ([]model.Request, error) {
	reqs, err := r.requestsWhere(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := r.attachRequestUsers(ctx, reqs); err != nil {
		return nil, err
	}
	if err := r.attachRequestBooks(ctx, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *repository) RequestsByUser(ctx context.Context, userID int) ([]model.Request, error) {
	reqs, err := r.requestsWhere(ctx, sq.Eq{"user_id": userID})
	if err != nil {
		return nil, err
	}
	if err := r.attachRequestBooks(ctx, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *repository) RequestsByBook(ctx context.Context, bookID int) ([]model.Request, error) {
	reqs, err := r.requestsWhere(ctx, sq.Eq{"book_id": bookID})
	if err != nil {
		return nil, err
	}
	if err := r.attachRequestUsers(ctx, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *repository) GetRequest(ctx context.Context, id int) (model.Request, error) {
	query, args, err := qb.Select(requestColumns).
		From(requestsTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Request{}, err
	}

	var req model.Request
	if err := r.db.GetContext(ctx, &req, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Request{}, errs.ErrNotFound
		}
		return model.Request{}, err
	}

	reqs := []model.Request{req}
	if err := r.attachRequestUsers(ctx, reqs); err != nil {
		return model.Request{}, err
	}
	if err := r.attachRequestBooks(ctx, reqs); err != nil {
		return model.Request{}, err
	}
	return reqs[0], nil
}

// ApplyTransition writes the request status and the book cascade in one
// transaction. Book.status is a cache of the approved-and-unreturned state,
// so the two writes must not be torn apart by a crash.
func (r *repository) ApplyTransition(ctx context.Context, requestID int, p TransitionParams) (model.Request, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Request{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	upd := qb.Update(requestsTableName).
		Set("status", p.Status).
		Where(sq.Eq{"id": requestID}).
		Suffix("returning " + requestColumns)
	if len(p.From) > 0 {
		upd = upd.Where(sq.Eq{"status": p.From})
	}
	query, args, err := upd.ToSql()
	if err != nil {
		return model.Request{}, err
	}

	var req model.Request
	if err := tx.GetContext(ctx, &req, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Request{}, r.classifyMissedTransition(ctx, requestID)
		}
		return model.Request{}, err
	}

	if p.BookStatus != nil {
		bq := qb.Update(booksTableName).
			Set("status", *p.BookStatus).
			Where(sq.Eq{"id": req.BookID})
		if p.BookFrom != nil {
			bq = bq.Where(sq.Eq{"status": *p.BookFrom})
		}
		query, args, err := bq.ToSql()
		if err != nil {
			return model.Request{}, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return model.Request{}, err
		}
		if p.BookFrom != nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return model.Request{}, errs.ErrBookUnavailable
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Request{}, err
	}
	return req, nil
}

// classifyMissedTransition tells a missing request apart from one whose
// current status failed the From guard.
func (r *repository) classifyMissedTransition(ctx context.Context, requestID int) error {
	query, args, err := qb.Select("1").
		From(requestsTableName).
		Where(sq.Eq{"id": requestID}).
		ToSql()
	if err != nil {
		return err
	}
	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	return errs.ErrInvalidAction
}

func (r *repository) requestsWhere(ctx context.Context, cond interface{}) ([]model.Request, error) {
	q := qb.Select(requestColumns).
		From(requestsTableName).
		OrderBy("id")
	if cond != nil {
		q = q.Where(cond)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	reqs := make([]model.Request, 0)
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *repository) attachAddedBy(ctx context.Context, books []model.Book) error {
	if len(books) == 0 {
		return nil
	}
	ids := make([]int, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.AddedByID)
	}
	users, err := r.usersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range books {
		if u, ok := users[books[i].AddedByID]; ok {
			user := u
			books[i].AddedBy = &user
		}
	}
	return nil
}

func (r *repository) attachRequestUsers(ctx context.Context, reqs []model.Request) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.UserID)
	}
	users, err := r.usersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range reqs {
		// a deleted user leaves the request orphaned; the embed is simply
		// omitted then
		if u, ok := users[reqs[i].UserID]; ok {
			user := u
			reqs[i].User = &user
		}
	}
	return nil
}

func (r *repository) attachRequestBooks(ctx context.Context, reqs []model.Request) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.BookID)
	}

	query, args, err := qb.Select(bookColumns).
		From(booksTableName).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return err
	}
	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return err
	}
	byID := make(map[int]model.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	for i := range reqs {
		if b, ok := byID[reqs[i].BookID]; ok {
			book := b
			reqs[i].Book = &book
		}
	}
	return nil
}

func (r *repository) usersByIDs(ctx context.Context, ids []int) (map[int]model.User, error) {
	query, args, err := qb.Select(userColumns).
		From(usersTableName).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	byID := make(map[int]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
