package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/handler"
	service_mocks "github.com/openshelf/library-service/internal/handler/mocks"
	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/pkg/auth"
)

func newTestRouter(t *testing.T) (*echo.Echo, *service_mocks.MockLibraryService) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	svc := service_mocks.NewMockLibraryService(c)
	log := zap.NewExample().Named("test")
	h := handler.New(svc, auth.NewHeaderResolver(), handler.NopStatsLog{}, log)
	return h.NewRouter(), svc
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestHandler_CreateUser(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLibraryService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok. age defaults to null",
			body: `{"name":"john","email":"j@x.io","username":"john"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					CreateUser(gomock.Any(), model.CreateUserRequest{
						Name:     strPtr("john"),
						Email:    strPtr("j@x.io"),
						Username: strPtr("john"),
					}).
					Return(model.User{
						ID:       1,
						Name:     "john",
						Email:    "j@x.io",
						Username: "john",
						Role:     model.RoleMember,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"data":{"id":1,"name":"john","email":"j@x.io","username":"john","age":null,"role":"MEMBER"}}`,
			},
		},
		{
			name:         "err. username missing",
			body:         `{"name":"john","email":"j@x.io"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"error":"You need to provide name, email, and username"}`,
			},
		},
		{
			name: "err. duplicate email",
			body: `{"name":"john","email":"j@x.io","username":"john"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					CreateUser(gomock.Any(), gomock.Any()).
					Return(model.User{}, errs.ErrConflict)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"error":"email or username already exists"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc := newTestRouter(t)
			tt.mockBehavior(svc)

			r := httptest.NewRequest(http.MethodPost, "/user/", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_GetUser(t *testing.T) {
	t.Parallel()
	e, svc := newTestRouter(t)

	age := 30
	svc.EXPECT().
		GetUser(gomock.Any(), 1).
		Return(model.User{
			ID:       1,
			Name:     "john",
			Email:    "j@x.io",
			Username: "john",
			Age:      &age,
			Role:     model.RoleAdmin,
		}, nil)

	r := httptest.NewRequest(http.MethodGet, "/user/1", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t,
		`{"data":{"id":1,"name":"john","email":"j@x.io","username":"john","age":30,"role":"ADMIN"}}`,
		strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_GetUser_NotFound(t *testing.T) {
	t.Parallel()
	e, svc := newTestRouter(t)

	svc.EXPECT().
		GetUser(gomock.Any(), 42).
		Return(model.User{}, errs.ErrNotFound)

	r := httptest.NewRequest(http.MethodGet, "/user/42", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, `{"error":"User not found"}`, strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_CreateBook_AdminGate(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLibraryService)

	const body = `{"title":"Dune","author":"Frank Herbert","bookNumber":"BN-1","publishYear":1965,"genre":"scifi"}`

	var tests = []struct {
		name         string
		userIDHeader string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:         "err. no user-id header",
			userIDHeader: "",
			body:         body,
			mockBehavior: func(r *service_mocks.MockLibraryService) {},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"error":"Authentication required"}`,
			},
		},
		{
			name:         "err. caller is not admin",
			userIDHeader: "2",
			body:         body,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					GetUser(gomock.Any(), 2).
					Return(model.User{ID: 2, Role: model.RoleMember}, nil)
			},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"error":"Admin access required"}`,
			},
		},
		{
			name:         "err. caller does not exist",
			userIDHeader: "99",
			body:         body,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					GetUser(gomock.Any(), 99).
					Return(model.User{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"error":"Admin access required"}`,
			},
		},
		{
			name:         "ok. admin creates available book",
			userIDHeader: "1",
			body:         body,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					GetUser(gomock.Any(), 1).
					Return(model.User{ID: 1, Role: model.RoleAdmin}, nil)
				r.EXPECT().
					CreateBook(gomock.Any(), model.CreateBookRequest{
						Title:       strPtr("Dune"),
						Author:      strPtr("Frank Herbert"),
						BookNumber:  strPtr("BN-1"),
						PublishYear: intPtr(1965),
						Genre:       strPtr("scifi"),
					}, 1).
					Return(model.Book{
						ID:          2,
						Title:       "Dune",
						Author:      "Frank Herbert",
						BookNumber:  "BN-1",
						PublishYear: 1965,
						Genre:       "scifi",
						Status:      model.BookAvailable,
						AddedByID:   1,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"data":{"id":2,"title":"Dune","author":"Frank Herbert","bookNumber":"BN-1","publishYear":1965,"genre":"scifi","status":"AVAILABLE","addedById":1}}`,
			},
		},
		{
			name:         "err. missing bookNumber",
			userIDHeader: "1",
			body:         `{"title":"Dune","author":"Frank Herbert","publishYear":1965,"genre":"scifi"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					GetUser(gomock.Any(), 1).
					Return(model.User{ID: 1, Role: model.RoleAdmin}, nil)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"error":"Missing required field: bookNumber"}`,
			},
		},
		{
			name:         "err. duplicate book number",
			userIDHeader: "1",
			body:         body,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					GetUser(gomock.Any(), 1).
					Return(model.User{ID: 1, Role: model.RoleAdmin}, nil)
				r.EXPECT().
					CreateBook(gomock.Any(), gomock.Any(), 1).
					Return(model.Book{}, errs.ErrConflict)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"error":"Book number already exists"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc := newTestRouter(t)
			tt.mockBehavior(svc)

			r := httptest.NewRequest(http.MethodPost, "/book/", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.userIDHeader != "" {
				r.Header.Set(auth.UserIDHeader, tt.userIDHeader)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ListBooks(t *testing.T) {
	t.Parallel()
	e, svc := newTestRouter(t)

	svc.EXPECT().
		ListBooks(gomock.Any(), model.BookFilter{Status: "AVAILABLE", Search: "herbert"}).
		Return([]model.Book{
			{
				ID:          2,
				Title:       "Dune",
				Author:      "Frank Herbert",
				BookNumber:  "BN-1",
				PublishYear: 1965,
				Genre:       "scifi",
				Status:      model.BookAvailable,
				AddedByID:   1,
			},
		}, nil)

	r := httptest.NewRequest(http.MethodGet, "/book/?status=AVAILABLE&search=herbert", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t,
		`{"data":[{"id":2,"title":"Dune","author":"Frank Herbert","bookNumber":"BN-1","publishYear":1965,"genre":"scifi","status":"AVAILABLE","addedById":1}]}`,
		strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_BookStats(t *testing.T) {
	t.Parallel()
	e, svc := newTestRouter(t)

	svc.EXPECT().
		GetUser(gomock.Any(), 1).
		Return(model.User{ID: 1, Role: model.RoleAdmin}, nil)
	svc.EXPECT().
		BookStats(gomock.Any()).
		Return(model.BookStats{Total: 10, Available: 7, Borrowed: 3}, nil)

	r := httptest.NewRequest(http.MethodGet, "/book/stats", http.NoBody)
	r.Header.Set(auth.UserIDHeader, "1")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t,
		`{"data":{"total":10,"available":7,"borrowed":3}}`,
		strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_DeleteBook_Referenced(t *testing.T) {
	t.Parallel()
	e, svc := newTestRouter(t)

	svc.EXPECT().
		GetUser(gomock.Any(), 1).
		Return(model.User{ID: 1, Role: model.RoleAdmin}, nil)
	svc.EXPECT().
		DeleteBook(gomock.Any(), 2).
		Return(errs.ErrReferenced)

	r := httptest.NewRequest(http.MethodDelete, "/book/2", http.NoBody)
	r.Header.Set(auth.UserIDHeader, "1")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, `{"error":"Cannot delete book with active requests"}`, strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_CreateRequest(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLibraryService)

	borrowDate := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	returnDate := borrowDate.Add(14 * 24 * time.Hour)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"userId":3,"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					CreateRequest(gomock.Any(), 3, 7).
					Return(model.Request{
						ID:         5,
						UserID:     3,
						BookID:     7,
						BorrowDate: borrowDate,
						ReturnDate: returnDate,
						Status:     model.RequestPending,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"data":{"id":5,"userId":3,"bookId":7,"borrowDate":"2024-01-02T03:04:05Z","returnDate":"2024-01-16T03:04:05Z","status":"PENDING"}}`,
			},
		},
		{
			name: "err. book unavailable",
			body: `{"userId":3,"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					CreateRequest(gomock.Any(), 3, 7).
					Return(model.Request{}, errs.ErrBookUnavailable)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"error":"Book is not available"}`,
			},
		},
		{
			name:         "err. bookId missing",
			body:         `{"userId":3}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc := newTestRouter(t)
			tt.mockBehavior(svc)

			r := httptest.NewRequest(http.MethodPost, "/request/", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_UpdateRequestStatus(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLibraryService)

	borrowDate := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	returnDate := borrowDate.Add(14 * 24 * time.Hour)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok. approved",
			body: `{"action":"APPROVED"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					UpdateRequestStatus(gomock.Any(), 5, model.RequestApproved).
					Return(model.Request{
						ID:         5,
						UserID:     3,
						BookID:     7,
						BorrowDate: borrowDate,
						ReturnDate: returnDate,
						Status:     model.RequestApproved,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"data":{"id":5,"userId":3,"bookId":7,"borrowDate":"2024-01-02T03:04:05Z","returnDate":"2024-01-16T03:04:05Z","status":"APPROVED"}}`,
			},
		},
		{
			name: "err. invalid action",
			body: `{"action":"LOST"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					UpdateRequestStatus(gomock.Any(), 5, model.RequestStatus("LOST")).
					Return(model.Request{}, errs.ErrInvalidAction)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"error":"Invalid action"}`,
			},
		},
		{
			name: "err. request not found",
			body: `{"action":"APPROVED"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					UpdateRequestStatus(gomock.Any(), 5, model.RequestApproved).
					Return(model.Request{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"error":"Request not found"}`,
			},
		},
		{
			name: "err. internal detail withheld",
			body: `{"action":"APPROVED"}`,
			mockBehavior: func(r *service_mocks.MockLibraryService) {
				r.EXPECT().
					UpdateRequestStatus(gomock.Any(), 5, model.RequestApproved).
					Return(model.Request{}, errors.New("pq: deadlock detected"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"error":"internal error"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, svc := newTestRouter(t)
			tt.mockBehavior(svc)

			r := httptest.NewRequest(http.MethodPut, "/request/5", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_Ping(t *testing.T) {
	t.Parallel()
	e, _ := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"ping":"pong"}`, strings.Trim(w.Body.String(), "\n"))
}
