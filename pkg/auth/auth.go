package auth

import (
	"context"
	"net/http"
	"strconv"
)

// UserIDHeader carries the self-asserted caller identity. The value is a
// numeric user id; nothing cryptographic backs it up.
const UserIDHeader = "user-id"

type ctxKey struct{}

type Caller struct {
	UserID int
	Role   string
}

func SetAuthContext(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, caller)
}

func FromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(ctxKey{}).(Caller)
	return caller, ok
}

// Resolver extracts the caller identity from a request. The header
// implementation below mirrors the trusted-header contract; a token or
// session resolver can be substituted without touching handlers.
type Resolver interface {
	Resolve(r *http.Request) (userID int, ok bool)
}

type HeaderResolver struct{}

func NewHeaderResolver() HeaderResolver {
	return HeaderResolver{}
}

func (HeaderResolver) Resolve(r *http.Request) (int, bool) {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
