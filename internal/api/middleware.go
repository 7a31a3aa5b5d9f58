package api

import (
	"context"
	"fmt"
	"net/http"
)

// requestScope is filled in as a request moves through the middleware so the
// outermost handler can report who was calling when something failed.
type requestScope struct {
	userId int
}

const requestScopeKey contextKey = "request-scope"

func scopeFromContext(ctx context.Context) *requestScope {
	scope, _ := ctx.Value(requestScopeKey).(*requestScope)
	return scope
}

func (s *MessagingApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := &requestScope{}
		r = r.WithContext(context.WithValue(r.Context(), requestScopeKey, scope))

		defer func() {
			p := recover()
			if p == nil {
				return
			}

			panicErr, ok := p.(error)
			if !ok {
				panicErr = fmt.Errorf("%v", p)
			}

			caller := "anonymous"
			if scope.userId != 0 {
				caller = fmt.Sprintf("user %d", scope.userId)
			}
			s.log.Printf("panic: %s %s (%s): %v", r.Method, r.URL.Path, caller, panicErr)

			errResp := NewInternalServerError(panicErr)
			w.Header().Set("Connection", "close")
			s.writeJson(w, errResp.StatusCode, errResp)
		}()

		next.ServeHTTP(w, r)
	})
}

// authMiddleware rejects requests without a valid token and stores the
// caller's user id in the request context.
func (s *MessagingApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := tokenFromRequest(r)
		if err != nil {
			s.writeError(w, NewUnauthorizedError())
			return
		}

		userId, err := s.extractUserIdFromToken(tokenString)
		if err != nil {
			s.log.Printf("%s %s: rejected token: %v", r.Method, r.URL.Path, err)
			s.writeError(w, NewUnauthorizedError())
			return
		}

		if scope := scopeFromContext(r.Context()); scope != nil {
			scope.userId = userId
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next(w, r.WithContext(WithUserId(r.Context(), userId)))
	}
}
