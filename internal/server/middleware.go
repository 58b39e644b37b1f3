package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type ctxKey int

const ctxKeySession ctxKey = iota

// sessionMiddleware parses the {sessionID} path parameter once for every
// route below it.
func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "sessionID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeySession, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) uint64 {
	return r.Context().Value(ctxKeySession).(uint64)
}

// operatorAuthMiddleware requires "Authorization: Bearer <token>". An empty
// token leaves the route open.
func operatorAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "not authorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
