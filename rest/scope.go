package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/restgen/restgen/schema/query"
)

// ScopeConf configures the JWTScope middleware.
type ScopeConf struct {
	// Key is the HMAC secret used to verify the tokens.
	Key []byte
	// Claim is the name of the claim holding the scope value (i.e.:
	// tenant_id).
	Claim string
	// Field is the model field the queries are scoped on (i.e.: tenantId).
	Field string
	// Required rejects requests without token. When false, requests without
	// token are served unscoped.
	Required bool
}

// JWTScope returns a middleware verifying the bearer token of the request, if
// any, and restricting every query compiled for the request to the items whose
// Field equals the token Claim. The scope is added to the base options of the
// request context so the client can't override it.
func JWTScope(c ScopeConf) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tokenString, found := bearerToken(r)
			if !found {
				if c.Required {
					sendError(w, r, ErrUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return c.Key, nil
			})
			if err != nil || !token.Valid {
				zerolog.Ctx(ctx).Debug().Err(err).Msg("Invalid token")
				e := ErrUnauthorized
				if errors.Is(err, jwt.ErrTokenExpired) {
					e = &Error{http.StatusUnauthorized, "TokenExpired", "Token Expired", nil}
				}
				sendError(w, r, e)
				return
			}
			scope, found := claims[c.Claim]
			if !found || scope == nil || scope == "" {
				// The provided token is malformed, the scope claim is missing
				sendError(w, r, &Error{http.StatusForbidden, "MissingScope",
					fmt.Sprintf("Token has no `%s' claim", c.Claim), nil})
				return
			}
			b, _ := BaseOptionsFromContext(ctx)
			b.Where = query.Merge(query.ReplaceArrays, b.Where, map[string]interface{}{c.Field: scope})
			next.ServeHTTP(w, r.WithContext(WithBaseOptions(ctx, b)))
		})
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>"
// header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(h[7:])
	return t, t != ""
}

// sendError answers a request rejected before reaching a Handler.
func sendError(w http.ResponseWriter, r *http.Request, e *Error) {
	headers := http.Header{}
	ctx, body := DefaultResponseFormatter{}.FormatError(r.Context(), headers, e, r.Method == http.MethodHead)
	DefaultResponseSender{}.Send(ctx, w, e.Code, headers, body)
}
