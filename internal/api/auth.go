package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ctxKeyClaims is the context key for the authenticated caller's claims.
const ctxKeyClaims contextKey = "claims"

var (
	errMissingToken   = errors.New("missing bearer token")
	errMissingSubject = errors.New("token has no subject")
)

// Claims are the JWT claims accepted by the API. Tokens are minted by
// Gray Logic Core with the shared secret.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// authMiddleware rejects requests without a valid HS256 bearer token and
// stores the claims in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			writeUnauthorized(w, err.Error())
			return
		}

		claims, err := s.parseToken(raw)
		if err != nil {
			s.logger.Debug("rejected token", "error", err, "path", r.URL.Path)
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseToken validates signature, expiry, issuer (when configured) and subject.
func (s *Server) parseToken(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if s.secCfg.JWT.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.secCfg.JWT.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.secCfg.JWT.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(token), nil
}

// claimsFromContext returns the claims stored by authMiddleware.
func claimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return claims, ok
}
