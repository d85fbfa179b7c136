// Package auth provides optional bearer-token authentication for the API.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const CtxSubject ctxKey = "sub"

// JWTCfg holds JWT authentication configuration.
type JWTCfg struct {
	HS256Secret string // HMAC secret for HS256 tokens
	Required    bool   // Reject requests without a subject
	DevMode     bool   // Allow X-Debug-Sub header (DANGEROUS: only for local dev)
}

// Enabled reports whether the middleware does anything at all.
func (c JWTCfg) Enabled() bool {
	return c.HS256Secret != "" || c.DevMode || c.Required
}

// Middleware authenticates requests.
//
// A bearer token, when present, must validate against HS256Secret. Without a
// token, DevMode accepts X-Debug-Sub. Requests with no subject pass through
// anonymously unless Required is set.
func Middleware(cfg JWTCfg) func(http.Handler) http.Handler {
	if cfg.DevMode {
		log.Warn().Msg("SECURITY WARNING: DevMode enabled - X-Debug-Sub header will bypass JWT authentication")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimSpace(h[len("Bearer "):])
			}

			sub := ""
			if cfg.DevMode && tok == "" {
				sub = r.Header.Get("X-Debug-Sub")
				if sub != "" {
					log.Ctx(r.Context()).Debug().Str("sub", sub).Msg("using X-Debug-Sub header (dev mode)")
				}
			}

			if tok != "" {
				s, err := ValidateToken(tok, cfg.HS256Secret)
				if err != nil {
					log.Ctx(r.Context()).Warn().Err(err).Msg("jwt validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				sub = s
			}

			if sub == "" {
				if cfg.Required {
					log.Ctx(r.Context()).Warn().Msg("missing subject (no JWT sub or X-Debug-Sub header)")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), CtxSubject, sub)
			logger := log.Ctx(ctx).With().Str("sub", sub).Logger()
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ValidateToken checks an HS256 token and returns its subject.
func ValidateToken(tok, secret string) (string, error) {
	if secret == "" {
		return "", jwt.ErrTokenUnverifiable
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !t.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", jwt.ErrTokenRequiredClaimMissing
	}
	return sub, nil
}

// Subject extracts the authenticated subject from ctx, or "".
func Subject(ctx context.Context) string {
	if s, ok := ctx.Value(CtxSubject).(string); ok {
		return s
	}
	return ""
}
