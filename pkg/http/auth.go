package xhttp

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const actorUserValueKey = "xhttp.actor"

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingClaims = errors.New("missing actor claims")
)

// Actor is the authenticated caller of a request.
type Actor struct {
	AccountID int64
	Role      string
}

type JWTVerifier struct {
	secret []byte
	leeway time.Duration
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), leeway: 5 * time.Second}
}

// ParseActor validates an HS256 token and extracts sub (account id) and role.
func (v *JWTVerifier) ParseActor(tokenString string) (Actor, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.leeway))
	if err != nil || !tok.Valid {
		return Actor{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return Actor{}, ErrMissingClaims
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, ErrMissingClaims
	}
	return Actor{AccountID: id, Role: role}, nil
}

// Sign mints a token for the given actor; used by the dev CLI and tests.
func (v *JWTVerifier) Sign(actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(actor.AccountID, 10),
		"role": actor.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// AuthMiddleware rejects requests without a valid bearer token, except for
// paths ending with one of skipSuffixes.
func AuthMiddleware(verifier *JWTVerifier, skipSuffixes ...string) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return func(ctx *RequestCtx) {
			path := string(ctx.Path())
			for _, s := range skipSuffixes {
				if strings.HasSuffix(path, s) {
					next(ctx)
					return
				}
			}

			h := ctx.Request.Header.Peek("Authorization")
			if !bytes.HasPrefix(h, []byte("Bearer ")) {
				writeAuthError(ctx, "missing bearer token")
				return
			}
			actor, err := verifier.ParseActor(string(bytes.TrimPrefix(h, []byte("Bearer "))))
			if err != nil {
				writeAuthError(ctx, err.Error())
				return
			}
			ctx.SetUserValue(actorUserValueKey, actor)
			next(ctx)
		}
	}
}

func ActorFrom(ctx *RequestCtx) (Actor, bool) {
	a, ok := ctx.UserValue(actorUserValueKey).(Actor)
	return a, ok
}

// WithActor is the test hook for handlers that run without the middleware.
func WithActor(ctx *RequestCtx, actor Actor) {
	ctx.SetUserValue(actorUserValueKey, actor)
}

func writeAuthError(ctx *RequestCtx, msg string) {
	WriteError(ctx, StatusUnauthorized, "unauthorized", msg)
}
