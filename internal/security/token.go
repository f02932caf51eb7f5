package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"talkify/api/internal/config"
)

var (
	ErrSecretsMissing  = errors.New("token secrets are not configured")
	ErrTokenGeneration = errors.New("token generation failed")
	ErrInvalidToken    = errors.New("invalid token")
)

const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenIssuer signs and verifies the two session tokens. Access and refresh
// tokens use distinct secrets and lifetimes.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(cfg config.SecurityConfig) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.JWTAccessTTL,
		refreshTTL:    cfg.JWTRefreshTTL,
		now:           time.Now,
	}
}

// WithNowFunc overrides the clock, for tests.
func (i *TokenIssuer) WithNowFunc(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

func (i *TokenIssuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// Configured reports whether both signing secrets are present.
func (i *TokenIssuer) Configured() bool {
	return len(i.accessSecret) > 0 && len(i.refreshSecret) > 0
}

// AccessConfigured reports whether access tokens can be verified.
func (i *TokenIssuer) AccessConfigured() bool {
	return len(i.accessSecret) > 0
}

func (i *TokenIssuer) Issue(userID string) (TokenPair, error) {
	if !i.Configured() {
		return TokenPair{}, ErrSecretsMissing
	}

	now := i.now()
	access, accessExp, err := i.sign(userID, audienceAccess, i.accessSecret, now, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := i.sign(userID, audienceRefresh, i.refreshSecret, now, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *TokenIssuer) sign(userID, audience string, secret []byte, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: sign %s token: %w", ErrTokenGeneration, audience, err)
	}
	return signed, expiresAt, nil
}

func (i *TokenIssuer) VerifyAccessToken(tokenStr string) (Claims, error) {
	if !i.AccessConfigured() {
		return Claims{}, ErrSecretsMissing
	}
	return i.verify(tokenStr, audienceAccess, i.accessSecret)
}

func (i *TokenIssuer) VerifyRefreshToken(tokenStr string) (Claims, error) {
	if len(i.refreshSecret) == 0 {
		return Claims{}, ErrSecretsMissing
	}
	return i.verify(tokenStr, audienceRefresh, i.refreshSecret)
}

func (i *TokenIssuer) verify(tokenStr, audience string, secret []byte) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
