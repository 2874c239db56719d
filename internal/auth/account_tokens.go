package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 30 * 24 * time.Hour
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingIssuer        = errors.New("issuer must be provided")
	errMissingAudience      = errors.New("audience must be provided")
	errMissingSubjectClaim  = errors.New("subject claim must be provided")
	// ErrInvalidTokenConfig wraps every constructor validation failure.
	ErrInvalidTokenConfig = errors.New("auth: invalid account token config")
)

// AccountTokensConfig configures the mirror account token issuer.
type AccountTokensConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// AccountTokens issues and validates HS256 bearer tokens whose subject is the
// mirror account the records belong to.
type AccountTokens struct {
	config AccountTokensConfig
	clock  func() time.Time
}

// NewAccountTokens validates cfg and constructs an AccountTokens.
func NewAccountTokens(cfg AccountTokensConfig) (*AccountTokens, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenConfig, errMissingSigningSecret)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenConfig, errMissingIssuer)
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenConfig, errMissingAudience)
	}
	if cfg.TokenTTL < 0 {
		return nil, fmt.Errorf("%w: token ttl must not be negative", ErrInvalidTokenConfig)
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AccountTokens{
		config: AccountTokensConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        strings.TrimSpace(cfg.Issuer),
			Audience:      strings.TrimSpace(cfg.Audience),
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}, nil
}

// Issue produces a signed token for accountID and its expiry instant.
func (a *AccountTokens) Issue(accountID string) (string, time.Time, error) {
	subject := strings.TrimSpace(accountID)
	if subject == "" {
		return "", time.Time{}, errMissingSubjectClaim
	}

	now := a.clock().UTC()
	expiresAt := now.Add(a.config.TokenTTL).UTC()

	registered := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.config.Issuer,
		Audience:  []string{a.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(a.config.SigningSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken ensures the token is well formed and returns the account id.
func (a *AccountTokens) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return a.config.SigningSecret, nil
		},
		jwt.WithAudience(a.config.Audience),
		jwt.WithIssuer(a.config.Issuer),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubjectClaim
	}
	return claims.Subject, nil
}
