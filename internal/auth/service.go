package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraudechat/internal/logger"
	"fraudechat/internal/models"
	"fraudechat/internal/redis"
)

var (
	ErrTokenRequired = errors.New("token is missing")
	ErrTokenExpired  = errors.New("token has expired")
	ErrTokenInvalid  = errors.New("invalid token")
	ErrTokenRevoked  = errors.New("token has been revoked")
)

const revokedKeyPrefix = "auth:revoked:"

// Claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID  int64  `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Service issues, validates, and revokes signed access tokens.
type Service struct {
	secret     []byte
	tokenTTL   time.Duration
	revoked    *redis.Client
	log        *logger.Logger
	headerName string
	now        func() time.Time
}

// NewService constructs an auth service. rdb may be nil, in which case logout
// cannot revoke tokens before they expire.
func NewService(secret string, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		secret:     []byte(secret),
		tokenTTL:   ttl,
		revoked:    rdb,
		log:        log.Named("auth"),
		headerName: "Authorization",
		now:        time.Now,
	}
}

// IssueToken signs an HS256 token for the user and returns it with its expiry.
func (s *Service) IssueToken(user *models.User) (string, time.Time, error) {
	if user == nil || user.ID <= 0 {
		return "", time.Time{}, errors.New("invalid user")
	}
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, expiry and revocation, returning the claims.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenRequired
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, ErrTokenInvalid
	}
	if s.revoked != nil && claims.ID != "" {
		revoked, err := s.revoked.Marked(ctx, revokedKeyPrefix+claims.ID)
		if err != nil {
			s.log.Warn("revocation lookup failed", zap.Error(err))
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// RevokeToken blacklists the token id until the token would expire anyway.
func (s *Service) RevokeToken(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || s.revoked == nil {
		return nil
	}
	ttl := s.tokenTTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	left, err := s.revoked.Remaining(ctx, revokedKeyPrefix+claims.ID)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if left > 0 {
		s.log.Debug("token already revoked", zap.String("jti", claims.ID), zap.Duration("remaining", left))
		return nil
	}
	if err := s.revoked.Mark(ctx, revokedKeyPrefix+claims.ID, claims.UserID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevocationEnabled reports whether logout can invalidate tokens early.
func (s *Service) RevocationEnabled() bool {
	return s.revoked != nil
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
