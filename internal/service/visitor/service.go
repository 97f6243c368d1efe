package visitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const issuer = "coursemart"

// Service issues bearer tokens for anonymous storefront visitors. The token
// subject is the visitor id, which namespaces the cart and chat state.
type Service struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func New(secret string, accessTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = 30 * 24 * time.Hour
	}
	return &Service{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

func (s *Service) Issue(ctx context.Context) (accessToken, visitorID string, err error) {
	visitorID = uuid.NewString()
	accessToken, err = s.sign(visitorID)
	if err != nil {
		return "", "", err
	}
	return accessToken, visitorID, nil
}

func (s *Service) sign(visitorID string) (string, error) {
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   visitorID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign visitor token: %w", err)
	}
	return token, nil
}

func (s *Service) LookupByToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if !claims.VerifyIssuer(issuer, true) || !claims.VerifyExpiresAt(s.now(), true) {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}
