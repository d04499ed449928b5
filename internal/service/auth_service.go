package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenType distinguishes the three principal kinds.
type TokenType string

const (
	TokenTypeStudent  TokenType = "student"
	TokenTypeGuest    TokenType = "guest"
	TokenTypeReviewer TokenType = "reviewer"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	SubjectID uuid.UUID `json:"subject_id"`
	Name      string    `json:"name,omitempty"`
}

// IsTaker reports whether the claims belong to an exam taker (student or
// guest).
func (c *Claims) IsTaker() bool {
	return c.TokenType == TokenTypeStudent || c.TokenType == TokenTypeGuest
}

// AuthService handles password hashing and JWT issuance/validation.
type AuthService struct {
	cfg *config.Config
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// HashPassword hashes a password with the configured bcrypt cost.
// Default cost is 6 for high-concurrency performance. Adjustable via BCRYPT_COST env.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateTakerToken creates a JWT for an exam taker. Guest subjects get a
// guest-typed token issued at attempt start; students get one at login.
func (s *AuthService) GenerateTakerToken(subject *model.Subject) (string, error) {
	tokenType := TokenTypeStudent
	if subject.Kind == model.SubjectKindGuest {
		tokenType = TokenTypeGuest
	}
	return s.sign(tokenType, subject.ID, subject.Name)
}

// GenerateReviewerToken creates a JWT for a reviewer.
func (s *AuthService) GenerateReviewerToken(reviewer *model.Reviewer) (string, error) {
	return s.sign(TokenTypeReviewer, reviewer.ID, reviewer.Name)
}

func (s *AuthService) sign(tokenType TokenType, subjectID uuid.UUID, name string) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: tokenType,
		SubjectID: subjectID,
		Name:      name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
