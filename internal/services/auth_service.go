package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"grocer/internal/cache"
	"grocer/internal/models"
	"grocer/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidUser        = errors.New("invalid user")
)

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	IsAdmin   bool      `json:"isAdmin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	denylist  cache.TokenDenylist
	jwtSecret []byte
	tokenTTL  time.Duration
	validate  *validator.Validate
}

// NewAuthService creates a new AuthService. A nil denylist disables logout
// revocation; tokens then stay valid until they expire.
func NewAuthService(userRepo repositories.UserRepository, denylist cache.TokenDenylist, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		userRepo:  userRepo,
		denylist:  denylist,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		validate:  validator.New(),
	}
}

// RegisterUser registers a new user, hashes their password, and saves them to the database.
func (s *AuthService) RegisterUser(user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Name = strings.TrimSpace(user.Name)
	if err := s.validate.Struct(user); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	if existingUser, err := s.userRepo.GetByEmail(user.Email); err == nil && existingUser != nil {
		return fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
		}
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// LoginUser authenticates a user by email and returns a signed JWT.
func (s *AuthService) LoginUser(email, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti":      uuid.New().String(),
		"user_id":  user.ID,
		"email":    user.Email,
		"is_admin": user.IsAdmin,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &LoginResult{Token: tokenString, IsAdmin: user.IsAdmin, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if
// valid and not revoked.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if s.denylist != nil {
		jti, _ := claims["jti"].(string)
		revoked, err := s.denylist.IsRevoked(ctx, jti)
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token has been revoked", ErrInvalidToken)
		}
	}
	return claims, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}
	if s.denylist == nil {
		return nil
	}
	jti, _ := claims["jti"].(string)
	exp, _ := claims["exp"].(float64)
	ttl := time.Until(time.Unix(int64(exp), 0))
	if err := s.denylist.Revoke(ctx, jti, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Profile returns the user without the password hash.
func (s *AuthService) Profile(userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// AddAddress appends a saved delivery address to the user's profile.
func (s *AuthService) AddAddress(userID string, address models.Address) ([]models.Address, error) {
	address.Postcode = strings.ToUpper(strings.TrimSpace(address.Postcode))
	address.Address = strings.TrimSpace(address.Address)
	if err := s.validate.Struct(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	addresses := append(user.Addresses, address)
	if err := s.userRepo.UpdateAddresses(userID, addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// EnsureAdmin creates the back-office account if no user has that email yet.
func (s *AuthService) EnsureAdmin(email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.userRepo.GetByEmail(strings.ToLower(email)); err == nil {
		return nil
	}
	admin := &models.User{Name: "Administrator", Email: email, Password: password, IsAdmin: true}
	if err := s.RegisterUser(admin); err != nil {
		return err
	}
	log.Printf("Created admin account %s", admin.Email)
	return nil
}

func (s *AuthService) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
