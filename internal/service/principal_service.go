package service

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	"github.com/noah-isme/sma-appeals-api/internal/repository"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

// TokenConfig configures access token verification. Tokens are issued by the identity service.
type TokenConfig struct {
	Secret string
	Issuer string
}

// PrincipalService turns bearer tokens into principals.
type PrincipalService struct {
	users  userDirectory
	logger *zap.Logger
	config TokenConfig
}

// NewPrincipalService constructs the service. When users is nil, principals are built from
// token claims alone and treated as active.
func NewPrincipalService(users userDirectory, logger *zap.Logger, config TokenConfig) *PrincipalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrincipalService{users: users, logger: logger, config: config}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *PrincipalService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unsupported role")
	}

	return claims, nil
}

// Resolve loads the principal behind validated claims. Active status and role come from the
// user directory so deactivation applies to tokens already issued.
func (s *PrincipalService) Resolve(ctx context.Context, claims *models.JWTClaims) (*models.Principal, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if s.users == nil {
		return &models.Principal{ID: claims.UserID, Name: claims.FullName, Role: claims.Role, Active: true}, nil
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != claims.Role {
		s.logger.Warn("token role differs from directory role",
			zap.String("user_id", user.ID),
			zap.String("token_role", string(claims.Role)),
			zap.String("directory_role", string(user.Role)))
	}
	return models.PrincipalFromUser(user), nil
}

// Authenticate validates the token and resolves its principal.
func (s *PrincipalService) Authenticate(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, claims)
}
