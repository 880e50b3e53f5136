package utils

import (
	"accessbus/src/models"
	"accessbus/src/types"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	jwtKeyMu sync.RWMutex
	jwtKey   []byte
)

// SetJWTKey overrides the signing key, e.g. with a value from Secrets Manager.
func SetJWTKey(key []byte) {
	jwtKeyMu.Lock()
	defer jwtKeyMu.Unlock()
	jwtKey = key
}

func JWTKey() []byte {
	jwtKeyMu.RLock()
	key := jwtKey
	jwtKeyMu.RUnlock()
	if key != nil {
		return key
	}
	return []byte(os.Getenv("JWT_SECRET"))
}

type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

func GenerateJWT(user *models.User, kind types.TokenKind, ttl time.Duration) (*IssuedToken, error) {
	now := time.Now()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := &types.Claims{
		Email: user.Email,
		Role:  user.Role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    "accessbus",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(JWTKey())
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// ParseJWT verifies raw and returns its claims with the 401 code that
// describes any failure.
func ParseJWT(raw string, kind types.TokenKind) (*types.Claims, string, error) {
	if raw == "" {
		return nil, types.ERR_MISSING_TOKEN, errors.New("missing authorization token")
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return JWTKey(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.ERR_TOKEN_EXPIRED, errors.New("token has expired")
		}
		return nil, types.ERR_INVALID_TOKEN, errors.New("token is invalid")
	}
	if !tkn.Valid || claims.Kind != kind {
		return nil, types.ERR_INVALID_TOKEN, errors.New("token is invalid")
	}
	return claims, "", nil
}
