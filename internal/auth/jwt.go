package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func parseTTL() time.Duration {
	if s := os.Getenv("JWT_EXPIRES_IN"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 24 * time.Hour
}

// Token is a freshly signed session token plus the metadata the caller
// needs to persist its session row.
type Token struct {
	Signed    string
	JWTID     string
	ExpiresAt time.Time
}

// Sign issues an HS256 token for the user. Subject is the email; the user
// id, role and tenant ride along as claims so downstream services never
// need a local lookup to authorize a request.
func Sign(email, userID, role string, tenantID *string) (Token, error) {
	key := []byte(os.Getenv("JWT_SECRET"))
	jti := uuid.NewString()
	exp := time.Now().Add(parseTTL())
	claims := jwt.MapClaims{
		"sub":  email,
		"uid":  userID,
		"role": role,
		"jti":  jti,
		"exp":  exp.Unix(),
		"iat":  time.Now().Unix(),
	}
	if tenantID != nil {
		claims["tenant_id"] = *tenantID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return Token{}, err
	}
	return Token{Signed: signed, JWTID: jti, ExpiresAt: exp}, nil
}

func Verify(tokenStr string) (Claims, error) {
	key := []byte(os.Getenv("JWT_SECRET"))
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sub, _ := mapc["sub"].(string)
	uid, _ := mapc["uid"].(string)
	role, _ := mapc["role"].(string)
	tenant, _ := mapc["tenant_id"].(string)
	jti, _ := mapc["jti"].(string)
	return Claims{Subject: sub, UserID: uid, Role: role, TenantID: tenant, JWTID: jti}, nil
}
