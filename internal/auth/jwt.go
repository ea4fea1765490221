package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dinehall-order-engine/internal/authority"
)

// Claims is the staff access token payload. Tier is carried as its display
// name (SERVER, SUPERVISOR, MANAGER) so terminals can show it without a
// lookup.
type Claims struct {
	StaffID    string `json:"staffId"`
	LocationID string `json:"locationId"`
	Tier       string `json:"tier"`
	Name       string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) StaffIDInt() (int64, error) {
	return strconv.ParseInt(c.StaffID, 10, 64)
}

func (c *Claims) AuthorityTier() authority.Tier {
	return authority.TierFromName(c.Tier)
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	return claims, nil
}

// IssueAccessToken signs a staff token. Credential verification happens in
// the identity service; this only mints the claims it hands back.
func IssueAccessToken(staffID, locationID int64, tier authority.Tier, name, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		StaffID:    strconv.FormatInt(staffID, 10),
		LocationID: strconv.FormatInt(locationID, 10),
		Tier:       tier.String(),
		Name:       name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
