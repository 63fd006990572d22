package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified claim set of a caller
type Claims struct {
	Email string
	Name  string
}

// ClaimsVerifier checks HS256 bearer tokens issued by the identity provider
type ClaimsVerifier struct {
	secret []byte
	issuer string
}

// NewClaimsVerifier creates a verifier. An empty issuer accepts any issuer.
func NewClaimsVerifier(secret, issuer string) *ClaimsVerifier {
	return &ClaimsVerifier{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token carrying claims. Used by the CLI and tests.
func (v *ClaimsVerifier) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	mapClaims := jwt.MapClaims{
		"email": claims.Email,
		"name":  claims.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		mapClaims["iss"] = v.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	tokenString, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify validates a token and returns its claims. Missing claims come back
// empty; the identity resolver decides whether that is fatal.
func (v *ClaimsVerifier) Verify(tokenString string) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("invalid token claims")
	}

	email, _ := mapClaims["email"].(string)
	name, _ := mapClaims["name"].(string)
	return Claims{Email: email, Name: name}, nil
}
