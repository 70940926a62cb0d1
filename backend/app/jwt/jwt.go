// Package jwtutil issues the bearer tokens of administrators, users and
// enrolled agents.
package jwtutil

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// roleAgent mirrors models.RoleAgent; agents keep their API token until they
// are unenrolled, so it carries no expiry.
const roleAgent = "agent"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"uname"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Signer struct {
	Secret []byte
	Issuer string
	ExpMin int
}

func (s *Signer) Sign(userID uint, username, role string) (string, error) {
	now := time.Now()
	rc := jwt.RegisteredClaims{
		Issuer:   s.Issuer,
		Subject:  strconv.FormatUint(uint64(userID), 10),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if role != roleAgent && s.ExpMin > 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(s.ExpMin) * time.Minute))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: userID, Username: username, Role: role, RegisteredClaims: rc})
	return token.SignedString(s.Secret)
}

// Parse accepts HS256 tokens of this issuer only.
func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) { return s.Secret, nil }, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
