package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"classattend/internal/attendance"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
}

// Claims represents JWT payload. Courses lists the courses the subject is
// enrolled in or teaches, depending on Role.
type Claims struct {
	Subject string   `json:"sub"`
	Role    string   `json:"role"`
	Courses []string `json:"courses,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the caller identity.
func (c Claims) Actor() (attendance.Actor, error) {
	if c.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	a := attendance.NewActor(attendance.Role(c.Role), c.Subject, c.Courses)
	if a == nil {
		return nil, errors.Errorf("unknown role %q", c.Role)
	}
	return a, nil
}

// Issue issues signed access and refresh tokens.
func Issue(subject string, role attendance.Role, courses []string, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	claims := func(exp time.Time) Claims {
		return Claims{
			Subject: subject,
			Role:    string(role),
			Courses: courses,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Subject:   subject,
				ExpiresAt: jwt.NewNumericDate(exp),
				IssuedAt:  jwt.NewNumericDate(now),
			},
		}
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims(accessExp)).SignedString([]byte(key))
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "sign access token")
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims(refreshExp)).SignedString([]byte(key))
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "sign refresh token")
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
