package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
)

var (
	// appJWTConfig is the default JWT auth middleware config; the signing key
	// and token lifetime come from the app config at server setup.
	appJWTConfig = middleware.JWTConfig{
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
	}
	jwtIssuer          string
	jwtExpirationDelta time.Duration
)

func initJWTConfig(conf *core.Config) {
	appJWTConfig.SigningKey = []byte(conf.SecretKey)
	jwtIssuer = conf.AppName
	jwtExpirationDelta = conf.Server.JWTExpirationDelta
}

// Claims represents the authorization claims transmitted via a JWT.
// Identity is asserted upstream; this service only reads it.
type Claims struct {
	jwt.StandardClaims
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	SchoolID string   `json:"school_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (c Claims) IsLearner() bool { return c.hasRole(classroom.RoleLearner) }
func (c Claims) IsTeacher() bool { return c.hasRole(classroom.RoleTeacher) }
func (c Claims) IsAdmin() bool   { return c.hasRole(classroom.RoleAdmin) }

func (c Claims) hasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// School returns the school UUID carried in the claims; zero when unset or
// malformed.
func (c Claims) School() uuid.UUID {
	id, err := uuid.Parse(c.SchoolID)
	if err != nil {
		return uuid.UUID{}
	}
	return id
}

func GetClaims(username, email string, schoolID uuid.UUID, roles ...string) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    jwtIssuer,
			Subject:   username,
			Audience:  "Learninghub",
			ExpiresAt: now.Add(jwtExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: username,
		Email:    email,
		SchoolID: schoolID.String(),
		Roles:    roles,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
