package identity

import (
	"crypto"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/systmms/dbsts/internal/config"
	dberrors "github.com/systmms/dbsts/internal/errors"
	"github.com/systmms/dbsts/internal/logging"
)

// RolePrefix scopes token role claims to backend role names.
const RolePrefix = "PG_"

// WebIdentity is the normalized, verified-or-asserted caller identity
// used as input to credential issuance. Produced once per exchange
// call, never persisted directly.
type WebIdentity struct {
	Issuer    string
	Username  string
	Roles     []string
	Database  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ExchangeRequest carries either an opaque bearer assertion or a direct
// identity tuple. Duration is the requested validity in seconds, zero
// when absent.
type ExchangeRequest struct {
	Token    string
	Username string
	Database string
	Roles    []string
	Duration int
}

// Resolver validates inbound assertions and produces WebIdentities.
// When no trust anchor is configured the token path is disabled and
// only direct identity substitution is accepted.
type Resolver struct {
	issuer          string
	audience        string
	claim           string
	key             interface{}
	methods         []string
	defaultDuration time.Duration
	logger          *logging.Logger
}

// NewResolver builds a resolver from the jwt section of the service
// configuration. A malformed trust anchor is a ConfigurationError; a
// missing one merely disables the token path.
func NewResolver(cfg config.JWTConfig, defaultDuration time.Duration, logger *logging.Logger) (*Resolver, error) {
	r := &Resolver{
		issuer:          cfg.Issuer,
		audience:        cfg.Audience,
		claim:           cfg.Claim,
		defaultDuration: defaultDuration,
		logger:          logger,
	}

	if cfg.Issuer == "" {
		return r, nil
	}

	switch {
	case cfg.Secret != "":
		r.key = []byte(cfg.Secret)
		r.methods = []string{"HS256", "HS384", "HS512"}
	case cfg.PublicKey != "":
		key, methods, err := loadPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, dberrors.ConfigurationError{
				Field:   "jwt.public-key",
				Message: err.Error(),
			}
		}
		r.key = key
		r.methods = methods
	}

	return r, nil
}

// loadPublicKey parses a PEM trust anchor, given inline or as a file
// path, and reports the signing methods it can verify.
func loadPublicKey(source string) (crypto.PublicKey, []string, error) {
	pemData := []byte(source)
	if !strings.HasPrefix(strings.TrimSpace(source), "-----BEGIN") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read key file: %w", err)
		}
		pemData = data
	}

	if key, err := jwt.ParseRSAPublicKeyFromPEM(pemData); err == nil {
		return key, []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}, nil
	}
	if key, err := jwt.ParseECPublicKeyFromPEM(pemData); err == nil {
		return key, []string{"ES256", "ES384", "ES512"}, nil
	}
	if key, err := jwt.ParseEdPublicKeyFromPEM(pemData); err == nil {
		return key, []string{"EdDSA"}, nil
	}

	return nil, nil, fmt.Errorf("unsupported or malformed public key")
}

// Resolve produces a WebIdentity from an exchange request, preferring
// the bearer assertion over direct parameters.
func (r *Resolver) Resolve(req ExchangeRequest) (WebIdentity, error) {
	if req.Token != "" {
		return r.resolveToken(req.Token, req.Duration)
	}
	if req.Username != "" {
		return r.resolveDirect(req)
	}
	return WebIdentity{}, dberrors.InvalidRequestError{Message: "missing params"}
}

// resolveDirect is an operator-trusted identity substitution: no
// cryptographic verification, parameters are accepted as asserted.
func (r *Resolver) resolveDirect(req ExchangeRequest) (WebIdentity, error) {
	r.logger.Info("assume web identity request")
	r.logger.Debug("user: %s", req.Username)

	now := time.Now()
	expiration := now.Add(r.defaultDuration)
	if req.Duration > 0 {
		if expd := now.Add(time.Duration(req.Duration) * time.Second); expd.Before(expiration) {
			expiration = expd
		}
	}

	return WebIdentity{
		Issuer:    r.issuer,
		Username:  req.Username,
		Roles:     req.Roles,
		Database:  req.Database,
		CreatedAt: now,
		ExpiresAt: expiration,
	}, nil
}

func (r *Resolver) resolveToken(token string, duration int) (WebIdentity, error) {
	r.logger.Info("assume web identity request")

	if r.key == nil {
		return WebIdentity{}, dberrors.TokenValidationError{
			Message: "token exchange not supported, trust anchor not configured",
		}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(r.methods),
		jwt.WithIssuer(r.issuer),
	}
	if r.audience != "" {
		opts = append(opts, jwt.WithAudience(r.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return r.key, nil
	})
	if err != nil {
		return WebIdentity{}, dberrors.TokenValidationError{
			Message: "invalid or missing token",
			Err:     err,
		}
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return WebIdentity{}, dberrors.TokenValidationError{Message: "missing subject claim"}
	}

	r.logger.Debug("token request resolved for %s", subject)

	now := time.Now()
	expiration := now.Add(r.defaultDuration)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiration = exp.Time
	}
	if duration > 0 {
		// Requested duration only shortens, never extends.
		if expd := now.Add(time.Duration(duration) * time.Second); expd.Before(expiration) {
			expiration = expd
		}
	}

	database, _ := claims["database"].(string)

	return WebIdentity{
		Issuer:    r.issuer,
		Username:  subject,
		Roles:     r.rolesFromClaims(claims),
		Database:  database,
		CreatedAt: now,
		ExpiresAt: expiration,
	}, nil
}

// rolesFromClaims maps each value of the configured roles claim to a
// backend-scoped role name.
func (r *Resolver) rolesFromClaims(claims jwt.MapClaims) []string {
	if r.claim == "" {
		return nil
	}

	var roles []string
	switch values := claims[r.claim].(type) {
	case []interface{}:
		for _, v := range values {
			if s, ok := v.(string); ok && s != "" {
				roles = append(roles, RolePrefix+s)
			}
		}
	case string:
		if values != "" {
			roles = append(roles, RolePrefix+values)
		}
	}

	return roles
}
