package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"ivisionary/internal/util"
)

const (
	defaultJWTIssuer   = "ivisionary-api"
	defaultJWTAudience = "ivisionary-web"
	defaultJWTKeyID    = "hs-active"
)

var defaultJWTLeeway = 30 * time.Second

// JWTOptions configures token issuance and claim validation.
type JWTOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
	// TTL sets the exp claim. Zero issues tokens without expiry.
	TTL time.Duration
	// KeyID names the active secret. PreviousSecrets maps kid -> secret
	// for tokens signed before a rotation.
	KeyID           string
	PreviousSecrets map[string]string
}

// TokenClaims identifies a session by its JWT id.
type TokenClaims struct {
	SessionID string
	Subject   string
	IssuedAt  time.Time
	// ExpiresAt is zero for tokens issued without a TTL.
	ExpiresAt time.Time
}

// TokenSigner issues and validates HS256 bearer tokens. The jti claim is
// the session store key.
type TokenSigner struct {
	activeKid string
	secrets   map[string][]byte

	issuer   string
	audience string
	leeway   time.Duration
	ttl      time.Duration
}

// NewTokenSigner builds a signer from a shared secret.
func NewTokenSigner(secret string, opts JWTOptions) (*TokenSigner, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}
	opts = normalizeJWTOptions(opts)
	secrets := map[string][]byte{opts.KeyID: []byte(secret)}
	for kid, prev := range opts.PreviousSecrets {
		kid = strings.TrimSpace(kid)
		prev = strings.TrimSpace(prev)
		if kid == "" || prev == "" || kid == opts.KeyID {
			continue
		}
		secrets[kid] = []byte(prev)
	}
	return &TokenSigner{
		activeKid: opts.KeyID,
		secrets:   secrets,
		issuer:    opts.Issuer,
		audience:  opts.Audience,
		leeway:    opts.Leeway,
		ttl:       opts.TTL,
	}, nil
}

// TTL returns the configured token lifetime (zero means none).
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

// Issue signs a new token for subject and returns it with its session id.
func (s *TokenSigner) Issue(subject string) (string, string, error) {
	now := time.Now().UTC()
	sessionID := util.NewID()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        sessionID,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.activeKid
	signed, err := token.SignedString(s.secrets[s.activeKid])
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, sessionID, nil
}

// Verify checks signature and registered claims.
func (s *TokenSigner) Verify(token string) (TokenClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, errors.New("invalid token format")
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	if s.ttl > 0 {
		parserOptions = append(parserOptions, jwt.WithExpirationRequired())
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		secret, ok := s.secrets[strings.TrimSpace(kid)]
		if !ok {
			return nil, errors.New("unknown token key")
		}
		return secret, nil
	}, parserOptions...)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return TokenClaims{}, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return TokenClaims{}, errors.New("token jti missing")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return TokenClaims{}, errors.New("token subject missing")
	}
	out := TokenClaims{SessionID: claims.ID, Subject: claims.Subject}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	opts.KeyID = strings.TrimSpace(opts.KeyID)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.KeyID == "" {
		opts.KeyID = defaultJWTKeyID
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	if opts.TTL < 0 {
		opts.TTL = 0
	}
	return opts
}
