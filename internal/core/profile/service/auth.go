package profileapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"vestigia/internal/core/locale"
	profileEntity "vestigia/internal/core/profile"
	cachePort "vestigia/internal/ports/cache"
	profilePort "vestigia/internal/ports/profile"
)

const (
	sessionIssuer = "vestigia"
	stateTTL      = 5 * time.Minute
	minPassword   = 8
)

// AuthOptions configures the sign-in providers. Zero values disable OAuth
// and identity-token sign-in.
type AuthOptions struct {
	JWTSecret     []byte
	SessionTTL    time.Duration
	OAuth         *oauth2.Config
	UserInfoURL   string
	IDTokenSecret []byte
	IDTokenIssuer string
}

// Principal is the identity behind a valid session token.
type Principal struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// AuthService issues and validates sessions for every sign-in provider.
type AuthService struct {
	ProfileRepository profilePort.ProfileRepository
	Sessions          cachePort.SessionCache
	opts              AuthOptions
	logger            *zap.Logger
	now               func() time.Time
}

func NewAuthService(repo profilePort.ProfileRepository, sessions cachePort.SessionCache, opts AuthOptions, logger *zap.Logger) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		ProfileRepository: repo,
		Sessions:          sessions,
		opts:              opts,
		logger:            logger,
		now:               time.Now,
	}
}

// Register creates a password profile and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*profilePort.SessionDTO, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") || len(password) < minPassword {
		return nil, fmt.Errorf("%w: email and a password of at least %d characters are required", ErrInvalidInput, minPassword)
	}

	if _, err := s.ProfileRepository.FindByIdentity(ctx, profileEntity.ProviderEmail, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, profilePort.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if displayName = strings.TrimSpace(displayName); displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	p, err := s.ProfileRepository.Create(ctx, &profileEntity.Profile{
		ID:           uuid.Must(uuid.NewV4()),
		Provider:     profileEntity.ProviderEmail,
		Subject:      email,
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Language:     locale.Fallback,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Info("Registered profile", zap.String("user_id", p.ID.String()))
	return s.issue(p)
}

// Login signs in a password profile.
func (s *AuthService) Login(ctx context.Context, email, password string) (*profilePort.SessionDTO, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := s.ProfileRepository.FindByIdentity(ctx, profileEntity.ProviderEmail, email)
	if err != nil {
		if errors.Is(err, profilePort.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(p)
}

// AuthorizeURL starts an OAuth authorization-code flow. The returned state
// must come back to ExchangeCode within five minutes.
func (s *AuthService) AuthorizeURL(ctx context.Context) (string, string, error) {
	if s.opts.OAuth == nil {
		return "", "", ErrProviderDisabled
	}
	state := uuid.Must(uuid.NewV4()).String()
	if err := s.Sessions.SaveState(ctx, state, stateTTL); err != nil {
		return "", "", fmt.Errorf("save oauth state: %w", err)
	}
	return s.opts.OAuth.AuthCodeURL(state, oauth2.AccessTypeOnline), state, nil
}

type userInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeCode completes the OAuth flow, creating the profile on first
// sign-in.
func (s *AuthService) ExchangeCode(ctx context.Context, code, state string) (*profilePort.SessionDTO, error) {
	if s.opts.OAuth == nil {
		return nil, ErrProviderDisabled
	}
	ok, err := s.Sessions.ConsumeState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("check oauth state: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	token, err := s.opts.OAuth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("OAuth code exchange failed", zap.Error(err))
		return nil, fmt.Errorf("%w: code exchange failed", ErrInvalidCredentials)
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	p, err := s.findOrCreate(ctx, profileEntity.ProviderOAuth, info.Subject, info.Email, info.Name, info.Picture)
	if err != nil {
		return nil, err
	}
	return s.issue(p)
}

func (s *AuthService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.opts.OAuth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrInvalidCredentials, resp.StatusCode)
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("%w: userinfo has no subject", ErrInvalidCredentials)
	}
	return &info, nil
}

type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.StandardClaims
}

// SignInWithIDToken accepts an HS256 identity token from the configured
// issuer.
func (s *AuthService) SignInWithIDToken(ctx context.Context, raw string) (*profilePort.SessionDTO, error) {
	if len(s.opts.IDTokenSecret) == 0 {
		return nil, ErrProviderDisabled
	}
	claims := &idTokenClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, hmacKey(s.opts.IDTokenSecret)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if s.opts.IDTokenIssuer != "" && !claims.VerifyIssuer(s.opts.IDTokenIssuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	p, err := s.findOrCreate(ctx, profileEntity.ProviderIDToken, claims.Subject, claims.Email, claims.Name, "")
	if err != nil {
		return nil, err
	}
	return s.issue(p)
}

// Session validates a session token.
func (s *AuthService) Session(ctx context.Context, token string) (*Principal, error) {
	claims := &jwt.StandardClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, hmacKey(s.opts.JWTSecret)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.VerifyIssuer(sessionIssuer, true) || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Id != "" && s.Sessions != nil {
		revoked, err := s.Sessions.IsRevoked(ctx, claims.Id)
		if err != nil {
			return nil, fmt.Errorf("check session: %w", err)
		}
		if revoked {
			return nil, ErrSessionRevoked
		}
	}
	return &Principal{
		UserID:    claims.Subject,
		SessionID: claims.Id,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}

// SignOut revokes the session until it would have expired anyway.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	principal, err := s.Session(ctx, token)
	if err != nil {
		return err
	}
	ttl := principal.ExpiresAt.Sub(s.now())
	if err := s.Sessions.Revoke(ctx, principal.SessionID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logger.Info("Signed out", zap.String("user_id", principal.UserID))
	return nil
}

func (s *AuthService) findOrCreate(ctx context.Context, provider, subject, email, name, avatar string) (*profileEntity.Profile, error) {
	p, err := s.ProfileRepository.FindByIdentity(ctx, provider, subject)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, profilePort.ErrNotFound) {
		return nil, err
	}

	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	p, err = s.ProfileRepository.Create(ctx, &profileEntity.Profile{
		ID:          uuid.Must(uuid.NewV4()),
		Provider:    provider,
		Subject:     subject,
		Email:       strings.ToLower(email),
		DisplayName: name,
		AvatarURL:   avatar,
		Language:    locale.Fallback,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Info("Created profile on first sign-in", zap.String("provider", provider), zap.String("user_id", p.ID.String()))
	return p, nil
}

func (s *AuthService) issue(p *profileEntity.Profile) (*profilePort.SessionDTO, error) {
	now := s.now()
	expires := now.Add(s.opts.SessionTTL)
	sessionID := uuid.Must(uuid.NewV4()).String()
	claims := &jwt.StandardClaims{
		Id:        sessionID,
		Subject:   p.ID.String(),
		Issuer:    sessionIssuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("could not generate token: %w", err)
	}
	return &profilePort.SessionDTO{
		Token:     token,
		ExpiresAt: expires.Unix(),
		UserID:    p.ID.String(),
		SessionID: sessionID,
		Profile:   toProfileDTO(p),
	}, nil
}

func hmacKey(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}
}
