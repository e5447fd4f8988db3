// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jeranaias/codecraft-tui/internal/clock"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultListen is the default listen address.
	DefaultListen = "127.0.0.1:8788"

	// DefaultTokenTTL is how long a signed-in token stays valid.
	DefaultTokenTTL = 7 * 24 * time.Hour

	// ResetCodeTTL is how long a password reset code stays valid.
	ResetCodeTTL = time.Hour

	// MaxRequestBodySize bounds every request body.
	MaxRequestBodySize = "8M"

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6

	// MaxDisplayNameLength bounds profile display names (runes).
	MaxDisplayNameLength = 64

	// DefaultAuthRateLimit is the per-IP requests per second on /auth routes.
	DefaultAuthRateLimit = 5

	shutdownTimeout = 10 * time.Second
)

// ============================================================================
// CONFIG
// ============================================================================

// Config configures the document store server.
type Config struct {
	// Listen is the host:port to listen on.
	Listen string

	// Driver is "sqlite" or "postgres".
	Driver string

	// DSN is the sqlite file path or the postgres connection string.
	DSN string

	// JWTSecret signs tokens. It must be non-empty.
	JWTSecret string

	// TokenTTL is the token lifetime.
	TokenTTL time.Duration

	// BcryptCost is the password hashing cost.
	BcryptCost int

	// AuthRateLimit is the per-IP requests per second on /auth routes.
	// Zero disables limiting.
	AuthRateLimit float64

	// Logger receives request and auth logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a sqlite-backed config storing its database at dsn.
func DefaultConfig(dsn string) Config {
	return Config{
		Listen:        DefaultListen,
		Driver:        DriverSQLite,
		DSN:           dsn,
		TokenTTL:      DefaultTokenTTL,
		BcryptCost:    bcrypt.DefaultCost,
		AuthRateLimit: DefaultAuthRateLimit,
	}
}

// ResetNotifier delivers a password reset code to the account owner.
type ResetNotifier func(email, code string)

// ============================================================================
// SERVER
// ============================================================================

// Server is the auth and chat document store. Each user owns one JSON
// document holding their chat sessions keyed by id.
type Server struct {
	echo      *echo.Echo
	db        *DB
	tokens    *tokens
	cost      int
	listen    string
	authLimit float64
	clock     clock.Clock
	logger    *slog.Logger
	notify    ResetNotifier
}

// New opens the database and builds the server.
func New(cfg Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "docstore"))

	db, err := OpenDB(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:        db,
		cost:      cfg.BcryptCost,
		listen:    cfg.Listen,
		authLimit: cfg.AuthRateLimit,
		clock:     clock.Real(),
		logger:    logger,
	}
	s.tokens = &tokens{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		now:    func() time.Time { return s.clock.Now() },
	}
	s.notify = func(email, code string) {
		s.logger.Info("password reset requested", slog.String("email", email), slog.String("code", code))
	}
	s.echo = s.newEcho()
	return s, nil
}

// WithClock replaces the clock used for timestamps and token expiry.
func (s *Server) WithClock(c clock.Clock) *Server {
	s.clock = c
	return s
}

// WithResetNotifier replaces how reset codes are delivered. The default
// logs them for the operator.
func (s *Server) WithResetNotifier(fn ResetNotifier) *Server {
	s.notify = fn
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Listen returns the configured listen address.
func (s *Server) Listen() string {
	return s.listen
}

// Close closes the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(MaxRequestBodySize))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ip", v.RemoteIP))
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api/v1")

	auth := api.Group("/auth")
	if s.authLimit > 0 {
		auth.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(s.authLimit))))
	}
	auth.POST("/signup", s.handleSignUp)
	auth.POST("/signin", s.handleSignIn)
	auth.POST("/signout", s.handleSignOut, s.requireAuth)
	auth.POST("/reset", s.handleReset)
	auth.POST("/reset/confirm", s.handleResetConfirm)

	api.GET("/profile", s.handleGetProfile, s.requireAuth)
	api.PATCH("/profile", s.handleUpdateProfile, s.requireAuth)
	api.GET("/chats", s.handleGetChats, s.requireAuth)
	api.PUT("/chats", s.handlePutChats, s.requireAuth)
	return e
}

// ============================================================================
// WIRE TYPES
// ============================================================================

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

// Profile is a user plus chat statistics.
type Profile struct {
	User
	TotalChats  int   `json:"totalChats"`
	LastUpdated int64 `json:"lastUpdated"`
}

// AuthResponse is returned by sign-up and sign-in.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// ChatsDocument is the per-user chat collection: session id to session.
type ChatsDocument struct {
	Chats     map[string]json.RawMessage `json:"chats"`
	UpdatedAt int64                      `json:"updatedAt"`
}

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes an error.
type ErrorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

type profilePatch struct {
	DisplayName *string `json:"displayName"`
}

func publicUser(u *userRecord) User {
	return User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(c echo.Context) error {
	status := "ok"
	code := http.StatusOK
	if err := s.db.Ping(c.Request().Context()); err != nil {
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]string{"status": status, "driver": s.db.Driver()})
}

func (s *Server) handleSignUp(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	name, err := validateDisplayName(req.DisplayName)
	if err != nil {
		return err
	}

	hash, err := hashPassword(req.Password, s.cost)
	if err != nil {
		return err
	}
	now := s.clock.Now().UnixMilli()
	rec := &userRecord{
		ID:           ulid.Make().String(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.CreateUser(c.Request().Context(), rec); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, ErrEmailTaken.Error())
		}
		return err
	}
	return s.respondWithToken(c, http.StatusCreated, rec)
}

func (s *Server) handleSignIn(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	rec, err := s.db.UserByEmail(c.Request().Context(), email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if rec == nil || !checkPassword(rec.PasswordHash, req.Password) {
		s.denied(c, "bad_credentials")
		return echo.NewHTTPError(http.StatusUnauthorized, ErrBadCredentials.Error())
	}
	return s.respondWithToken(c, http.StatusOK, rec)
}

func (s *Server) respondWithToken(c echo.Context, status int, rec *userRecord) error {
	token, _, err := s.tokens.issue(rec.ID, rec.Email)
	if err != nil {
		return err
	}
	return c.JSON(status, AuthResponse{User: publicUser(rec), Token: token})
}

func (s *Server) handleSignOut(c echo.Context) error {
	claims := claimsFrom(c)
	if err := s.db.RevokeToken(c.Request().Context(), claims.ID, claims.ExpiresAt.UnixMilli()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleReset always answers 202 so the endpoint does not reveal which
// emails are registered.
func (s *Server) handleReset(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	rec, err := s.db.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return c.NoContent(http.StatusAccepted)
	case err != nil:
		return err
	}

	code := ulid.Make().String()
	expires := s.clock.Now().Add(ResetCodeTTL).UnixMilli()
	if err := s.db.CreateReset(ctx, code, rec.ID, expires); err != nil {
		return err
	}
	s.notify(rec.Email, code)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleResetConfirm(c echo.Context) error {
	var req resetConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}

	ctx := c.Request().Context()
	now := s.clock.Now().UnixMilli()
	userID, err := s.db.ConsumeReset(ctx, strings.TrimSpace(req.Code), now)
	if errors.Is(err, ErrResetNotFound) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrResetNotFound.Error())
	}
	if err != nil {
		return err
	}

	hash, err := hashPassword(req.Password, s.cost)
	if err != nil {
		return err
	}
	if err := s.db.UpdatePassword(ctx, userID, hash, now); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetProfile(c echo.Context) error {
	profile, err := s.profile(c.Request().Context(), claimsFrom(c).Subject)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	var req profilePatch
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	ctx := c.Request().Context()
	userID := claimsFrom(c).Subject
	if req.DisplayName != nil {
		name, err := validateDisplayName(*req.DisplayName)
		if err != nil {
			return err
		}
		if err := s.db.UpdateDisplayName(ctx, userID, name, s.clock.Now().UnixMilli()); err != nil {
			return err
		}
	}

	profile, err := s.profile(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) profile(ctx context.Context, userID string) (*Profile, error) {
	rec, err := s.db.UserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error())
	}
	if err != nil {
		return nil, err
	}
	total, updated, err := s.db.ChatStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		updated = rec.UpdatedAt
	}
	return &Profile{User: publicUser(rec), TotalChats: total, LastUpdated: updated}, nil
}

func (s *Server) handleGetChats(c echo.Context) error {
	rec, err := s.db.Chats(c.Request().Context(), claimsFrom(c).Subject, s.clock.Now().UnixMilli())
	if err != nil {
		return err
	}

	doc := ChatsDocument{UpdatedAt: rec.UpdatedAt}
	if err := json.Unmarshal([]byte(rec.Data), &doc.Chats); err != nil {
		return errors.Wrap(err, "stored chats document is corrupt")
	}
	if doc.Chats == nil {
		doc.Chats = map[string]json.RawMessage{}
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handlePutChats(c echo.Context) error {
	var doc ChatsDocument
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	if doc.Chats == nil {
		doc.Chats = map[string]json.RawMessage{}
	}
	for id, raw := range doc.Chats {
		if strings.TrimSpace(id) == "" || !isJSONObject(raw) {
			return echo.NewHTTPError(http.StatusBadRequest, "chats must map session ids to objects")
		}
	}

	data, err := json.Marshal(doc.Chats)
	if err != nil {
		return errors.Wrap(err, "failed to encode chats")
	}
	now := s.clock.Now().UnixMilli()
	rec := &chatsRecord{Data: string(data), Total: len(doc.Chats), UpdatedAt: now}
	if err := s.db.PutChats(c.Request().Context(), claimsFrom(c).Subject, rec); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"updatedAt": now})
}

// handleError writes every error as an ErrorResponse. Internal errors are
// logged with their cause and reported generically.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else {
		s.logger.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{Error: ErrorBody{Message: message, Code: code}})
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Expired revocations and reset codes are pruned hourly.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.echo,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("docstore listening", slog.String("addr", ln.Addr().String()), slog.String("driver", s.db.Driver()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "docstore server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("docstore shutting down")
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := s.db.Prune(gctx, s.clock.Now().UnixMilli()); err != nil {
					s.logger.Warn("prune failed", slog.Any("error", err))
				}
			}
		}
	})
	return g.Wait()
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.listen)
	}
	return s.Serve(ctx, ln)
}

// ============================================================================
// VALIDATION
// ============================================================================

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid email address")
	}
	return strings.ToLower(addr.Address), nil
}

func validatePassword(pw string) error {
	if len([]rune(pw)) < MinPasswordLength {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 6 characters")
	}
	// bcrypt only reads the first 72 bytes.
	if len(pw) > 72 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at most 72 bytes")
	}
	return nil
}

func validateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) > MaxDisplayNameLength {
		return "", echo.NewHTTPError(http.StatusBadRequest, "display name is too long")
	}
	return name, nil
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
