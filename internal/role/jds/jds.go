// Package jds implements the Sv2 Job Declaration Server role: it issues
// one-shot mining job tokens and validates the declarations submitted
// against them. Validation here is structural and policy-only (token
// freshness, rate limits, coinbase/field size bounds) — it never consults a
// live bitcoind mempool, which is out of scope for this repository.
package jds

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	bin "github.com/ironseam/sv2bridge/internal/binary"
	jd "github.com/ironseam/sv2bridge/internal/protocol/jobdeclaration"
)

var (
	// ErrRateLimitExceeded is returned when a user identifier has requested
	// more tokens than the configured window allows.
	ErrRateLimitExceeded = errors.New("jds: token allocation rate limit exceeded")
	// ErrUnknownToken is returned when a DeclareMiningJob names a token this
	// server never issued, or one already consumed.
	ErrUnknownToken = errors.New("jds: unknown or already-used mining job token")
	// ErrTokenExpired is returned when a token is presented after its TTL.
	ErrTokenExpired = errors.New("jds: mining job token expired")
	// ErrDeclarationTooLarge is returned when a declared job's coinbase
	// fields exceed the server's configured maximums.
	ErrDeclarationTooLarge = errors.New("jds: declaration exceeds coinbase size policy")
)

// Config holds the Job Declaration Server's tunables.
type Config struct {
	// TokenTTL bounds how long an allocated token remains redeemable.
	TokenTTL time.Duration
	// RateLimitWindow and MaxTokensPerWindow bound how many tokens a single
	// user identifier may allocate in a sliding window.
	RateLimitWindow    time.Duration
	MaxTokensPerWindow int
	// CoinbaseOutputMaxAdditionalSize is reported to clients in
	// AllocateMiningJobTokenSuccess and enforced against declared coinbase
	// field sizes.
	CoinbaseOutputMaxAdditionalSize uint32
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		TokenTTL:                        2 * time.Minute,
		RateLimitWindow:                 time.Minute,
		MaxTokensPerWindow:              30,
		CoinbaseOutputMaxAdditionalSize: 32,
	}
}

type tokenEntry struct {
	userIdentifier string
	requestID      uint32
	issuedAt       time.Time
	used           bool
}

type rateLimitEntry struct {
	count     int
	windowEnd time.Time
}

// Server is the stateful Job Declaration Server: it tracks outstanding
// tokens, per-identity rate limits, and accepted declarations.
type Server struct {
	config Config

	tokensMu sync.Mutex
	tokens   map[string]*tokenEntry

	rateMu      sync.Mutex
	rateLimiter map[string]*rateLimitEntry

	declMu       sync.RWMutex
	declarations map[string]jd.DeclareMiningJob // keyed by the new token issued on success

	totalTokensIssued    atomic.Int64
	totalDeclarations    atomic.Int64
	acceptedDeclarations atomic.Int64
	rejectedDeclarations atomic.Int64
}

// NewServer builds a Server from config.
func NewServer(config Config) *Server {
	return &Server{
		config:       config,
		tokens:       make(map[string]*tokenEntry),
		rateLimiter:  make(map[string]*rateLimitEntry),
		declarations: make(map[string]jd.DeclareMiningJob),
	}
}

// AllocateToken handles AllocateMiningJobToken: it enforces the per-identity
// rate limit, mints a fresh token, and remembers it for later redemption.
func (s *Server) AllocateToken(req jd.AllocateMiningJobToken) (jd.AllocateMiningJobTokenSuccess, error) {
	userID := string(req.UserIdentifier.Bytes())
	if !s.checkRateLimit(userID) {
		return jd.AllocateMiningJobTokenSuccess{}, ErrRateLimitExceeded
	}

	token, err := newToken()
	if err != nil {
		return jd.AllocateMiningJobTokenSuccess{}, fmt.Errorf("jds: generate token: %w", err)
	}

	s.tokensMu.Lock()
	s.tokens[string(token.Bytes())] = &tokenEntry{
		userIdentifier: userID,
		requestID:      req.RequestID,
		issuedAt:       time.Now(),
	}
	s.tokensMu.Unlock()
	s.totalTokensIssued.Add(1)

	return jd.AllocateMiningJobTokenSuccess{
		RequestID:                       req.RequestID,
		MiningJobToken:                  token,
		CoinbaseOutputMaxAdditionalSize: s.config.CoinbaseOutputMaxAdditionalSize,
	}, nil
}

// DeclareJob handles DeclareMiningJob: it redeems the presented token,
// applies structural and size-policy checks, and on success issues a fresh
// token the client can hand in for its next declaration.
func (s *Server) DeclareJob(req jd.DeclareMiningJob) (jd.DeclareMiningJobSuccess, *jd.DeclareMiningJobError) {
	s.totalDeclarations.Add(1)

	if err := s.redeemToken(req.MiningJobToken); err != nil {
		s.rejectedDeclarations.Add(1)
		return jd.DeclareMiningJobSuccess{}, declareError(req.RequestID, err)
	}

	if err := s.validateDeclaration(req); err != nil {
		s.rejectedDeclarations.Add(1)
		return jd.DeclareMiningJobSuccess{}, declareError(req.RequestID, err)
	}

	newToken, err := newToken()
	if err != nil {
		s.rejectedDeclarations.Add(1)
		return jd.DeclareMiningJobSuccess{}, declareError(req.RequestID, err)
	}

	s.declMu.Lock()
	s.declarations[string(newToken.Bytes())] = req
	s.declMu.Unlock()
	s.acceptedDeclarations.Add(1)

	return jd.DeclareMiningJobSuccess{
		RequestID:         req.RequestID,
		NewMiningJobToken: newToken,
	}, nil
}

func declareError(requestID uint32, err error) *jd.DeclareMiningJobError {
	code, encErr := bin.NewStr0255(err.Error())
	if encErr != nil {
		code, _ = bin.NewStr0255("declaration rejected")
	}
	return &jd.DeclareMiningJobError{RequestID: requestID, ErrorCode: code}
}

// redeemToken marks a token used, failing if it is unknown, already used,
// or past its TTL. A token is single-use: DeclareMiningJob consumes it
// whether or not the declaration itself is later accepted.
func (s *Server) redeemToken(token bin.B0255) error {
	key := string(token.Bytes())

	s.tokensMu.Lock()
	defer s.tokensMu.Unlock()

	entry, ok := s.tokens[key]
	if !ok || entry.used {
		return ErrUnknownToken
	}
	if s.config.TokenTTL > 0 && time.Since(entry.issuedAt) > s.config.TokenTTL {
		return ErrTokenExpired
	}
	entry.used = true
	return nil
}

// validateDeclaration applies the structural and size-policy checks this
// server is responsible for. Transaction-set validity against a mempool is
// explicitly out of scope.
func (s *Server) validateDeclaration(req jd.DeclareMiningJob) error {
	max := int(s.config.CoinbaseOutputMaxAdditionalSize)
	if max > 0 && (len(req.CoinbasePrefix.Bytes())+len(req.CoinbaseSuffix.Bytes())) > max {
		return ErrDeclarationTooLarge
	}
	return nil
}

// checkRateLimit applies a fixed-window limiter per user identifier.
func (s *Server) checkRateLimit(userID string) bool {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	now := time.Now()
	entry, ok := s.rateLimiter[userID]
	if !ok || now.After(entry.windowEnd) {
		s.rateLimiter[userID] = &rateLimitEntry{count: 1, windowEnd: now.Add(s.config.RateLimitWindow)}
		return true
	}
	if entry.count >= s.config.MaxTokensPerWindow {
		return false
	}
	entry.count++
	return true
}

// PruneExpiredTokens removes tokens past their TTL; callers run this
// periodically (e.g. from a ticker in the owning role process) to bound
// memory rather than relying on redemption to clean up abandoned tokens.
func (s *Server) PruneExpiredTokens() int {
	if s.config.TokenTTL <= 0 {
		return 0
	}
	s.tokensMu.Lock()
	defer s.tokensMu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-s.config.TokenTTL)
	for k, entry := range s.tokens {
		if entry.issuedAt.Before(cutoff) {
			delete(s.tokens, k)
			removed++
		}
	}
	return removed
}

// Stats is a snapshot of the server's lifetime counters.
type Stats struct {
	TotalTokensIssued    int64
	TotalDeclarations    int64
	AcceptedDeclarations int64
	RejectedDeclarations int64
}

// Stats returns a snapshot of the server's counters.
func (s *Server) Stats() Stats {
	return Stats{
		TotalTokensIssued:    s.totalTokensIssued.Load(),
		TotalDeclarations:    s.totalDeclarations.Load(),
		AcceptedDeclarations: s.acceptedDeclarations.Load(),
		RejectedDeclarations: s.rejectedDeclarations.Load(),
	}
}

func newToken() (bin.B0255, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return bin.B0255{}, err
	}
	return bin.NewB0255([]byte(hex.EncodeToString(raw)))
}
