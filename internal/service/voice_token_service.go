package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"expense-tracker/internal/metrics"
	"expense-tracker/internal/models"
	"expense-tracker/pkg/blobstore"

	"go.uber.org/zap"
)

const (
	// VoiceTokenTTL is the fixed validity window of a voice token.
	VoiceTokenTTL = 15 * time.Minute

	voiceTokenValidForMinutes = int(VoiceTokenTTL / time.Minute)
	voiceTokenKeySuffix       = ".json"
)

var (
	ErrServiceUnavailable = errors.New("voice token storage unavailable")
	ErrTokenNotFound      = errors.New("voice token not found")
	ErrTokenExpired       = errors.New("voice token expired")
	// ErrMalformedRecord never leaves this package; corrupt records are deleted.
	ErrMalformedRecord = errors.New("malformed voice token record")
)

// VoiceTokenService issues and checks short spoken tokens. All state lives in
// the blob store, one object per live token keyed by the token word; there is
// no locking across operations, so concurrent issues can race (see Generate).
type VoiceTokenService struct {
	store  blobstore.Store
	logger *zap.Logger
	now    func() time.Time
	intn   func(n int) int
	ready  atomic.Bool
}

type VoiceTokenOption func(*VoiceTokenService)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) VoiceTokenOption {
	return func(s *VoiceTokenService) { s.now = now }
}

// WithWordPicker overrides the uniform word sampler. intn must return a value in [0, n).
func WithWordPicker(intn func(n int) int) VoiceTokenOption {
	return func(s *VoiceTokenService) { s.intn = intn }
}

func NewVoiceTokenService(store blobstore.Store, logger *zap.Logger, opts ...VoiceTokenOption) *VoiceTokenService {
	s := &VoiceTokenService{
		store:  store,
		logger: logger,
		now:    time.Now,
		intn:   rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CleanupStats summarises one sweep over the token container.
type CleanupStats struct {
	Scanned int
	Expired int
	Corrupt int
	Failed  int
}

// Ready makes sure the token container exists. Every operation calls it, so
// calling it up front only moves the failure to startup.
func (s *VoiceTokenService) Ready(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	if err := s.store.CreateContainerIfNotExists(ctx); err != nil {
		return unavailable(err)
	}
	s.ready.Store(true)
	return nil
}

// Generate issues a new token for userID, replacing any token the user holds.
//
// Without a conditional-write backend two concurrent calls for different users
// can sample the same free word and the later write wins. Two concurrent calls
// for the same user can both get past the invalidation step and leave the user
// with two tokens; the next Generate or InvalidateUser removes only the first
// one it finds, so a second call is needed to clear both.
func (s *VoiceTokenService) Generate(ctx context.Context, userID, userEmail string) (*models.IssuedVoiceToken, error) {
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}

	if _, err := s.InvalidateUser(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.CleanupExpired(ctx); err != nil {
		s.logger.Warn("Voice token cleanup before issue failed", zap.Error(err))
	}

	inUse, err := s.wordsInUse(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &models.VoiceToken{
		UserID:    userID,
		UserEmail: userEmail,
		CreatedAt: now,
		ExpiresAt: now.Add(VoiceTokenTTL),
	}
	if err := s.claimWord(ctx, record, inUse); err != nil {
		return nil, err
	}

	metrics.VoiceTokensIssued.Inc()
	s.logger.Info("Voice token issued",
		zap.String("user_id", userID),
		zap.Time("expires_at", record.ExpiresAt),
	)

	return &models.IssuedVoiceToken{
		Token:           record.Token,
		ExpiresAt:       record.ExpiresAt,
		ValidForMinutes: voiceTokenValidForMinutes,
	}, nil
}

// claimWord picks a free word and persists record under it. Sampling is
// capped at the vocabulary size; when every draw hits a used word the last
// one is overwritten rather than failing the request.
func (s *VoiceTokenService) claimWord(ctx context.Context, record *models.VoiceToken, inUse map[string]struct{}) error {
	cw, conditional := s.store.(blobstore.ConditionalWriter)

	var word string
	for range len(voiceWords) {
		word = voiceWords[s.intn(len(voiceWords))]
		if _, taken := inUse[word]; taken {
			continue
		}
		if !conditional {
			return s.put(ctx, word, record)
		}

		record.Token = word
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode voice token: %w", err)
		}
		ok, err := cw.PutIfAbsent(ctx, voiceTokenKey(word), data)
		if err != nil {
			return unavailable(err)
		}
		if ok {
			return nil
		}
		// Lost the word to a concurrent issue; try another.
		inUse[word] = struct{}{}
	}

	metrics.VoiceTokenWordCollisions.Inc()
	s.logger.Warn("Voice token vocabulary exhausted, reusing a live word",
		zap.String("token", word),
		zap.Int("in_use", len(inUse)),
	)
	return s.put(ctx, word, record)
}

func (s *VoiceTokenService) put(ctx context.Context, word string, record *models.VoiceToken) error {
	record.Token = word
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode voice token: %w", err)
	}
	if err := s.store.Put(ctx, voiceTokenKey(word), data); err != nil {
		return unavailable(err)
	}
	return nil
}

// Validate resolves a spoken token to its owner. Tokens are case-insensitive
// and are not consumed. Expired tokens are deleted and reported as
// ErrTokenExpired; unknown or corrupt ones as ErrTokenNotFound.
func (s *VoiceTokenService) Validate(ctx context.Context, token string) (*models.VoiceIdentity, error) {
	word := NormalizeVoiceToken(token)
	if !isVoiceWord(word) {
		metrics.VoiceTokenValidations.WithLabelValues("not_found").Inc()
		return nil, ErrTokenNotFound
	}
	if err := s.Ready(ctx); err != nil {
		metrics.VoiceTokenValidations.WithLabelValues("error").Inc()
		return nil, err
	}

	record, err := s.reap(ctx, voiceTokenKey(word))
	switch {
	case err == nil:
		metrics.VoiceTokenValidations.WithLabelValues("valid").Inc()
		return &models.VoiceIdentity{UserID: record.UserID, UserEmail: record.UserEmail}, nil
	case errors.Is(err, ErrTokenExpired):
		metrics.VoiceTokenValidations.WithLabelValues("expired").Inc()
		return nil, ErrTokenExpired
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrMalformedRecord):
		metrics.VoiceTokenValidations.WithLabelValues("not_found").Inc()
		return nil, ErrTokenNotFound
	default:
		metrics.VoiceTokenValidations.WithLabelValues("error").Inc()
		return nil, err
	}
}

// GetActiveForUser returns the user's live token, or nil when there is none.
func (s *VoiceTokenService) GetActiveForUser(ctx context.Context, userID string) (*models.ActiveVoiceToken, error) {
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}

	_, record, err := s.findOwned(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	remaining := int64(record.ExpiresAt.Sub(s.now()) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return &models.ActiveVoiceToken{
		Token:            record.Token,
		ExpiresAt:        record.ExpiresAt,
		RemainingSeconds: remaining,
	}, nil
}

// InvalidateUser deletes the user's token and reports whether one existed.
func (s *VoiceTokenService) InvalidateUser(ctx context.Context, userID string) (bool, error) {
	if err := s.Ready(ctx); err != nil {
		return false, err
	}

	key, record, err := s.findOwned(ctx, userID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return false, unavailable(err)
	}

	s.logger.Info("Voice token invalidated", zap.String("user_id", userID))
	return true, nil
}

// CleanupExpired deletes every expired or unreadable record. Per-record
// failures are logged and counted; only a failed enumeration is returned.
func (s *VoiceTokenService) CleanupExpired(ctx context.Context) (*CleanupStats, error) {
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.VoiceTokenCleanupDuration.Observe(time.Since(start).Seconds())
	}()

	stats := &CleanupStats{}
	for key, err := range s.store.ListKeys(ctx) {
		if err != nil {
			return stats, unavailable(err)
		}
		if !isVoiceTokenKey(key) {
			s.logger.Debug("Skipping foreign key in voice token container", zap.String("key", key))
			continue
		}
		stats.Scanned++

		_, err := s.reap(ctx, key)
		if err == nil || errors.Is(err, ErrTokenNotFound) {
			continue
		}
		switch {
		case errors.Is(err, ErrTokenExpired):
			stats.Expired++
		case errors.Is(err, ErrMalformedRecord):
			stats.Corrupt++
		}
		if errors.Is(err, ErrServiceUnavailable) {
			stats.Failed++
			s.logger.Warn("Voice token cleanup skipped a record",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	if stats.Expired > 0 || stats.Corrupt > 0 || stats.Failed > 0 {
		s.logger.Info("Voice token cleanup completed",
			zap.Int("scanned", stats.Scanned),
			zap.Int("expired", stats.Expired),
			zap.Int("corrupt", stats.Corrupt),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}

// reap reads one record and deletes it when it is expired or unreadable.
// It returns the record only when it is live. A failed delete is joined to
// the ErrTokenExpired/ErrMalformedRecord result as ErrServiceUnavailable.
func (s *VoiceTokenService) reap(ctx context.Context, key string) (*models.VoiceToken, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, unavailable(err)
	}

	record, parseErr := decodeVoiceToken(data)
	var reason error
	switch {
	case parseErr != nil:
		reason = ErrMalformedRecord
		s.logger.Warn("Deleting unreadable voice token record", zap.String("key", key), zap.Error(parseErr))
	case record.ExpiredAt(s.now()):
		reason = ErrTokenExpired
	default:
		return record, nil
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return nil, errors.Join(reason, unavailable(err))
	}
	if reason == ErrTokenExpired {
		metrics.VoiceTokensReaped.WithLabelValues("expired").Inc()
	} else {
		metrics.VoiceTokensReaped.WithLabelValues("corrupt").Inc()
	}
	return nil, reason
}

// findOwned scans the container for the first live record owned by userID.
// Dead records met on the way are reaped. Records that vanish mid-scan are
// skipped. A record that cannot be read fails the lookup, since it may be the
// user's.
func (s *VoiceTokenService) findOwned(ctx context.Context, userID string) (string, *models.VoiceToken, error) {
	for key, err := range s.store.ListKeys(ctx) {
		if err != nil {
			return "", nil, unavailable(err)
		}
		if !isVoiceTokenKey(key) {
			continue
		}

		record, err := s.reap(ctx, key)
		switch {
		case err == nil:
		case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrMalformedRecord):
			// Dead either way; a failed delete only leaves garbage behind.
			if errors.Is(err, ErrServiceUnavailable) {
				s.logger.Warn("Voice token lookup left a dead record", zap.String("key", key), zap.Error(err))
			}
			continue
		case errors.Is(err, ErrTokenNotFound):
			continue
		default:
			return "", nil, err
		}
		if record.UserID == userID {
			return key, record, nil
		}
	}
	return "", nil, nil
}

func (s *VoiceTokenService) wordsInUse(ctx context.Context) (map[string]struct{}, error) {
	inUse := make(map[string]struct{}, len(voiceWords))
	for key, err := range s.store.ListKeys(ctx) {
		if err != nil {
			return nil, unavailable(err)
		}
		if isVoiceTokenKey(key) {
			inUse[strings.TrimSuffix(key, voiceTokenKeySuffix)] = struct{}{}
		}
	}
	return inUse, nil
}

// NormalizeVoiceToken trims and lowercases a token as typed or transcribed.
func NormalizeVoiceToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

func decodeVoiceToken(data []byte) (*models.VoiceToken, error) {
	var record models.VoiceToken
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	if record.Token == "" || record.UserID == "" || record.ExpiresAt.IsZero() {
		return nil, errors.New("missing required fields")
	}
	return &record, nil
}

func voiceTokenKey(word string) string {
	return word + voiceTokenKeySuffix
}

func isVoiceTokenKey(key string) bool {
	return strings.HasSuffix(key, voiceTokenKeySuffix)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}
