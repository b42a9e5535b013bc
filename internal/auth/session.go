package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	sessionTTL       = 24 * time.Hour
)

// Session is the server-side record behind a session cookie.
type Session struct {
	ID       string
	UserID   int64
	Username string
}

// Sessions is what handlers and middleware need from a session store.
type Sessions interface {
	Create(ctx context.Context, userID int64, username string) (string, error)
	Get(ctx context.Context, cookie string) (Session, bool)
	Delete(ctx context.Context, cookie string) error
}

// Store keeps sessions in Redis as hashes with a TTL. The value handed to the
// client is "<id>.<hmac>": the HMAC tag is checked before Redis is touched,
// so a forged id never costs a round trip.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	secret []byte
}

// NewStore returns a new session store.
func NewStore(rdb *redis.Client, ttl time.Duration, secret []byte) *Store {
	if ttl <= 0 {
		ttl = sessionTTL
	}
	return &Store{rdb: rdb, ttl: ttl, secret: secret}
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create stores a new session bound to the user and returns the signed
// cookie value.
func (s *Store) Create(ctx context.Context, userID int64, username string) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	key := sessionKeyPrefix + id
	if err := s.rdb.HSet(ctx, key,
		"user_id", strconv.FormatInt(userID, 10),
		"username", username,
	).Err(); err != nil {
		return "", err
	}
	if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
		return "", err
	}
	return signValue(s.secret, id), nil
}

// Get resolves a signed cookie value to its session. False on a bad
// signature, an expired or missing session, or a Redis failure; the caller
// treats all of those as "no authenticated user".
func (s *Store) Get(ctx context.Context, cookie string) (Session, bool) {
	id, ok := verifyValue(s.secret, cookie)
	if !ok {
		return Session{}, false
	}
	fields, err := s.rdb.HGetAll(ctx, sessionKeyPrefix+id).Result()
	if err != nil || len(fields) == 0 {
		return Session{}, false
	}
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil || userID == 0 {
		return Session{}, false
	}
	return Session{ID: id, UserID: userID, Username: fields["username"]}, true
}

// Delete removes the session behind the cookie value. Deleting an absent or
// invalid session is not an error: the session is gone either way.
func (s *Store) Delete(ctx context.Context, cookie string) error {
	id, ok := verifyValue(s.secret, cookie)
	if !ok {
		return nil
	}
	return s.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// signValue produces "<id>.<hex hmac-sha256>".
func signValue(secret []byte, id string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

// verifyValue splits and checks a signed cookie value, returning the bare id.
func verifyValue(secret []byte, value string) (string, bool) {
	id, tag, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	got, err := hex.DecodeString(tag)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return "", false
	}
	return id, true
}
