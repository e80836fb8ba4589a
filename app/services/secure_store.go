package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/backoffice/utils"
)

// Stored key names, each under the store prefix
const (
	KeyRememberedEmail = "rememberedEmail"
	KeyRememberMe      = "rememberMe"
	KeyLoginAttempts   = "loginAttempts"
	KeyLastLoginTime   = "lastLoginTime"
	KeyAppSettings     = "app_settings"
)

// ExpireImmediately is an expiry that has always passed. An item written with it
// is never returned and is evicted on the first read.
var ExpireImmediately = time.UnixMilli(0)

// SetOptions controls how SetItem stores a value
type SetOptions struct {
	// Encrypt applies reversible obfuscation. It is NOT encryption: anyone with
	// the obfuscation key (a static config value) can read the value.
	Encrypt bool
	// Expiry is the absolute time after which the item reads as absent. Nil never expires.
	Expiry *time.Time
}

// ExpiresIn is a convenience for SetOptions.Expiry relative to now
func ExpiresIn(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

type storedItem struct {
	Value     json.RawMessage `json:"value"`
	Encrypted bool            `json:"encrypted"`
	Timestamp int64           `json:"timestamp"`
	Expiry    *int64          `json:"expiry,omitempty"`
}

// LoginAttempt is one recorded login outcome
type LoginAttempt struct {
	Timestamp int64 `json:"timestamp"`
	Success   bool  `json:"success"`
}

// SecureStoreOptions configures a SecureStore
type SecureStoreOptions struct {
	Prefix         string
	ObfuscationKey string
	MaxFailures    int
	LockoutWindow  time.Duration
	Now            func() time.Time
}

// SecureStore is a namespaced key/value store with optional obfuscation and per-key expiry
type SecureStore struct {
	backend     StoreBackend
	prefix      string
	key         []byte
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

func NewSecureStore(backend StoreBackend, opts SecureStoreOptions) *SecureStore {
	if opts.Prefix == "" {
		opts.Prefix = "admin_app_"
	}
	if opts.ObfuscationKey == "" {
		opts.ObfuscationKey = "admin-dashboard-key"
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SecureStore{
		backend:     backend,
		prefix:      opts.Prefix,
		key:         []byte(opts.ObfuscationKey),
		maxFailures: opts.MaxFailures,
		window:      opts.LockoutWindow,
		now:         opts.Now,
	}
}

func (s *SecureStore) fullKey(key string) string {
	return s.prefix + key
}

// obfuscate XORs data with the store key and base64-encodes the result
func (s *SecureStore) obfuscate(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ s.key[i%len(s.key)]
	}
	return base64.StdEncoding.EncodeToString(out)
}

func (s *SecureStore) deobfuscate(text string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, err
	}
	for i := range raw {
		raw[i] ^= s.key[i%len(s.key)]
	}
	return raw, nil
}

// encode wraps value in the stored envelope. The returned TTL lets the backend
// drop the entry shortly after it expires.
func (s *SecureStore) encode(value any, opts SetOptions) (string, time.Duration, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", 0, err
	}

	item := storedItem{
		Value:     data,
		Encrypted: opts.Encrypt,
		Timestamp: s.now().UnixMilli(),
	}
	if opts.Encrypt {
		item.Value, _ = json.Marshal(s.obfuscate(data))
	}

	var ttl time.Duration
	if opts.Expiry != nil {
		ms := opts.Expiry.UnixMilli()
		item.Expiry = &ms
		if d := opts.Expiry.Sub(s.now()); d > 0 {
			ttl = d + time.Minute
		}
	}

	wrapped, err := json.Marshal(item)
	if err != nil {
		return "", 0, err
	}
	return string(wrapped), ttl, nil
}

// decode unwraps raw into out. found is false for malformed or expired entries;
// expired additionally marks entries the caller should evict.
func (s *SecureStore) decode(raw string, out any) (found, expired bool) {
	var item storedItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil || item.Value == nil {
		return false, false
	}
	if item.Expiry != nil && s.now().UnixMilli() > *item.Expiry {
		return false, true
	}

	data := []byte(item.Value)
	if item.Encrypted {
		var text string
		if err := json.Unmarshal(item.Value, &text); err != nil {
			return false, false
		}
		var err error
		if data, err = s.deobfuscate(text); err != nil {
			return false, false
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, false
	}
	return true, false
}

// SetItem stores value (any JSON-serializable value) under key
func (s *SecureStore) SetItem(ctx context.Context, key string, value any, opts SetOptions) error {
	wrapped, ttl, err := s.encode(value, opts)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.backend.Set(ctx, s.fullKey(key), wrapped, ttl)
}

// GetItem decodes the value stored under key into out. It reports false when the
// key is absent, malformed or expired; expired entries are removed.
func (s *SecureStore) GetItem(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.backend.Get(ctx, s.fullKey(key))
	if err != nil || !ok {
		return false, err
	}

	found, expired := s.decode(raw, out)
	if expired {
		if err := s.backend.Delete(ctx, s.fullKey(key)); err != nil {
			return false, err
		}
	}
	return found, nil
}

// RemoveItem deletes key
func (s *SecureStore) RemoveItem(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, s.fullKey(key))
}

// Clear deletes every key under the store prefix
func (s *SecureStore) Clear(ctx context.Context) error {
	keys, err := s.backend.Keys(ctx, s.prefix)
	if err != nil {
		return err
	}
	return s.backend.Delete(ctx, keys...)
}

func scoped(name, scope string) string {
	return name + ":" + scope
}

// RememberedLogin is the remembered email for one client
type RememberedLogin struct {
	Email      string `json:"email"`
	RememberMe bool   `json:"remember_me"`
}

// SaveRememberedLogin remembers email for the client scope until ttl elapses.
// remember=false clears any remembered email.
func (s *SecureStore) SaveRememberedLogin(ctx context.Context, scope, email string, remember bool, ttl time.Duration) error {
	if !remember {
		return s.ClearRememberedLogin(ctx, scope)
	}
	expiry := s.now().Add(ttl)
	if err := s.SetItem(ctx, scoped(KeyRememberedEmail, scope), email, SetOptions{Encrypt: true, Expiry: &expiry}); err != nil {
		return err
	}
	return s.SetItem(ctx, scoped(KeyRememberMe, scope), true, SetOptions{Expiry: &expiry})
}

// RememberedLogin returns the remembered email for the client scope, if any
func (s *SecureStore) RememberedLogin(ctx context.Context, scope string) (*RememberedLogin, error) {
	var remember bool
	if ok, err := s.GetItem(ctx, scoped(KeyRememberMe, scope), &remember); err != nil || !ok || !remember {
		return nil, err
	}
	var email string
	if ok, err := s.GetItem(ctx, scoped(KeyRememberedEmail, scope), &email); err != nil || !ok {
		return nil, err
	}
	return &RememberedLogin{Email: email, RememberMe: true}, nil
}

func (s *SecureStore) ClearRememberedLogin(ctx context.Context, scope string) error {
	return s.backend.Delete(ctx, s.fullKey(scoped(KeyRememberedEmail, scope)), s.fullKey(scoped(KeyRememberMe, scope)))
}

func (s *SecureStore) loginAttempts(ctx context.Context, email string) ([]LoginAttempt, error) {
	var attempts []LoginAttempt
	if _, err := s.GetItem(ctx, scoped(KeyLoginAttempts, utils.NormalizeEmail(email)), &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

// recentFailures returns failures inside the trailing lockout window, oldest first
func (s *SecureStore) recentFailures(attempts []LoginAttempt) []LoginAttempt {
	cutoff := s.now().Add(-s.window).UnixMilli()
	var failures []LoginAttempt
	for _, a := range attempts {
		if !a.Success && a.Timestamp > cutoff {
			failures = append(failures, a)
		}
	}
	return failures
}

// RecordLoginAttempt appends an attempt for email. A success clears the history.
// Failures are appended atomically so concurrent attempts are all counted.
func (s *SecureStore) RecordLoginAttempt(ctx context.Context, email string, success bool) error {
	key := scoped(KeyLoginAttempts, utils.NormalizeEmail(email))
	if success {
		return s.RemoveItem(ctx, key)
	}

	return s.backend.Update(ctx, s.fullKey(key), func(current string, ok bool) (string, time.Duration, error) {
		var attempts []LoginAttempt
		if ok {
			s.decode(current, &attempts)
		}
		attempts = append(s.recentFailures(attempts), LoginAttempt{Timestamp: s.now().UnixMilli()})
		expiry := s.now().Add(s.window)
		return s.encode(attempts, SetOptions{Expiry: &expiry})
	})
}

// FailedAttempts counts failures for email inside the lockout window
func (s *SecureStore) FailedAttempts(ctx context.Context, email string) (int, error) {
	attempts, err := s.loginAttempts(ctx, email)
	if err != nil {
		return 0, err
	}
	return len(s.recentFailures(attempts)), nil
}

// IsAccountLocked reports whether email reached the failure limit inside the window
func (s *SecureStore) IsAccountLocked(ctx context.Context, email string) (bool, error) {
	n, err := s.FailedAttempts(ctx, email)
	if err != nil {
		return false, err
	}
	return n >= s.maxFailures, nil
}

// LockedUntil returns when the lock on email lifts: the oldest failure in the window plus the window.
// The zero time means the account is not locked.
func (s *SecureStore) LockedUntil(ctx context.Context, email string) (time.Time, error) {
	attempts, err := s.loginAttempts(ctx, email)
	if err != nil {
		return time.Time{}, err
	}
	failures := s.recentFailures(attempts)
	if len(failures) < s.maxFailures {
		return time.Time{}, nil
	}
	return time.UnixMilli(failures[0].Timestamp).Add(s.window), nil
}

// SetLastLoginTime records the last successful login of email
func (s *SecureStore) SetLastLoginTime(ctx context.Context, email string, at time.Time) error {
	return s.SetItem(ctx, scoped(KeyLastLoginTime, utils.NormalizeEmail(email)), at.UnixMilli(), SetOptions{})
}

// LastLoginTime returns the last successful login of email, if recorded
func (s *SecureStore) LastLoginTime(ctx context.Context, email string) (*time.Time, error) {
	var ms int64
	ok, err := s.GetItem(ctx, scoped(KeyLastLoginTime, utils.NormalizeEmail(email)), &ms)
	if err != nil || !ok {
		return nil, err
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}

// SaveAppSettings stores the application-wide settings document
func (s *SecureStore) SaveAppSettings(ctx context.Context, settings map[string]any) error {
	return s.SetItem(ctx, KeyAppSettings, settings, SetOptions{})
}

// AppSettings loads the application-wide settings document, empty when unset
func (s *SecureStore) AppSettings(ctx context.Context) (map[string]any, error) {
	settings := map[string]any{}
	if _, err := s.GetItem(ctx, KeyAppSettings, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}
