// Package keystore provides encrypted at-rest storage for secrets that
// fixtures reference, e.g. {{secret:stripe-sandbox}}. Key material is
// sealed with AES-GCM under a master key derived from a passphrase via
// scrypt; only ciphertext ever reaches the storage backend.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

// Errors returned by key store operations.
var (
	ErrNotInitialized = errors.New("key store master key not initialized")
	ErrKeyNotFound    = errors.New("key not found")
	ErrKeyExpired     = errors.New("key has expired")
	ErrInvalidKeyID   = errors.New("invalid key id")
)

// scrypt parameters for master key derivation.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	masterKeyLen = 32
	saltLen      = 16
)

var keyIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// Metadata describes a stored key without exposing its material.
type Metadata struct {
	ID        string     `json:"id"`
	Label     string     `json:"label,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	UseCount  uint64     `json:"useCount"`
	Rotations int        `json:"rotations"`
}

// Record is the sealed form persisted by a Storage backend.
type Record struct {
	Metadata Metadata `json:"metadata"`
	Salt     []byte   `json:"salt"`
	Nonce    []byte   `json:"nonce"`
	Sealed   []byte   `json:"sealed"`
}

// Storage persists sealed records.
type Storage interface {
	Save(record *Record) error
	Load(id string) (*Record, error)
	Delete(id string) error
	List() ([]*Record, error)
}

// Statistics summarizes a key store.
type Statistics struct {
	TotalKeys   int `json:"totalKeys"`
	ExpiredKeys int `json:"expiredKeys"`
}

// Store manages encrypted secrets.
type Store struct {
	mu      sync.Mutex
	storage Storage

	masterKey []byte
	salt      []byte
}

// New creates a Store over in-memory storage.
func New() *Store {
	return WithStorage(NewMemoryStorage())
}

// WithStorage creates a Store over the given backend.
func WithStorage(storage Storage) *Store {
	return &Store{storage: storage}
}

// Initialize derives the master key from a passphrase. It must be called
// before any secret operation.
func (s *Store) Initialize(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("master passphrase must not be empty")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, masterKeyLen)
	if err != nil {
		return fmt.Errorf("failed to derive master key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.masterKey = key
	s.salt = salt
	return nil
}

// GenerateKeyID returns a fresh key identifier.
func GenerateKeyID() string {
	return "key-" + uuid.New().String()
}

// ValidateKeyID checks an identifier against the allowed character set.
func ValidateKeyID(id string) error {
	if !keyIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidKeyID, id)
	}
	return nil
}

// Put seals a secret under the given id, replacing any existing value.
func (s *Store) Put(id, label string, secret []byte) error {
	if err := ValidateKeyID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.masterKey == nil {
		return ErrNotInitialized
	}

	now := time.Now()
	meta := Metadata{ID: id, Label: label, CreatedAt: now, UpdatedAt: now}
	if existing, err := s.storage.Load(id); err == nil {
		meta.CreatedAt = existing.Metadata.CreatedAt
		meta.Rotations = existing.Metadata.Rotations
		meta.UseCount = existing.Metadata.UseCount
		meta.ExpiresAt = existing.Metadata.ExpiresAt
	}

	record, err := s.seal(meta, secret)
	if err != nil {
		return err
	}
	return s.storage.Save(record)
}

// Get opens the secret for id and records the use.
func (s *Store) Get(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.masterKey == nil {
		return nil, ErrNotInitialized
	}

	record, err := s.storage.Load(id)
	if err != nil {
		return nil, err
	}
	if expired(&record.Metadata, time.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrKeyExpired, id)
	}

	secret, err := s.open(record)
	if err != nil {
		return nil, err
	}

	record.Metadata.UseCount++
	record.Metadata.UpdatedAt = time.Now()
	if err := s.storage.Save(record); err != nil {
		return nil, err
	}
	return secret, nil
}

// Rotate re-seals the secret under a fresh nonce and bumps the rotation
// counter. The plaintext is unchanged; rotation limits nonce reuse windows.
func (s *Store) Rotate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.masterKey == nil {
		return ErrNotInitialized
	}

	record, err := s.storage.Load(id)
	if err != nil {
		return err
	}
	secret, err := s.open(record)
	if err != nil {
		return err
	}

	meta := record.Metadata
	meta.Rotations++
	meta.UpdatedAt = time.Now()

	rotated, err := s.seal(meta, secret)
	if err != nil {
		return err
	}
	return s.storage.Save(rotated)
}

// Delete removes a key.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.Delete(id)
}

// SetExpiration sets when the key stops being readable.
func (s *Store) SetExpiration(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.storage.Load(id)
	if err != nil {
		return err
	}
	record.Metadata.ExpiresAt = &at
	record.Metadata.UpdatedAt = time.Now()
	return s.storage.Save(record)
}

// List returns metadata for every stored key.
func (s *Store) List() ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.storage.List()
	if err != nil {
		return nil, err
	}
	out := make([]Metadata, 0, len(records))
	for _, r := range records {
		out = append(out, r.Metadata)
	}
	return out, nil
}

// CleanupExpired removes expired keys and returns their ids.
func (s *Store) CleanupExpired() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.storage.List()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var removed []string
	for _, r := range records {
		if expired(&r.Metadata, now) {
			if err := s.storage.Delete(r.Metadata.ID); err != nil {
				return removed, err
			}
			removed = append(removed, r.Metadata.ID)
		}
	}
	return removed, nil
}

// Statistics summarizes the store contents.
func (s *Store) Statistics() (Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.storage.List()
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{TotalKeys: len(records)}
	now := time.Now()
	for _, r := range records {
		if expired(&r.Metadata, now) {
			stats.ExpiredKeys++
		}
	}
	return stats, nil
}

func (s *Store) seal(meta Metadata, secret []byte) (*Record, error) {
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, secret, []byte(meta.ID))
	return &Record{
		Metadata: meta,
		Salt:     append([]byte(nil), s.salt...),
		Nonce:    nonce,
		Sealed:   sealed,
	}, nil
}

func (s *Store) open(record *Record) ([]byte, error) {
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	secret, err := gcm.Open(nil, record.Nonce, record.Sealed, []byte(record.Metadata.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed key %s: %w", record.Metadata.ID, err)
	}
	return secret, nil
}

func expired(meta *Metadata, now time.Time) bool {
	return meta.ExpiresAt != nil && now.After(*meta.ExpiresAt)
}
