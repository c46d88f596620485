package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketName = "local"
	// UserIDKey is the local key holding the installation's user id.
	UserIDKey = "sayhey-user-id"
)

// Provider hands out the opaque user id sent with every chat request.
type Provider interface {
	UserID(ctx context.Context) (string, error)
}

// Store keeps the user id in a local bbolt file. The id is created on first
// use and never rewritten.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens the state file, creating it and its directory if needed.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("identity: state path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("identity: create state dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("identity: open %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("identity: close: %w", err)
	}
	return nil
}

// UserID returns the stored id, minting "user-<unix millis>" when absent.
func (s *Store) UserID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(bucketName)); b != nil {
			id = string(b.Get([]byte(UserIDKey)))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("identity: read user id: %w", err)
	}
	if id != "" {
		return id, nil
	}

	// Re-check inside the write transaction so two first-time callers agree.
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		if existing := b.Get([]byte(UserIDKey)); len(existing) > 0 {
			id = string(existing)
			return nil
		}
		id = newUserID(s.now())
		return b.Put([]byte(UserIDKey), []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("identity: create user id: %w", err)
	}
	return id, nil
}

func newUserID(t time.Time) string {
	return "user-" + strconv.FormatInt(t.UnixMilli(), 10)
}

// Static is a fixed user id, used when the caller supplies one explicitly.
type Static string

func (s Static) UserID(_ context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", errors.New("identity: static user id is empty")
	}
	return id, nil
}
