package credstore

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/headless/internal/util"
)

const (
	boltBucket   = "credentials"
	boltTokenKey = "session_token"

	sealAAD     = "headless:session_token:v1"
	sealKeyInfo = "headless:credstore_seal_key:v1"
)

// Bolt persists the session token in a bbolt database, sealed with
// AES-256-GCM under a key derived from a caller-provided secret via
// HKDF-SHA256. The secret must come from outside the database (flag,
// environment variable, OS keychain) so a copied database file alone does
// not leak the token.
//
// A token sealed under a different secret is unreadable; Load then reports
// "no token" rather than an error — the client simply starts signed out.
type Bolt struct {
	db  *bbolt.DB
	key []byte
}

var _ Persistence = (*Bolt)(nil)

// NewBolt creates a Persistence backend over an open bbolt database.
func NewBolt(db *bbolt.DB, secret []byte) (*Bolt, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("sealing secret must not be empty")
	}
	key, err := util.HKDF(secret, nil, []byte(sealKeyInfo))
	if err != nil {
		return nil, fmt.Errorf("deriving sealing key: %w", err)
	}
	return &Bolt{db: db, key: key}, nil
}

// NewBoltFromFile opens (or creates) a bbolt database at path and returns
// a Persistence backend over it.
func NewBoltFromFile(path string, secret []byte, options *bbolt.Options) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening credential db: %w", err)
	}
	b, err := NewBolt(db, secret)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Close wipes the derived key and closes the underlying database.
func (b *Bolt) Close() error {
	util.WipeBytes(b.key)
	return b.db.Close()
}

func (b *Bolt) LoadSessionToken() (string, error) {
	var sealed []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(boltBucket))
		if bkt == nil {
			return nil
		}
		if v := bkt.Get([]byte(boltTokenKey)); v != nil {
			sealed = util.CopyBytes(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading credential db: %w", err)
	}
	if sealed == nil {
		return "", nil
	}
	token, err := util.OpenAES(sealed, b.key, []byte(sealAAD))
	if err != nil {
		// Wrong secret or corrupt record: treat as absent.
		return "", nil
	}
	defer util.WipeBytes(token)
	return string(token), nil
}

func (b *Bolt) SaveSessionToken(token string) error {
	if token == "" {
		return b.db.Update(func(tx *bbolt.Tx) error {
			bkt := tx.Bucket([]byte(boltBucket))
			if bkt == nil {
				return nil
			}
			return bkt.Delete([]byte(boltTokenKey))
		})
	}
	sealed, err := util.SealAES([]byte(token), b.key, []byte(sealAAD))
	if err != nil {
		return fmt.Errorf("sealing session token: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		if err != nil {
			return err
		}
		return bkt.Put([]byte(boltTokenKey), sealed)
	})
}
