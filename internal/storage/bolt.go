package storage

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketName = []byte("store")
	imageKey   = []byte("image")
)

// BoltStore keeps the flat byte image in a single bbolt value so that it
// survives restarts. Every Put is its own committed transaction and every
// Get reads the committed image, so write-verify reads observe what is on
// disk rather than a cache.
type BoltStore struct {
	db   *bolt.DB
	size int
}

// OpenBolt opens (or creates) the database at path holding an image of size
// bytes. A new or shorter image is padded with erased bytes.
func OpenBolt(path string, size int) (*BoltStore, error) {
	if size <= 0 {
		return nil, fmt.Errorf("open store: invalid size %d", size)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		current := b.Get(imageKey)
		if len(current) >= size {
			return nil
		}
		image := make([]byte, size)
		for i := range image {
			image[i] = Erased
		}
		copy(image, current)
		return b.Put(imageKey, image)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store %s: %w", path, err)
	}

	return &BoltStore{db: db, size: size}, nil
}

// Size returns the number of addressable bytes.
func (s *BoltStore) Size() int {
	return s.size
}

// Get returns the committed byte at addr.
func (s *BoltStore) Get(addr int) (byte, error) {
	if addr < 0 || addr >= s.size {
		return 0, fmt.Errorf("%w: %d", ErrAddress, addr)
	}

	var out byte
	err := s.db.View(func(tx *bolt.Tx) error {
		image, err := readImage(tx)
		if err != nil {
			return err
		}
		out = image[addr]
		return nil
	})
	return out, err
}

// Put commits b at addr.
func (s *BoltStore) Put(addr int, b byte) error {
	if addr < 0 || addr >= s.size {
		return fmt.Errorf("%w: %d", ErrAddress, addr)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		image, err := readImage(tx)
		if err != nil {
			return err
		}
		next := make([]byte, len(image))
		copy(next, image)
		next[addr] = b
		return tx.Bucket(bucketName).Put(imageKey, next)
	})
}

// Fill commits an image with every byte set to b.
func (s *BoltStore) Fill(b byte) error {
	image := make([]byte, s.size)
	for i := range image {
		image[i] = b
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := readImage(tx); err != nil {
			return err
		}
		return tx.Bucket(bucketName).Put(imageKey, image)
	})
}

// Close releases the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func readImage(tx *bolt.Tx) ([]byte, error) {
	b := tx.Bucket(bucketName)
	if b == nil {
		return nil, errors.New("store bucket missing")
	}
	image := b.Get(imageKey)
	if image == nil {
		return nil, errors.New("store image missing")
	}
	return image, nil
}
