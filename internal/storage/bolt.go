package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"paperbroker/internal/broker"
)

var ErrNotFound = errors.New("storage: not found")

const (
	bucketSettlements  = "settlements"
	bucketTransactions = "transactions"
)

// BoltStore persists settlement snapshots and the fill history so a
// finished run can be inspected after the process exits.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	s := &BoltStore{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketSettlements)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketTransactions)); err != nil {
			return err
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveSettlement appends a settlement under a monotonically increasing
// sequence key so iteration order matches settlement order.
func (s *BoltStore) SaveSettlement(_ context.Context, settlement broker.Settlement) error {
	raw, err := json.Marshal(settlement)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSettlements))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), raw)
	})
}

func (s *BoltStore) LoadSettlements(_ context.Context) ([]broker.Settlement, error) {
	var out []broker.Settlement
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSettlements)).ForEach(func(_, v []byte) error {
			var settlement broker.Settlement
			if err := json.Unmarshal(v, &settlement); err != nil {
				return fmt.Errorf("unmarshal settlement: %w", err)
			}
			out = append(out, settlement)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) LastSettlement(_ context.Context) (broker.Settlement, error) {
	var out broker.Settlement
	err := s.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket([]byte(bucketSettlements)).Cursor().Last()
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &out)
	})
	return out, err
}

// SaveTransactions replaces the stored fill history for a code.
func (s *BoltStore) SaveTransactions(_ context.Context, code string, fills []broker.FillRecord) error {
	raw, err := json.Marshal(fills)
	if err != nil {
		return fmt.Errorf("marshal transactions: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketTransactions)).Put([]byte(code), raw)
	})
}

func (s *BoltStore) LoadTransactions(_ context.Context, code string) ([]broker.FillRecord, error) {
	var out []broker.FillRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketTransactions)).Get([]byte(code))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &out)
	})
	return out, err
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
