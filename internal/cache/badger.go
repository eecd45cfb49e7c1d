// Package cache - локальный KV кэш на Badger с TTL
//
// Используется для справочника торговых пар: список тянется с биржи
// редко, а страницы автоматизаций запрашивают его постоянно.
package cache

import (
	"errors"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNotOpened = errors.New("cache: not opened")
	ErrEmptyKey  = errors.New("cache: key is empty")
)

// Store - JSON значения в Badger
type Store struct {
	db *badger.DB
}

// Open открывает кэш в каталоге dir, пустой dir = in-memory
func Open(dir string) (*Store, error) {
	var opts badger.Options
	if strings.TrimSpace(dir) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close закрывает БД
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get декодирует значение ключа в out
//
// Возвращает false без ошибки, если ключа нет или истек TTL.
func (s *Store) Get(key string, out interface{}) (bool, error) {
	k, err := s.key(key)
	if err != nil {
		return false, err
	}

	found := false
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Set сохраняет значение, ttl <= 0 = без срока
func (s *Store) Set(key string, value interface{}, ttl time.Duration) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(k, data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete удаляет ключ
func (s *Store) Delete(key string) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

func (s *Store) key(key string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpened
	}
	k := strings.TrimSpace(key)
	if k == "" {
		return nil, ErrEmptyKey
	}
	return []byte(k), nil
}
