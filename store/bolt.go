// Copyright 2023 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists declarations in a bolt database, so that deferred
// operators can be recompiled across restarts.
package store

import (
	"bytes"
	"encoding/gob"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"golang.org/x/exp/slices"

	"github.com/dolthub/go-relational-compiler/sql"
)

// buckets:
// - declarations: object name -> declaration text
// - dependencies: object name -> names of the objects it uses (gob encoding)
var (
	declarationsBucket = []byte("declarations")
	dependenciesBucket = []byte("dependencies")
)

const openTimeout = time.Second

// BoltStore is a sql.DeclarationStore backed by a bolt database file.
type BoltStore struct {
	path string

	mu sync.RWMutex
	db *bolt.DB
}

var _ sql.DeclarationStore = (*BoltStore)(nil)

// Open opens the store at path, creating the file when it does not exist.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0640, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{declarationsBucket, dependenciesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{path: path, db: db}, nil
}

// Path returns the file the store was opened from.
func (s *BoltStore) Path() string { return s.path }

// Close closes the underlying database. Closing twice is a no-op.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BoltStore) view(fn func(tx *bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.View(fn)
}

func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(fn)
}

// Declaration implements sql.DeclarationStore.
func (s *BoltStore) Declaration(name string) (string, error) {
	var text string
	err := s.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(declarationsBucket).Get([]byte(name))
		if v == nil {
			return sql.ErrDeclarationNotFound.New(name)
		}
		text = string(v)
		return nil
	})
	return text, err
}

// PutDeclaration implements sql.DeclarationStore.
func (s *BoltStore) PutDeclaration(name, text string, dependencies []string) error {
	deps, err := encodeNames(dependencies)
	if err != nil {
		return err
	}

	return s.update(func(tx *bolt.Tx) error {
		key := []byte(name)
		if err := tx.Bucket(declarationsBucket).Put(key, []byte(text)); err != nil {
			return err
		}
		return tx.Bucket(dependenciesBucket).Put(key, deps)
	})
}

// Dependents implements sql.DeclarationStore.
func (s *BoltStore) Dependents(name string) ([]string, error) {
	var dependents []string
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(dependenciesBucket).ForEach(func(k, v []byte) error {
			deps, err := decodeNames(v)
			if err != nil {
				return err
			}
			if slices.Contains(deps, name) {
				dependents = append(dependents, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// bolt iterates in key order already.
	return dependents, nil
}

// DeleteDeclaration implements sql.DeclarationStore.
func (s *BoltStore) DeleteDeclaration(name string) error {
	return s.update(func(tx *bolt.Tx) error {
		key := []byte(name)
		decls := tx.Bucket(declarationsBucket)
		if decls.Get(key) == nil {
			return sql.ErrDeclarationNotFound.New(name)
		}
		if err := decls.Delete(key); err != nil {
			return err
		}
		return tx.Bucket(dependenciesBucket).Delete(key)
	})
}

func encodeNames(names []string) ([]byte, error) {
	if len(names) == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(names); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeNames(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var names []string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&names); err != nil {
		return nil, err
	}
	return names, nil
}
