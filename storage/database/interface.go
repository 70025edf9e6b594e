// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package database

import "errors"

// ErrKeyNotFound is returned by Get/Has-backed readers when a key is
// absent, the "missing data" error kind of spec §7.
var ErrKeyNotFound = errors.New("database: key not found")

// DBType selects the KV backend a table or the whole store is opened
// against.
type DBType int

const (
	BadgerDB DBType = iota
	LevelDB
)

func (t DBType) String() string {
	switch t {
	case BadgerDB:
		return "BadgerDB"
	case LevelDB:
		return "LevelDB"
	default:
		return "Unknown"
	}
}

// Database is the raw KV contract every backend (badger, goleveldb)
// and every table view over a backend implements. Grounded on the
// method set shared by badger_database.go and leveldb_database.go.
type Database interface {
	Type() DBType
	Path() string
	Put(key, value []byte) error
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	NewBatch() Batch
	Close()
}

// Batch accumulates writes for a single atomic commit. One write
// transaction per batch, per spec §4.1's "Write service" (each request
// maps to exactly one write transaction committed before responding).
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Write() error
	ValueSize() int
	Reset()
}

// Iterator walks a backend's keys in order. No operation in this
// package uses it: range-shaped reads, alt-block tables included, are
// done by point lookups over a known key range (see tables.go).
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}
