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

// table is a backend-agnostic prefixed view over a Database, the same
// prefixing idea as badgerTable/levelTable (badger_database.go,
// leveldb_database.go) but written once against the Database interface
// instead of once per backend, since prefixing is pure key-rewriting
// with no backend-specific behavior.
type table struct {
	db     Database
	prefix string
}

func newTable(db Database, prefix string) *table {
	return &table{db: db, prefix: prefix}
}

func (t *table) Type() DBType { return t.db.Type() }
func (t *table) Path() string { return t.db.Path() }

func (t *table) key(k []byte) []byte {
	return append([]byte(t.prefix), k...)
}

func (t *table) Put(key, value []byte) error { return t.db.Put(t.key(key), value) }
func (t *table) Has(key []byte) (bool, error) { return t.db.Has(t.key(key)) }
func (t *table) Get(key []byte) ([]byte, error) { return t.db.Get(t.key(key)) }
func (t *table) Delete(key []byte) error        { return t.db.Delete(t.key(key)) }
func (t *table) Close()                         {}

func (t *table) NewBatch() Batch {
	return &tableBatch{batch: t.db.NewBatch(), prefix: t.prefix}
}

type tableBatch struct {
	batch  Batch
	prefix string
}

func (tb *tableBatch) Put(key, value []byte) error {
	return tb.batch.Put(append([]byte(tb.prefix), key...), value)
}
func (tb *tableBatch) Delete(key []byte) error {
	return tb.batch.Delete(append([]byte(tb.prefix), key...))
}
func (tb *tableBatch) Write() error    { return tb.batch.Write() }
func (tb *tableBatch) ValueSize() int  { return tb.batch.ValueSize() }
func (tb *tableBatch) Reset()          { tb.batch.Reset() }
