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

import "github.com/cuprated-go/cuprated/consensus/errkind"

// Engine is the storage engine of spec §4.1: a read handle and a write
// handle sharing one store instance, so every write the writer commits
// is immediately visible to the read pool.
type Engine struct {
	Reader *Reader
	Writer *Writer
}

// Open opens db under cfg, wraps it in the Monero table set, and
// starts both the read pool and the single-writer actor against it.
func Open(db Database, cfg Config) (*Engine, error) {
	cfg.sanitize()
	s := newStore(db)
	if err := s.open(); err != nil {
		return nil, errkind.Wrap(errkind.KindStorageFault, err, "open storage engine")
	}
	return &Engine{
		Writer: startWriterOnStore(s, cfg),
		Reader: startReaderOnStore(s, cfg),
	}, nil
}

// Close stops the writer and the read pool, then closes the backend.
func (e *Engine) Close() {
	e.Writer.Stop()
	e.Reader.Stop()
	e.Writer.s.db.Close()
}
