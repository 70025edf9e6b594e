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

package consensuscontext

import "github.com/cuprated-go/cuprated/common"

// Database is the read surface the context cache needs from the
// storage engine to initialize and refill its rolling windows. It is
// satisfied by an adapter over storage/database (see
// storage/database/context_adapter.go), kept as a narrow interface
// here per spec §9's guidance to collapse cross-component calls to a
// single small interface rather than a deep trait hierarchy.
type Database interface {
	ChainHeight() (height uint64, topHash common.Hash, err error)
	GeneratedCoinsAt(height uint64) (uint64, error)
	BlockVotesInRange(lo, hi uint64) ([]BlockHeaderVote, error)
	BlockWeightsInRange(lo, hi uint64) ([]uint64, error)
	LongTermWeightsInRange(lo, hi uint64) ([]uint64, error)
	DifficultyPointsInRange(lo, hi uint64) ([]DifficultyPointDTO, error)
	MajorVersionAt(height uint64) (uint8, error)
}

// DifficultyPointDTO crosses the package boundary as an exported shape
// (difficultyPoint itself is unexported, being an internal cache
// detail); toDifficultyPoints below converts between the two.
type DifficultyPointDTO struct {
	Timestamp            uint64
	CumulativeDifficulty uint64
}

func toDifficultyPoints(dtos []DifficultyPointDTO) []difficultyPoint {
	out := make([]difficultyPoint, len(dtos))
	for i, d := range dtos {
		out[i] = difficultyPoint{Timestamp: d.Timestamp, CumulativeDifficulty: d.CumulativeDifficulty}
	}
	return out
}
