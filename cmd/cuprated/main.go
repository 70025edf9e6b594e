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

// Command cuprated wires the storage engine, the blockchain context
// cache, the verifier, the chain manager, the tx-pool manager, and the
// Dandelion++ pool into a single running process (spec §4). It is a
// minimal entrypoint: no peer layer is wired (spec §6 is a separate
// module's concern), so incoming blocks and transactions only ever
// arrive through node.HandleBlock/node.HandleTx, e.g. from a test
// driver or an in-process peer implementation built on top of this
// package.
package main

import (
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/cuprated-go/cuprated/log"
)

var logger = log.NewModuleLogger(log.CmdUtils)

func main() {
	app := cli.NewApp()
	app.Name = "cuprated"
	app.Usage = "Monero full-node core daemon"
	app.Flags = nodeFlags
	app.Commands = []cli.Command{dumpConfigCommand}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fatalf("%v", err)
	}
}

func run(ctx *cli.Context) error {
	cfg := makeConfig(ctx)

	n, err := New(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	logger.Info("cuprated started", "datadir", cfg.DataDir, "db", cfg.DBType)

	// No peer layer is wired in this entrypoint; block until
	// interrupted so the started engines keep serving in-process
	// callers (tests, an embedding program) instead of exiting
	// immediately.
	select {}
}
