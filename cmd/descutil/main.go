// Copyright (c) 2024 The tapyrus-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// descutil inspects output script descriptors.  It parses a descriptor,
// prints its canonical form, and expands it into the concrete output scripts
// it describes, deriving child keys along wildcard paths as needed.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/TORIFUKUKaiou/tapyrus-core/descriptor"
	flags "github.com/jessevdk/go-flags"
)

type config struct {
	Index   uint32 `short:"i" long:"index" description:"Wildcard index to start expanding a ranged descriptor at"`
	Count   uint32 `short:"n" long:"count" description:"Number of consecutive indices to expand a ranged descriptor for" default:"1"`
	Private bool   `short:"p" long:"private" description:"Also print the private form of the descriptor"`
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "descutil: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	cfg := config{}
	parser := flags.NewParser(&cfg, flags.Default)
	parser.Usage = "[OPTIONS] DESCRIPTOR"
	remaining, err := parser.Parse()
	if err != nil {
		os.Exit(1)
	}
	if len(remaining) != 1 {
		fatalf("exactly one descriptor argument is required")
	}

	tree, keys, err := descriptor.Parse(remaining[0])
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Println("descriptor:", tree)
	fmt.Println("ranged:    ", tree.IsRange())
	if cfg.Private {
		priv, err := tree.ToPrivateString(keys)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Println("private:   ", priv)
	}

	count := cfg.Count
	if !tree.IsRange() {
		count = 1
	}
	for i := uint32(0); i < count; i++ {
		index := cfg.Index + i
		scripts, prov, err := tree.ExpandAt(index, keys)
		if err != nil {
			fatalf("expanding at index %d: %v", index, err)
		}
		solver := descriptor.Merge(keys, prov)
		for _, script := range scripts {
			label := "script:    "
			if tree.IsRange() {
				label = fmt.Sprintf("script %-4d", index)
			}
			note := ""
			if descriptor.IsSolvable(solver, script) {
				note = " (solvable)"
			}
			fmt.Printf("%s %s%s\n", label, hex.EncodeToString(script),
				note)
		}
	}
}
