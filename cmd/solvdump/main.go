// Command solvdump loads a `.solv` file and prints its pool and solvable
// contents to stdout, the Go-idiomatic analogue of the reference tree's
// dumpsolv tool. It is read-only and diagnostic: no solving, no writing.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/solv/internal/config"
	"github.com/standardbeagle/solv/internal/debug"
	"github.com/standardbeagle/solv/internal/evr"
	"github.com/standardbeagle/solv/internal/pool"
	"github.com/standardbeagle/solv/internal/reader"
	"github.com/standardbeagle/solv/internal/repodata"
	"github.com/standardbeagle/solv/internal/types"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "solvdump",
		Usage: "dump the contents of a .solv repository file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path",
				Value:   "solv.toml",
			},
			&cli.BoolFlag{
				Name:    "attr",
				Aliases: []string{"a"},
				Usage:   "also dump per-solvable attributes (provides/requires/etc)",
			},
		},
		Action: dumpCommand,
	}
}

func main() {
	debug.SetOutput(os.Stderr)

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "solvdump: %v\n", err)
		os.Exit(1)
	}
}

func dumpCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: solvdump [-a] <solvfile>", 1)
	}
	path := c.Args().First()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load config: %v", err), 1)
	}
	debug.Log("solvdump", "using disttype=%s promote_epoch=%t\n", cfg.Pool.Disttype, cfg.Pool.PromoteEpoch)

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("%v", err), 1)
	}
	defer f.Close()

	p := pool.New(dialectFor(cfg.Pool.Disttype))
	p.PromoteEpoch = cfg.Pool.PromoteEpoch

	result, err := reader.ReadAll(f, p, path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("could not read repository: %v", err), 1)
	}

	fmt.Printf("pool contains %d strings, %d rels\n", p.Strings.NumStrings(), p.Rels.NumRels())
	fmt.Printf("repo start: %d end: %d\n", result.Start, result.End)

	withAttr := c.Bool("attr")
	n := 0
	for solvid := result.Start; solvid < result.End; solvid++ {
		n++
		s := &p.Solvables[solvid]
		fmt.Printf("\nsolvable %d (%d):\n", n, solvid)
		fmt.Printf("name: %s %s %s\n", p.Id2Str(s.Name), p.Id2Str(s.Evr), p.Id2Str(s.Arch))
		if s.Vendor != types.IdNull {
			fmt.Printf("vendor: %s\n", p.Id2Str(s.Vendor))
		}
		if !withAttr {
			continue
		}
		rd, ok := result.Repodatas[solvid]
		if !ok {
			continue
		}
		printIdArray(p, rd, solvid, "provides", types.SolvableProvides)
		printIdArray(p, rd, solvid, "obsoletes", types.SolvableObsoletes)
		printIdArray(p, rd, solvid, "conflicts", types.SolvableConflicts)
		printIdArray(p, rd, solvid, "requires", types.SolvableRequires)
		printIdArray(p, rd, solvid, "recommends", types.SolvableRecommends)
		printIdArray(p, rd, solvid, "suggests", types.SolvableSuggests)
		printIdArray(p, rd, solvid, "supplements", types.SolvableSupplements)
		printIdArray(p, rd, solvid, "enhances", types.SolvableEnhances)
	}
	return nil
}

func printIdArray(p *pool.Pool, rd *repodata.Repodata, solvid int, label string, keyname types.Id) {
	ids, ok := rd.LookupIdArray(solvid, keyname)
	if !ok || len(ids) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, id := range ids {
		if id == types.SolvablePrereqMarker {
			fmt.Println("  ***")
			continue
		}
		fmt.Printf("  %s\n", p.Id2Str(id))
	}
}

func dialectFor(name string) evr.Dialect {
	switch name {
	case "deb", "debian":
		return evr.DialectDebian
	case "apk":
		return evr.DialectAPK
	default:
		return evr.DialectRPM
	}
}
