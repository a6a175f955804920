// Command journalcat prints interest journal files as JSON lines or as a
// table.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/l1jgo/interest/internal/persist"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	asJSON := flag.Bool("json", false, "print entries as JSON lines")
	flag.Parse()
	if flag.NArg() == 0 {
		return fmt.Errorf("usage: journalcat [-json] <interest-*.jsonl.zst>...")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, path := range flag.Args() {
			entries, err := persist.ReadJournal(path)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "TICK\tTIME\tVIEWERS\tVIEW\tTICKETS\tSETS\tENTER\tEXIT\tMOVE\tJOIN\tLEAVE\t")
	for _, path := range flag.Args() {
		entries, err := persist.ReadJournal(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
				e.Tick, e.Time.Format("15:04:05"), e.Viewers, e.ViewCells, e.Tickets, e.PooledSets,
				e.Enters, e.Exits, e.Moves, e.Joins, e.Leaves)
		}
	}
	return w.Flush()
}
