// Command worldload loads world definition files into a bbolt database
// offline, and inspects or validates what is stored.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gaia-mud/gaia/pkg/account"
	"github.com/gaia-mud/gaia/pkg/boltstore"
	"github.com/gaia-mud/gaia/pkg/g"
	"github.com/gaia-mud/gaia/pkg/game"
	"github.com/gaia-mud/gaia/pkg/world"
)

func main() {
	storePath := flag.String("store", "", "Path to bbolt world database")
	worldDir := flag.String("worlddir", "", "World definition directory to load")
	list := flag.Bool("list", false, "List all stored objects")
	showObj := flag.String("obj", "", "Show details for one object by ref")
	validate := flag.Bool("validate", false, "Run referential integrity checks")
	flag.Parse()

	if *storePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: worldload -store <gaia.db> [-worlddir <dir>] [options]")
		fmt.Fprintln(os.Stderr, "  -worlddir <dir>  Load definitions before inspecting")
		fmt.Fprintln(os.Stderr, "  -list            List all objects")
		fmt.Fprintln(os.Stderr, "  -obj <ref>       Show object details")
		fmt.Fprintln(os.Stderr, "  -validate        Run integrity checks")
		os.Exit(1)
	}

	db, err := boltstore.Open(*storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: open %s: %v\n", *storePath, err)
		os.Exit(2)
	}
	defer db.Close()

	if *worldDir != "" {
		cfg := game.DefaultConfig()
		cfg.StorePath = *storePath
		cache := world.NewCache(db.World())
		accounts := account.NewManager(db.Accounts())
		gm := game.NewGame(cfg, cache, accounts)

		start := time.Now()
		if err := gm.Bootstrap(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: bootstrap: %v\n", err)
			os.Exit(2)
		}
		n, err := gm.LoadWorldDir(*worldDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		if err := cache.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: flush: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Loaded %d definitions from %s in %v\n", n, *worldDir, time.Since(start).Round(time.Millisecond))
	}

	fmt.Printf("Store %s: %d objects\n", *storePath, db.World().Count())

	if *list {
		fmt.Println()
		printList(db.World())
	}
	if *showObj != "" {
		fmt.Println()
		printObject(db.World(), *showObj)
	}
	if *validate {
		fmt.Println()
		if errs := runValidation(db.World()); errs > 0 {
			os.Exit(1)
		}
	}
}

func printList(ws *boltstore.WorldStore) {
	type row struct {
		id, name string
		parents  int
		attrs    int
	}
	var rows []row
	ws.ForEach(func(obj *world.Object, _ world.Revision) error {
		rows = append(rows, row{obj.ID, obj.Name, len(obj.ParentIDs), len(obj.Attributes)})
		return nil
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })

	fmt.Printf("%-28s %-20s %8s %8s\n", "ID", "Name", "Parents", "Attrs")
	fmt.Println(strings.Repeat("-", 68))
	for _, r := range rows {
		fmt.Printf("%-28s %-20s %8d %8d\n", r.id, r.name, r.parents, r.attrs)
	}
}

func printObject(ws *boltstore.WorldStore, id string) {
	obj, rev, err := ws.Fetch(id)
	if err != nil {
		fmt.Printf("Object %s not found\n", id)
		return
	}
	fmt.Printf("=== %s (rev %s) ===\n", obj.ID, rev)
	fmt.Printf("Name:        %s\n", obj.Name)
	fmt.Printf("Description: %s\n", obj.Description)
	fmt.Printf("Parents:     %s\n", strings.Join(obj.ParentIDs, " "))
	fmt.Printf("Location:    %s\n", obj.LocationID)
	fmt.Printf("Contents:    %s\n", strings.Join(obj.ContentIDs, " "))
	fmt.Printf("Owner:       %s\n", obj.OwnerID)

	names := make([]string, 0, len(obj.Attributes))
	for k := range obj.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	fmt.Printf("\n--- Attributes (%d) ---\n", len(names))
	for _, k := range names {
		val := world.ToString(obj.Attributes[k])
		if len(val) > 120 {
			val = val[:120] + "..."
		}
		fmt.Printf("  %s = %s\n", k, val)
	}
}

// runValidation checks parent/location/contents references and that
// every code-shaped attribute parses.
func runValidation(ws *boltstore.WorldStore) int {
	known := make(map[string]bool)
	ws.ForEach(func(obj *world.Object, _ world.Revision) error {
		known[obj.ID] = true
		return nil
	})

	errors := 0
	ws.ForEach(func(obj *world.Object, _ world.Revision) error {
		if obj.ID != world.RootID && len(obj.ParentIDs) == 0 {
			fmt.Printf("ERROR: %s has no parents\n", obj.ID)
			errors++
		}
		for _, p := range obj.ParentIDs {
			if !known[p] {
				fmt.Printf("ERROR: %s parent %s does not exist\n", obj.ID, p)
				errors++
			}
		}
		if obj.LocationID != "" && !known[obj.LocationID] {
			fmt.Printf("ERROR: %s location %s does not exist\n", obj.ID, obj.LocationID)
			errors++
		}
		for _, c := range obj.ContentIDs {
			if !known[c] {
				fmt.Printf("ERROR: %s contents entry %s does not exist\n", obj.ID, c)
				errors++
			}
		}
		for name, v := range obj.Attributes {
			src, ok := v.(string)
			if !ok || !strings.HasPrefix(strings.TrimSpace(src), "[") {
				continue
			}
			if name != "run" && !strings.HasPrefix(name, "cmd_") && !strings.HasPrefix(name, "on_") {
				continue
			}
			if _, err := g.ParseProgram(src); err != nil {
				fmt.Printf("ERROR: %s.%s does not parse: %v\n", obj.ID, name, err)
				errors++
			}
		}
		return nil
	})

	fmt.Printf("\nValidation complete: %d errors\n", errors)
	return errors
}
