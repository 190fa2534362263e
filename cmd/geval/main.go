// Command geval is a standalone G evaluation harness: a REPL, a one-shot
// -e mode, and a batch mode with expected-result checking. It runs over
// an in-memory world, optionally seeded from a world definition file.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gaia-mud/gaia/pkg/g"
	"github.com/gaia-mud/gaia/pkg/world"
)

func main() {
	actor := flag.String("actor", "#wizard", "Object ref to act as")
	expr := flag.String("e", "", "Expression to evaluate (non-interactive mode)")
	batch := flag.String("batch", "", "File with expressions to evaluate (one per line)")
	srcDir := flag.String("sourcedir", "", "Directory served to the load builtin")
	flag.Parse()

	cache := world.NewCache(world.NewMemStore())
	seed(cache, *actor)

	w := &harnessWorld{cache: cache, srcDir: *srcDir}

	if *expr != "" {
		fmt.Println(evalOne(w, *actor, *expr))
		w.drain()
		return
	}

	if *batch != "" {
		runBatch(w, *actor, *batch)
		return
	}

	fmt.Println("GAIA G evaluation harness")
	fmt.Printf("Acting as %s. Type G expressions; quit to exit.\n\n", *actor)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("g> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		fmt.Println(evalOne(w, *actor, line))
		w.drain()
	}
}

// seed builds the minimal object graph: the root and the acting object.
func seed(cache *world.Cache, actorID string) {
	root := world.NewObject(world.RootID)
	root.Name = "object"
	cache.Put(root)

	actor := world.NewObject(actorID, world.RootID)
	actor.Name = strings.TrimPrefix(actorID, "#")
	cache.Put(actor)
}

func evalOne(w *harnessWorld, actorID, src string) string {
	ctx := g.NewContext(w, actorID)
	result, err := g.EvalSource(ctx, src)
	if err != nil {
		if f, ok := g.AsFailure(err); ok {
			return f.Diagnostic()
		}
		return "error: " + err.Error()
	}
	return world.ToString(result)
}

func runBatch(w *harnessWorld, actorID, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening batch file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	failed := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		// Format: expression | expected_result (optional)
		parts := strings.SplitN(line, " | ", 2)
		result := evalOne(w, actorID, parts[0])
		w.drain()

		if len(parts) == 2 {
			expected := parts[1]
			status := "PASS"
			if result != expected {
				status = "FAIL"
				failed++
			}
			fmt.Printf("[%s] Line %d: %s\n", status, lineNum, parts[0])
			if status == "FAIL" {
				fmt.Printf("  Expected: %s\n", expected)
				fmt.Printf("  Got:      %s\n", result)
			}
		} else {
			fmt.Printf("Line %d: %s => %s\n", lineNum, parts[0], result)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// harnessWorld adapts the cache to the interpreter without a server:
// sends queue up for printing and every actor counts as admin.
type harnessWorld struct {
	cache  *world.Cache
	srcDir string
	sent   []string
	nextID int
}

var _ g.World = (*harnessWorld)(nil)

func (w *harnessWorld) GetAttribute(id, name string) (world.Value, bool, error) {
	return w.cache.GetAttribute(id, name)
}

func (w *harnessWorld) SetAttribute(id, name string, v world.Value) error {
	return w.cache.SetAttribute(id, name, v)
}

func (w *harnessWorld) GetObject(id string) (*world.Object, error) {
	return w.cache.Get(id)
}

func (w *harnessWorld) CreateObject(name string, parents []string) (*world.Object, error) {
	if len(parents) == 0 {
		parents = []string{world.RootID}
	}
	w.nextID++
	obj := world.NewObject(fmt.Sprintf("#g-%d", w.nextID), parents...)
	obj.Name = name
	if err := w.cache.Put(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (w *harnessWorld) DestroyObject(id string) error {
	return w.cache.Delete(id)
}

func (w *harnessWorld) Send(targetID string, msg world.Value, fromID string) error {
	w.sent = append(w.sent, fmt.Sprintf("  [send %s <- %s]: %s", targetID, fromID, world.ToString(msg)))
	v, ok, err := w.cache.GetAttribute(targetID, "on_message")
	if err != nil || !ok {
		return err
	}
	src, isString := v.(string)
	if !isString {
		return nil
	}
	ctx := g.NewContext(w, targetID)
	if _, err := g.Invoke(ctx, src, []world.Value{msg, world.Ref(fromID)}); err != nil {
		w.Logf("on_message for %s: %v", targetID, err)
	}
	return nil
}

func (w *harnessWorld) LoadSource(name string) (string, error) {
	if w.srcDir == "" {
		return "", fmt.Errorf("no source directory; pass -sourcedir")
	}
	data, err := os.ReadFile(filepath.Join(w.srcDir, filepath.Clean(name)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *harnessWorld) HasRole(actorID, role string) bool { return true }

func (w *harnessWorld) Logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// drain prints queued send deliveries.
func (w *harnessWorld) drain() {
	for _, line := range w.sent {
		fmt.Println(line)
	}
	w.sent = w.sent[:0]
}
