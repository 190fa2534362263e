package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gaia-mud/gaia/pkg/world"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadWorldDirDefinitions(t *testing.T) {
	gm := newTestGame(t)
	dir := t.TempDir()

	writeFile(t, dir, "rooms.yaml", `
- id: "#plaza"
  name: plaza
  description: A wide stone plaza.
  contents: ["#fountain"]
- id: "#fountain"
  name: fountain
  location: "#plaza"
  attributes:
    depth: 3
    feeds: "#plaza"
    tags: [stone, wet]
`)
	writeFile(t, dir, "sword.json", `{
  "id": "#sword",
  "name": "rusty sword",
  "location": "#plaza",
  "attributes": {"damage": 2}
}`)

	n, err := gm.LoadWorldDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 3 {
		t.Errorf("loaded = %d, want 3", n)
	}

	plaza, err := gm.Cache.Get("#plaza")
	if err != nil {
		t.Fatalf("plaza: %v", err)
	}
	if plaza.Description != "A wide stone plaza." {
		t.Errorf("description = %q", plaza.Description)
	}
	if len(plaza.ParentIDs) != 1 || plaza.ParentIDs[0] != world.RootID {
		t.Errorf("default parent = %v", plaza.ParentIDs)
	}

	// Scalars normalize: ints to float64, #-strings to refs, lists to
	// world.List.
	if v, _, _ := gm.Cache.GetAttribute("#fountain", "depth"); v != float64(3) {
		t.Errorf("depth = %#v, want float64(3)", v)
	}
	if v, _, _ := gm.Cache.GetAttribute("#fountain", "feeds"); v != world.Ref("#plaza") {
		t.Errorf("feeds = %#v, want ref #plaza", v)
	}
	if v, _, _ := gm.Cache.GetAttribute("#fountain", "tags"); !world.Equal(v, world.List{"stone", "wet"}) {
		t.Errorf("tags = %#v", v)
	}
	if v, _, _ := gm.Cache.GetAttribute("#sword", "damage"); v != float64(2) {
		t.Errorf("damage = %#v, want float64(2)", v)
	}
}

func TestLoadWorldDirSources(t *testing.T) {
	gm := newTestGame(t)
	dir := t.TempDir()

	writeFile(t, dir, "commands.cmd_wave.g", `[send @actor "You wave."]`)
	writeFile(t, dir, "greeter.g", `[send @actor "Hello."]`)

	if _, err := gm.LoadWorldDir(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Dotted file names address object and attribute.
	v, ok, _ := gm.Cache.GetAttribute(CommandsID, "cmd_wave")
	if !ok || v != `[send @actor "You wave."]` {
		t.Errorf("cmd_wave = %#v ok=%v", v, ok)
	}

	// A bare name creates the object and fills its run attribute.
	greeter, err := gm.Cache.Get("#greeter")
	if err != nil {
		t.Fatalf("greeter not created: %v", err)
	}
	if greeter.ParentIDs[0] != world.RootID {
		t.Errorf("greeter parents = %v", greeter.ParentIDs)
	}
	if _, ok, _ := gm.Cache.GetAttribute("#greeter", "run"); !ok {
		t.Error("greeter.run not assigned")
	}
}

func TestLoadWorldDirRejectsBadSource(t *testing.T) {
	gm := newTestGame(t)
	dir := t.TempDir()
	writeFile(t, dir, "broken.g", `[concat "unterminated`)

	if _, err := gm.LoadWorldDir(dir); err == nil {
		t.Fatal("unparseable source accepted")
	}
}

func TestLoadWorldDirRejectsBadID(t *testing.T) {
	gm := newTestGame(t)
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", `{id: plaza, name: plaza}`)

	if _, err := gm.LoadWorldDir(dir); err == nil {
		t.Fatal("id without # accepted")
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	gm := newTestGame(t)

	// newTestGame already bootstrapped once; decorate #commands and run
	// it again.
	if err := gm.Cache.SetAttribute(CommandsID, "cmd_sing", `"La."`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := gm.Bootstrap(); err != nil {
		t.Fatalf("re-bootstrap: %v", err)
	}
	if _, ok, _ := gm.Cache.GetAttribute(CommandsID, "cmd_sing"); !ok {
		t.Error("re-bootstrap clobbered #commands")
	}
	for _, id := range []string{world.RootID, UserParentID, CommandsID, ConfigID} {
		if _, err := gm.Cache.Get(id); err != nil {
			t.Errorf("well-known object %s missing: %v", id, err)
		}
	}
}

func TestTextFilesLoad(t *testing.T) {
	tf := NewTextFiles()
	if tf.Welcome() == "" || tf.Motd() == "" || tf.Quit() == "" {
		t.Fatal("defaults missing")
	}

	dir := t.TempDir()
	writeFile(t, dir, "welcome.txt", "Hello there.\n")
	writeFile(t, dir, "quit.txt", "Bye.\n")

	if err := tf.Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if tf.Welcome() != "Hello there." {
		t.Errorf("welcome = %q", tf.Welcome())
	}
	if tf.Quit() != "Bye." {
		t.Errorf("quit = %q", tf.Quit())
	}
	// motd.txt is absent; the default stands.
	if tf.Motd() != defaultMotd {
		t.Errorf("motd = %q", tf.Motd())
	}
}
