package game

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gaia-mud/gaia/pkg/g"
	"github.com/gaia-mud/gaia/pkg/world"
)

// worldDef is one object in a world definition file. Attribute values
// come in as plain YAML/JSON scalars and lists.
type worldDef struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Parents     []string       `yaml:"parents" json:"parents"`
	Location    string         `yaml:"location" json:"location"`
	Contents    []string       `yaml:"contents" json:"contents"`
	Owner       string         `yaml:"owner" json:"owner"`
	Attributes  map[string]any `yaml:"attributes" json:"attributes"`
}

// LoadWorldDir walks the world directory and loads every definition
// into the cache. `.yaml`/`.yml`/`.json` files hold one object or a
// list of objects; `.g` files hold source assigned to an attribute by
// file name: `commands.g` fills #commands.run, `commands.cmd_look.g`
// fills #commands.cmd_look. Returns the number of objects touched.
func (gm *Game) LoadWorldDir(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			n, err := gm.loadDefinitionFile(path)
			if err != nil {
				return err
			}
			count += n
		case ".g":
			if err := gm.loadSourceFile(path); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("game: load world dir %s: %w", dir, err)
	}
	return count, nil
}

// loadDefinitionFile reads one YAML or JSON file holding either a
// single object or a list.
func (gm *Game) loadDefinitionFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("game: read %s: %w", path, err)
	}

	var defs []worldDef
	isJSON := strings.EqualFold(filepath.Ext(path), ".json")
	if err := unmarshalDefs(data, isJSON, &defs); err != nil {
		return 0, fmt.Errorf("game: parse %s: %w", path, err)
	}

	for _, def := range defs {
		if def.ID == "" {
			return 0, fmt.Errorf("game: %s: object with no id", path)
		}
		if !strings.HasPrefix(def.ID, "#") {
			return 0, fmt.Errorf("game: %s: object id %q must start with #", path, def.ID)
		}
		obj := world.NewObject(def.ID, def.Parents...)
		if len(def.Parents) == 0 && def.ID != world.RootID {
			obj.ParentIDs = []string{world.RootID}
		}
		obj.Name = def.Name
		obj.Description = def.Description
		obj.LocationID = def.Location
		obj.ContentIDs = def.Contents
		obj.OwnerID = def.Owner
		for k, v := range def.Attributes {
			obj.SetAttr(k, defValue(v))
		}
		if err := gm.Cache.Put(obj); err != nil {
			return 0, fmt.Errorf("game: store %s from %s: %w", def.ID, path, err)
		}
	}
	return len(defs), nil
}

func unmarshalDefs(data []byte, isJSON bool, defs *[]worldDef) error {
	if isJSON {
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			return json.Unmarshal(data, defs)
		}
		var one worldDef
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*defs = []worldDef{one}
		return nil
	}
	if err := yaml.Unmarshal(data, defs); err == nil {
		return nil
	}
	var one worldDef
	if err := yaml.Unmarshal(data, &one); err != nil {
		return err
	}
	*defs = []worldDef{one}
	return nil
}

// defValue converts a decoded YAML/JSON scalar into an attribute value.
// Strings starting with "#" become object refs; numbers normalize to
// float64.
func defValue(v any) world.Value {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	case bool:
		return t
	case nil:
		return nil
	case string:
		if strings.HasPrefix(t, "#") && !strings.ContainsAny(t, " \t\n") {
			return world.Ref(t)
		}
		return t
	case []any:
		out := make(world.List, len(t))
		for i, e := range t {
			out[i] = defValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]world.Value, len(t))
		for k, e := range t {
			out[k] = defValue(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", t)
	}
}

// loadSourceFile validates a .g file and writes it onto the target
// attribute named by the file.
func (gm *Game) loadSourceFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("game: read %s: %w", path, err)
	}
	src := string(data)
	if _, err := g.ParseProgram(src); err != nil {
		return fmt.Errorf("game: %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), ".g")
	objName := base
	attr := "run"
	if i := strings.IndexByte(base, '.'); i >= 0 {
		objName = base[:i]
		attr = base[i+1:]
	}
	id := objName
	if !strings.HasPrefix(id, "#") {
		id = "#" + id
	}

	if _, err := gm.Cache.Get(id); err != nil {
		obj := world.NewObject(id, world.RootID)
		obj.Name = objName
		if err := gm.Cache.Put(obj); err != nil {
			return fmt.Errorf("game: create %s for %s: %w", id, path, err)
		}
	}
	if err := gm.Cache.SetAttribute(id, attr, src); err != nil {
		return fmt.Errorf("game: assign %s.%s from %s: %w", id, attr, path, err)
	}
	return nil
}

// Bootstrap ensures the well-known objects exist: #object (the root),
// #user, #commands and #config. Fresh databases get all four; existing
// ones are left alone.
func (gm *Game) Bootstrap() error {
	if _, err := gm.Cache.Get(world.RootID); err != nil {
		root := world.NewObject(world.RootID)
		root.Name = "object"
		root.Description = "The root of everything."
		if err := gm.Cache.Put(root); err != nil {
			return fmt.Errorf("game: bootstrap %s: %w", world.RootID, err)
		}
		gm.Logf("bootstrap: created %s", world.RootID)
	}
	for _, id := range []string{UserParentID, CommandsID, ConfigID} {
		if _, err := gm.Cache.Get(id); err == nil {
			continue
		}
		obj := world.NewObject(id, world.RootID)
		obj.Name = strings.TrimPrefix(id, "#")
		if err := gm.Cache.Put(obj); err != nil {
			return fmt.Errorf("game: bootstrap %s: %w", id, err)
		}
		gm.Logf("bootstrap: created %s", id)
	}
	return gm.Accounts.Bootstrap(gm.Cfg.AdminLogin, gm.Cfg.AdminPassword)
}
