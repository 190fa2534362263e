package boltstore

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gaia-mud/gaia/pkg/account"
	"github.com/gaia-mud/gaia/pkg/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWorldStoreRoundTrip(t *testing.T) {
	ws := openTestDB(t).World()

	obj := world.NewObject("#sword", world.RootID)
	obj.Name = "rusty sword"
	obj.SetAttr("damage", float64(3))
	obj.SetAttr("wielder", world.Ref("#bob"))
	obj.SetAttr("tags", world.List{"weapon", "rusty"})

	rev, err := ws.Store(obj, "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if rev == "" {
		t.Fatal("empty revision on create")
	}

	got, gotRev, err := ws.Fetch("#sword")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotRev != rev {
		t.Errorf("revision = %q, want %q", gotRev, rev)
	}
	if got.Name != "rusty sword" {
		t.Errorf("name = %q", got.Name)
	}
	if v, _ := got.GetOwn("damage"); v != float64(3) {
		t.Errorf("damage = %v, want 3", v)
	}
	if v, _ := got.GetOwn("wielder"); v != world.Ref("#bob") {
		t.Errorf("wielder = %#v, want ref #bob", v)
	}
	if v, _ := got.GetOwn("tags"); !world.Equal(v, world.List{"weapon", "rusty"}) {
		t.Errorf("tags = %#v", v)
	}
}

func TestWorldStoreRevisionConflict(t *testing.T) {
	ws := openTestDB(t).World()

	obj := world.NewObject("#a", world.RootID)
	rev1, err := ws.Store(obj, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Re-create over an existing document.
	if _, err := ws.Store(obj, ""); !errors.Is(err, world.ErrConflict) {
		t.Errorf("create over existing: err = %v, want ErrConflict", err)
	}

	rev2, err := ws.Store(obj, rev1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rev2 == rev1 {
		t.Error("revision did not advance")
	}

	// Stale revision.
	if _, err := ws.Store(obj, rev1); !errors.Is(err, world.ErrConflict) {
		t.Errorf("stale update: err = %v, want ErrConflict", err)
	}
	if err := ws.DeleteByID("#a", rev1); !errors.Is(err, world.ErrConflict) {
		t.Errorf("stale delete: err = %v, want ErrConflict", err)
	}
	if err := ws.DeleteByID("#a", rev2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := ws.Fetch("#a"); !errors.Is(err, world.ErrNotFound) {
		t.Errorf("fetch deleted: err = %v, want ErrNotFound", err)
	}
}

func TestWorldStoreIndexes(t *testing.T) {
	ws := openTestDB(t).World()

	put := func(id, location, owner string) {
		t.Helper()
		obj := world.NewObject(id, world.RootID)
		obj.LocationID = location
		obj.OwnerID = owner
		if _, err := ws.Store(obj, ""); err != nil {
			t.Fatalf("store %s: %v", id, err)
		}
	}
	put("#lamp", "#plaza", "#alice")
	put("#sword", "#plaza", "#bob")
	put("#coin", "#vault", "#alice")

	ids, err := ws.ListByIndex("location", "#plaza")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "#lamp" || ids[1] != "#sword" {
		t.Errorf("location index = %v", ids)
	}

	ids, _ = ws.ListByIndex("owner", "#alice")
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "#coin" || ids[1] != "#lamp" {
		t.Errorf("owner index = %v", ids)
	}

	// Moving the object migrates the index entry.
	obj, rev, _ := ws.Fetch("#lamp")
	obj.LocationID = "#vault"
	if _, err := ws.Store(obj, rev); err != nil {
		t.Fatalf("move: %v", err)
	}
	ids, _ = ws.ListByIndex("location", "#plaza")
	if len(ids) != 1 || ids[0] != "#sword" {
		t.Errorf("old location index = %v", ids)
	}
	ids, _ = ws.ListByIndex("location", "#vault")
	sort.Strings(ids)
	if len(ids) != 2 {
		t.Errorf("new location index = %v", ids)
	}

	if _, err := ws.ListByIndex("nope", "x"); err == nil {
		t.Error("unknown index accepted")
	}
}

func TestWorldStoreForEachAndCount(t *testing.T) {
	ws := openTestDB(t).World()
	for _, id := range []string{"#a", "#b", "#c"} {
		if _, err := ws.Store(world.NewObject(id, world.RootID), ""); err != nil {
			t.Fatalf("store %s: %v", id, err)
		}
	}
	if ws.Count() != 3 {
		t.Errorf("count = %d, want 3", ws.Count())
	}
	var seen []string
	ws.ForEach(func(obj *world.Object, rev world.Revision) error {
		seen = append(seen, obj.ID)
		return nil
	})
	sort.Strings(seen)
	if len(seen) != 3 || seen[0] != "#a" || seen[2] != "#c" {
		t.Errorf("foreach = %v", seen)
	}
}

func TestAccountStoreRoundTrip(t *testing.T) {
	as := openTestDB(t).Accounts()

	a := &account.Account{
		ID:    "acct-1",
		Login: "Alice",
		Roles: []string{"player", "admin"},
	}
	if err := a.SetPassword("secret"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := as.Store(a); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := as.Fetch("acct-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Login != "Alice" {
		t.Errorf("login = %q", got.Login)
	}
	if ok, _ := got.CheckPassword("secret"); !ok {
		t.Error("password did not verify after round trip")
	}

	// Login lookup is case-insensitive.
	if _, err := as.FetchByLogin("alice"); err != nil {
		t.Errorf("fetch by lowercased login: %v", err)
	}
	if _, err := as.FetchByLogin("nobody"); !errors.Is(err, account.ErrNotFound) {
		t.Errorf("fetch unknown login: err = %v, want ErrNotFound", err)
	}
}

func TestAccountStoreLoginCollision(t *testing.T) {
	as := openTestDB(t).Accounts()

	a := &account.Account{ID: "acct-1", Login: "bob"}
	if err := as.Store(a); err != nil {
		t.Fatalf("store: %v", err)
	}
	dup := &account.Account{ID: "acct-2", Login: "BOB"}
	if err := as.Store(dup); !errors.Is(err, account.ErrExists) {
		t.Errorf("duplicate login: err = %v, want ErrExists", err)
	}
}

func TestAccountStoreRoleIndex(t *testing.T) {
	as := openTestDB(t).Accounts()

	for i, roles := range [][]string{{"player"}, {"player", "admin"}, {"admin"}} {
		a := &account.Account{
			ID:    "acct-" + string(rune('a'+i)),
			Login: "user" + string(rune('a'+i)),
			Roles: roles,
		}
		if err := as.Store(a); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	ids, err := as.ListByRole("admin")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "acct-b" || ids[1] != "acct-c" {
		t.Errorf("admin role index = %v", ids)
	}

	// Role removal updates the index.
	b, _ := as.Fetch("acct-b")
	b.Roles = []string{"player"}
	if err := as.Store(b); err != nil {
		t.Fatalf("update: %v", err)
	}
	ids, _ = as.ListByRole("admin")
	if len(ids) != 1 || ids[0] != "acct-c" {
		t.Errorf("admin role index after removal = %v", ids)
	}
}

func TestAccountStoreRevisions(t *testing.T) {
	as := openTestDB(t).Accounts()

	a := &account.Account{ID: "acct-1", Login: "carol"}
	if err := as.Store(a); err != nil {
		t.Fatalf("create: %v", err)
	}
	rev1 := a.Revision

	if err := as.Store(a); err != nil {
		t.Fatalf("update with fresh revision: %v", err)
	}
	if a.Revision == rev1 {
		t.Error("revision did not advance")
	}

	stale := &account.Account{ID: "acct-1", Login: "carol", Revision: rev1}
	if err := as.Store(stale); !errors.Is(err, world.ErrConflict) {
		t.Errorf("stale store: err = %v, want ErrConflict", err)
	}
}

func TestBackup(t *testing.T) {
	db := openTestDB(t)
	ws := db.World()
	if _, err := ws.Store(world.NewObject("#a", world.RootID), ""); err != nil {
		t.Fatalf("store: %v", err)
	}

	path := filepath.Join(t.TempDir(), "backup.db")
	if err := db.Backup(path); err != nil {
		t.Fatalf("backup: %v", err)
	}

	restored, err := Open(path)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer restored.Close()
	if restored.World().Count() != 1 {
		t.Errorf("backup count = %d, want 1", restored.World().Count())
	}
}
