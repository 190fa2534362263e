package parse

import (
	"errors"
	"testing"
)

func newTestAdmin() *AdminRecognizer {
	return NewAdminRecognizer(NewTable("who", "create", "delete", "shutdown", "eval"))
}

func newTestUser() *UserRecognizer {
	return NewUserRecognizer(NewTable("WHO", "QUIT", "CONNECT", "COMMANDS"))
}

func newTestGame(visible []Candidate) *GameRecognizer {
	dict := NewDictionary()
	for _, v := range []string{"look", "get", "put", "poke"} {
		dict.Add(v, TagVerb)
	}
	return &GameRecognizer{
		Dict:    dict,
		Recency: NewRecency(),
		Actor:   "#p",
		Visible: func() []Candidate { return visible },
	}
}

func TestAdminRecognizer(t *testing.T) {
	r := newTestAdmin()

	rec, err := r.Recognize("/WHO")
	if err != nil || rec == nil {
		t.Fatalf("recognize /WHO: rec=%v err=%v", rec, err)
	}
	if rec.Mode != ModeAdmin || rec.Verb != "who" {
		t.Errorf("got mode=%v verb=%q", rec.Mode, rec.Verb)
	}

	rec, err = r.Recognize("/roles bob +admin")
	if err != nil || rec != nil {
		t.Errorf("unregistered command should decline, got %v, %v", rec, err)
	}

	rec, _ = r.Recognize("who")
	if rec != nil {
		t.Errorf("no slash should decline, got %v", rec)
	}

	rec, _ = r.Recognize("/eval [+ 1 2]")
	if rec == nil || len(rec.Args) != 3 {
		t.Errorf("args = %v", rec)
	}
}

func TestUserRecognizer(t *testing.T) {
	r := newTestUser()

	rec, err := r.Recognize("connect Wizard secret")
	if err != nil || rec == nil {
		t.Fatalf("recognize connect: rec=%v err=%v", rec, err)
	}
	if rec.Verb != "connect" {
		t.Errorf("verb = %q", rec.Verb)
	}
	if len(rec.Args) != 2 || rec.Args[0] != "Wizard" {
		t.Errorf("argument case not preserved: %v", rec.Args)
	}

	if rec, _ := r.Recognize("look"); rec != nil {
		t.Errorf("look is not a user keyword, got %v", rec)
	}
}

// Scenario: admin-embodied stack ordering. "/who" goes to Admin without
// consulting Game; "look" falls through Admin and User to Game.
func TestStackOrdering(t *testing.T) {
	admin := newTestAdmin()
	user := newTestUser()
	game := newTestGame(nil)
	stack := StackFor(true, true, admin, user, game)

	if len(stack) != 3 {
		t.Fatalf("admin+embodied stack has %d recognizers, want 3", len(stack))
	}

	rec, err := stack.Recognize("/who")
	if err != nil || rec == nil || rec.Mode != ModeAdmin {
		t.Fatalf("/who: rec=%v err=%v, want admin recognition", rec, err)
	}

	rec, err = stack.Recognize("look")
	if err != nil || rec == nil || rec.Mode != ModeGame {
		t.Fatalf("look: rec=%v err=%v, want game recognition", rec, err)
	}
	if rec.Verb != "look" {
		t.Errorf("verb = %q", rec.Verb)
	}
}

func TestStackShapes(t *testing.T) {
	admin := newTestAdmin()
	user := newTestUser()
	game := newTestGame(nil)
	tests := []struct {
		admin, embodied bool
		want            int
	}{
		{false, false, 1},
		{false, true, 2},
		{true, false, 2},
		{true, true, 3},
	}
	for _, tc := range tests {
		got := len(StackFor(tc.admin, tc.embodied, admin, user, game))
		if got != tc.want {
			t.Errorf("StackFor(%v, %v) has %d recognizers, want %d", tc.admin, tc.embodied, got, tc.want)
		}
	}
}

func TestGameRecognizerPhrases(t *testing.T) {
	visible := []Candidate{
		{ID: "#sword", Name: "rusty sword"},
		{ID: "#chest", Name: "wooden chest"},
	}
	r := newTestGame(visible)

	rec, err := r.Recognize("put the rusty sword in the wooden chest")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if rec == nil || rec.Verb != "put" {
		t.Fatalf("rec = %v", rec)
	}
	if rec.Resolved["direct"] != "#sword" {
		t.Errorf("direct = %q, want #sword", rec.Resolved["direct"])
	}
	if rec.Resolved["indirect"] != "#chest" {
		t.Errorf("indirect = %q, want #chest", rec.Resolved["indirect"])
	}

	if rec, _ := r.Recognize("dance wildly"); rec != nil {
		t.Errorf("unknown verb should decline, got %v", rec)
	}
}

func TestGameRecognizerExactOverPartial(t *testing.T) {
	visible := []Candidate{
		{ID: "#k1", Name: "key"},
		{ID: "#k2", Name: "key ring"},
	}
	r := newTestGame(visible)

	rec, err := r.Recognize("get key")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if rec.Resolved["direct"] != "#k1" {
		t.Errorf("exact match lost to partial: %q", rec.Resolved["direct"])
	}
}

func TestGameRecognizerInventoryOverRoom(t *testing.T) {
	visible := []Candidate{
		{ID: "#room-lamp", Name: "brass lamp"},
		{ID: "#bag-lamp", Name: "brass lamp", InInventory: true},
	}
	r := newTestGame(visible)

	rec, err := r.Recognize("get lamp")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if rec.Resolved["direct"] != "#bag-lamp" {
		t.Errorf("inventory should win: %q", rec.Resolved["direct"])
	}
}

func TestGameRecognizerRecencyAndAmbiguity(t *testing.T) {
	visible := []Candidate{
		{ID: "#c1", Name: "candle"},
		{ID: "#c2", Name: "candle"},
	}
	r := newTestGame(visible)

	_, err := r.Recognize("get candle")
	var amb *AmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("untouched duplicates: got %v, want AmbiguityError", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("ambiguity lists %d candidates, want 2", len(amb.Candidates))
	}

	// After interacting with #c2 it wins the tie.
	r.Recency.Touch("#p", "#c2")
	rec, err := r.Recognize("get candle")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if rec.Resolved["direct"] != "#c2" {
		t.Errorf("recency should win: %q", rec.Resolved["direct"])
	}
}

func TestGameRecognizerPronoun(t *testing.T) {
	visible := []Candidate{
		{ID: "#sword", Name: "rusty sword"},
		{ID: "#chest", Name: "wooden chest"},
	}
	r := newTestGame(visible)

	rec, err := r.Recognize("get sword")
	if err != nil || rec.Resolved["direct"] != "#sword" {
		t.Fatalf("setup: rec=%v err=%v", rec, err)
	}

	rec, err = r.Recognize("poke it")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if rec.Resolved["direct"] != "#sword" {
		t.Errorf("pronoun = %q, want #sword", rec.Resolved["direct"])
	}
}

func TestTableSnapshots(t *testing.T) {
	tbl := NewTable("who")
	if !tbl.Has("WHO") {
		t.Errorf("lookup should ignore case")
	}
	tbl.Register("eval")
	if !tbl.Has("eval") || !tbl.Has("who") {
		t.Errorf("register lost entries: %v", tbl.Names())
	}
	tbl.Unregister("who")
	if tbl.Has("who") {
		t.Errorf("unregister did not remove who")
	}
}

func TestDictionaryDefaultsToNoun(t *testing.T) {
	d := NewDictionary()
	if d.Tags("xyzzy")&TagNoun == 0 {
		t.Errorf("unknown word should tag as noun")
	}
	if d.Tags("the")&TagArticle == 0 {
		t.Errorf("article missing")
	}
	d.Add("frobnicate", TagVerb)
	if d.Tags("FROBNICATE")&TagVerb == 0 {
		t.Errorf("runtime-registered verb not found case-insensitively")
	}
}
