package parse

import (
	"sort"
	"strings"
	"sync"
)

// Recency remembers which objects an actor interacted with most
// recently; it is the third noun-resolution tie-breaker.
type Recency struct {
	mu      sync.Mutex
	counter int64
	marks   map[string]map[string]int64
}

func NewRecency() *Recency {
	return &Recency{marks: make(map[string]map[string]int64)}
}

// Touch records an interaction between actor and object.
func (r *Recency) Touch(actorID, objectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	m, ok := r.marks[actorID]
	if !ok {
		m = make(map[string]int64)
		r.marks[actorID] = m
	}
	m[objectID] = r.counter
}

// Rank returns the interaction ordinal, 0 when never touched.
func (r *Recency) Rank(actorID, objectID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marks[actorID][objectID]
}

// Forget drops all recency state for an actor.
func (r *Recency) Forget(actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.marks, actorID)
}

// GameRecognizer parses natural-language verb-object commands:
// `<verb> [direct-object-phrase] [prep indirect-object-phrase]`.
// One instance serves one session; Visible supplies the objects in the
// actor's location and inventory plus the actor itself.
type GameRecognizer struct {
	Dict    *Dictionary
	Recency *Recency
	Actor   string
	Visible func() []Candidate
}

func (r *GameRecognizer) Name() string { return "game" }

func (r *GameRecognizer) Recognize(raw string) (*Recognition, error) {
	// Stage 1: lexical cleanup. Case is preserved; the dictionary
	// lowercases on lookup.
	line := strings.Join(strings.Fields(raw), " ")
	if line == "" {
		return nil, nil
	}

	// Stage 2: tokenize and tag.
	words := strings.Split(line, " ")
	tags := make([]WordTag, len(words))
	for i, w := range words {
		tags[i] = r.Dict.Tags(w)
	}
	if tags[0]&TagVerb == 0 {
		return nil, nil
	}
	verb := strings.ToLower(words[0])

	// Stage 3: extract phrases around the first preposition.
	var direct, indirect []string
	var prep string
	phrase := &direct
	for i := 1; i < len(words); i++ {
		switch {
		case tags[i]&TagArticle != 0:
			// dropped
		case tags[i]&TagPreposition != 0 && prep == "":
			prep = strings.ToLower(words[i])
			phrase = &indirect
		default:
			*phrase = append(*phrase, words[i])
		}
	}

	rec := &Recognition{
		Mode:     ModeGame,
		Verb:     verb,
		Args:     words[1:],
		Raw:      raw,
		Resolved: make(map[string]string),
	}
	candidates := r.Visible()
	if len(direct) > 0 {
		id, err := r.resolve(direct, tags, candidates)
		if err != nil {
			return nil, err
		}
		if id != "" {
			rec.Resolved["direct"] = id
			r.Recency.Touch(r.Actor, id)
		}
	}
	if len(indirect) > 0 {
		id, err := r.resolve(indirect, tags, candidates)
		if err != nil {
			return nil, err
		}
		if id != "" {
			rec.Resolved["indirect"] = id
			r.Recency.Touch(r.Actor, id)
		}
	}
	return rec, nil
}

// resolve matches a noun phrase against visible candidates. Ties break
// by exact-over-partial, inventory-over-room, recency, then object ID;
// survivors beyond one raise an AmbiguityError.
func (r *GameRecognizer) resolve(phrase []string, tags []WordTag, candidates []Candidate) (string, error) {
	text := strings.Join(phrase, " ")

	// A lone pronoun refers to the most recently interacted candidate.
	if len(phrase) == 1 && r.Dict.Tags(phrase[0])&TagPronoun != 0 {
		best := ""
		var bestRank int64
		for _, c := range candidates {
			if rank := r.Recency.Rank(r.Actor, c.ID); rank > bestRank {
				best, bestRank = c.ID, rank
			}
		}
		if best == "" {
			return "", &AmbiguityError{Phrase: text, Candidates: candidates}
		}
		return best, nil
	}

	lower := strings.ToLower(text)
	var exact, partial []Candidate
	for _, c := range candidates {
		name := strings.ToLower(c.Name)
		switch {
		case name == lower:
			exact = append(exact, c)
		case strings.Contains(name, lower):
			partial = append(partial, c)
		}
	}

	pool := exact
	if len(pool) == 0 {
		pool = partial
	}
	if len(pool) == 0 {
		return "", nil
	}
	if len(pool) == 1 {
		return pool[0].ID, nil
	}

	// Inventory outranks the room.
	var inv []Candidate
	for _, c := range pool {
		if c.InInventory {
			inv = append(inv, c)
		}
	}
	if len(inv) == 1 {
		return inv[0].ID, nil
	}
	if len(inv) > 1 {
		pool = inv
	}

	// Most recently interacted wins outright.
	var best []Candidate
	var bestRank int64 = -1
	for _, c := range pool {
		rank := r.Recency.Rank(r.Actor, c.ID)
		switch {
		case rank > bestRank:
			best, bestRank = []Candidate{c}, rank
		case rank == bestRank:
			best = append(best, c)
		}
	}
	if len(best) == 1 {
		return best[0].ID, nil
	}
	sort.Slice(best, func(i, j int) bool { return best[i].ID < best[j].ID })
	if bestRank > 0 {
		// Recency ordinals are unique; a positive tie only appears if
		// two candidates share an ID history, so first-by-ID settles it.
		return best[0].ID, nil
	}

	// Untouched candidates are indistinguishable; ask the player.
	return "", &AmbiguityError{Phrase: text, Candidates: best}
}
