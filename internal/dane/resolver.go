// Package dane resolves Colombian city and department names to DANE
// administrative codes. The table is embedded and treated as read-only
// reference data.
package dane

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCode is used when a city cannot be resolved (Bogotá D.C.).
const DefaultCode = "11001000"

//go:embed dane.csv
var table []byte

// Entry is one municipality.
type Entry struct {
	Code       string `json:"code"`
	City       string `json:"city"`
	Department string `json:"department"`
}

// Label is the "City, Department" text used by pickers.
func (e Entry) Label() string {
	if e.City == e.Department {
		return e.City
	}
	return e.City + ", " + e.Department
}

type indexed struct {
	Entry
	cityKeys []string
	deptKey  string
}

// Resolver is safe for concurrent use; it is never mutated after New.
type Resolver struct {
	entries  []indexed
	byCode   map[string]Entry
	fallback string
}

// New parses the embedded table. fallback replaces DefaultCode when non-empty.
func New(fallback string) (*Resolver, error) {
	if fallback == "" {
		fallback = DefaultCode
	}
	rows, err := csv.NewReader(strings.NewReader(string(table))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dane: parse table: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("dane: empty table")
	}

	r := &Resolver{byCode: make(map[string]Entry, len(rows)-1), fallback: fallback}
	for i, row := range rows[1:] {
		if len(row) < 3 {
			return nil, fmt.Errorf("dane: row %d: expected at least 3 columns", i+2)
		}
		e := Entry{Code: row[0], City: row[1], Department: row[2]}
		keys := []string{normalize(e.City)}
		if len(row) > 3 && row[3] != "" {
			for _, alias := range strings.Split(row[3], ";") {
				keys = append(keys, normalize(alias))
			}
		}
		r.entries = append(r.entries, indexed{Entry: e, cityKeys: keys, deptKey: normalize(e.Department)})
		r.byCode[e.Code] = e
	}
	if _, ok := r.byCode[fallback]; !ok {
		return nil, fmt.Errorf("dane: fallback code %s not in table", fallback)
	}
	return r, nil
}

// MustNew is New for package-level wiring and tests.
func MustNew(fallback string) *Resolver {
	r, err := New(fallback)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup finds the code for a city, using the department to disambiguate.
// A city that is unique in the table matches even when the department text
// does not.
func (r *Resolver) Lookup(city, department string) (string, bool) {
	ck := normalize(city)
	if ck == "" {
		return "", false
	}
	dk := normalize(department)

	var cityOnly []indexed
	for _, e := range r.entries {
		if !e.matchesCity(ck) {
			continue
		}
		if dk != "" && e.deptKey == dk {
			return e.Code, true
		}
		cityOnly = append(cityOnly, e)
	}
	if len(cityOnly) == 1 {
		return cityOnly[0].Code, true
	}
	return "", false
}

// ResolveOrDefault never fails: an unknown city yields the fallback code and
// fellBack=true.
func (r *Resolver) ResolveOrDefault(city, department string) (code string, fellBack bool) {
	if code, ok := r.Lookup(city, department); ok {
		return code, false
	}
	return r.fallback, true
}

// Known reports whether code exists in the table.
func (r *Resolver) Known(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

// Get returns the entry for a code.
func (r *Resolver) Get(code string) (Entry, bool) {
	e, ok := r.byCode[code]
	return e, ok
}

// Search returns up to limit entries whose city or department contains q,
// with prefix matches first.
func (r *Resolver) Search(q string, limit int) []Entry {
	qk := normalize(q)
	if qk == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	type scored struct {
		Entry
		rank int
	}
	var hits []scored
	for _, e := range r.entries {
		rank := -1
		for _, k := range e.cityKeys {
			switch {
			case strings.HasPrefix(k, qk):
				rank = 0
			case rank < 0 && strings.Contains(k, qk):
				rank = 1
			}
		}
		if rank < 0 && strings.Contains(e.deptKey, qk) {
			rank = 2
		}
		if rank >= 0 {
			hits = append(hits, scored{Entry: e.Entry, rank: rank})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].City < hits[j].City
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Entry, len(hits))
	for i, h := range hits {
		out[i] = h.Entry
	}
	return out
}

func (e indexed) matchesCity(key string) bool {
	for _, k := range e.cityKeys {
		if k == key {
			return true
		}
	}
	return false
}

// normalize lowercases, strips accents and punctuation, and collapses spaces:
// "Bogotá, D.C." -> "bogota dc".
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == ',' || r == '-':
			space = true
		}
	}
	return b.String()
}
