// Package reciters holds the configured reciter directory.
package reciters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// DefaultKey is the reciter used when none is configured.
const DefaultKey = "saad_alghamdi"

// ErrUnknownReciter is returned when a query matches no reciter.
var ErrUnknownReciter = errors.New("unknown reciter")

// Reciter is one entry of the directory. Key is the CDN path segment.
type Reciter struct {
	Key  string `mapstructure:"key"`
	Name string `mapstructure:"name"`
}

func (r Reciter) String() string {
	if r.Name == "" {
		return r.Key
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Key)
}

// Defaults returns the built-in reciter list.
func Defaults() []Reciter {
	return []Reciter{
		{Key: "saad_alghamdi", Name: "Saad Al-Ghamdi"},
		{Key: "ar.alafasy", Name: "Mishary Rashid Alafasy"},
		{Key: "ar.abdulbasitmurattal", Name: "Abdul Basit (Murattal)"},
		{Key: "ar.husary", Name: "Mahmoud Khalil Al-Husary"},
		{Key: "ar.minshawi", Name: "Mohamed Siddiq Al-Minshawi"},
		{Key: "ar.mahermuaiqly", Name: "Maher Al-Muaiqly"},
		{Key: "ar.shaatree", Name: "Abu Bakr Ash-Shaatree"},
	}
}

// Match is a fuzzy search hit.
type Match struct {
	Reciter
	MatchedIndexes []int // positions in the searchable text
	Score          int
}

// Directory implements fuzzy.Source over "key name" strings.
type Directory struct {
	items []Reciter
	text  []string // lowercase searchable text
}

// NewDirectory creates a directory. Entries without a key are dropped and
// duplicate keys keep the first entry.
func NewDirectory(items []Reciter) *Directory {
	d := &Directory{}
	seen := make(map[string]bool, len(items))
	for _, r := range items {
		r.Key = strings.TrimSpace(r.Key)
		if r.Key == "" || seen[r.Key] {
			continue
		}
		seen[r.Key] = true
		d.items = append(d.items, r)
		d.text = append(d.text, strings.ToLower(r.Key+" "+r.Name))
	}
	return d
}

// String returns the searchable text at index i (implements fuzzy.Source)
func (d *Directory) String(i int) string { return d.text[i] }

// Len returns the number of reciters (implements fuzzy.Source)
func (d *Directory) Len() int { return len(d.items) }

// All returns every reciter in configured order.
func (d *Directory) All() []Reciter {
	out := make([]Reciter, len(d.items))
	copy(out, d.items)
	return out
}

// Lookup returns the reciter with exactly this key.
func (d *Directory) Lookup(key string) (Reciter, bool) {
	for _, r := range d.items {
		if r.Key == key {
			return r, true
		}
	}
	return Reciter{}, false
}

// Find returns reciters fuzzily matching query, best first. An empty query
// returns everything.
func (d *Directory) Find(query string) []Match {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		out := make([]Match, len(d.items))
		for i, r := range d.items {
			out[i] = Match{Reciter: r}
		}
		return out
	}

	matches := fuzzy.FindFrom(query, d)
	out := make([]Match, len(matches))
	for i, m := range matches {
		out[i] = Match{
			Reciter:        d.items[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return out
}

// Resolve maps user input to a reciter key. Exact keys win, then the best
// fuzzy match. Keys not in the directory are accepted verbatim when they
// look like CDN path segments, so unlisted reciters stay playable.
func (d *Directory) Resolve(query string) (Reciter, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Reciter{}, fmt.Errorf("%w: empty name", ErrUnknownReciter)
	}
	if r, ok := d.Lookup(query); ok {
		return r, nil
	}
	if matches := d.Find(query); len(matches) > 0 {
		return matches[0].Reciter, nil
	}
	if !strings.ContainsAny(query, " /") {
		return Reciter{Key: query}, nil
	}
	return Reciter{}, fmt.Errorf("%w: %q", ErrUnknownReciter, query)
}
