package locator

import (
	"errors"
	"testing"
)

func TestLocate_Pattern(t *testing.T) {
	l := New("https://cdn.example.org/audio/")
	got := l.Locate("saad_alghamdi", 1, "128")
	want := Key("https://cdn.example.org/audio/128/saad_alghamdi/001.mp3")
	if got != want {
		t.Errorf("Locate() = %q, want %q", got, want)
	}
}

func TestLocate_NormalizesItemFormatting(t *testing.T) {
	l := New("")
	for _, s := range []string{"1", "001", " 01 ", "0001"} {
		id, err := ParseItemID(s)
		if err != nil {
			t.Fatalf("ParseItemID(%q) failed: %v", s, err)
		}
		if l.Locate("r", id, "64") != l.Locate("r", 1, "64") {
			t.Errorf("item %q resolved to a different key", s)
		}
	}
}

func TestLocate_Deterministic(t *testing.T) {
	l := New("")
	a := l.Locate("r", 57, "128")
	b := l.Locate("r", 57, "128")
	if a != b {
		t.Errorf("Locate not deterministic: %q != %q", a, b)
	}
}

func TestLocate_Injective(t *testing.T) {
	l := New("")
	reciters := []string{"a", "b", "a/b", "a%2Fb", ""}
	tiers := []string{"64", "128", "64/a"}
	seen := make(map[Key]string)
	for _, r := range reciters {
		for _, q := range tiers {
			for _, item := range []ItemID{1, 10, 100, 114, 1000} {
				k := l.Locate(r, item, q)
				triple := r + "|" + q + "|" + l.Pad(item)
				if prev, ok := seen[k]; ok && prev != triple {
					t.Fatalf("collision: %q and %q both map to %q", prev, triple, k)
				}
				seen[k] = triple
			}
		}
	}
}

func TestParseItemID_Invalid(t *testing.T) {
	for _, s := range []string{"", "abc", "0", "-3", "1.5"} {
		if _, err := ParseItemID(s); !errors.Is(err, ErrInvalidItem) {
			t.Errorf("ParseItemID(%q) error = %v, want ErrInvalidItem", s, err)
		}
	}
}

func TestValidate(t *testing.T) {
	l := Locator{Catalog: 114}
	tests := []struct {
		item ItemID
		ok   bool
	}{
		{1, true},
		{114, true},
		{0, false},
		{115, false},
	}
	for _, tt := range tests {
		err := l.Validate(tt.item)
		if (err == nil) != tt.ok {
			t.Errorf("Validate(%d) = %v, want ok=%v", tt.item, err, tt.ok)
		}
	}
	if len(l.Items()) != 114 {
		t.Errorf("Items() len = %d, want 114", len(l.Items()))
	}
}
