package locator

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Defaults for the public recitation CDN.
const (
	DefaultRoot      = "https://cdn.islamic.network/quran/audio"
	DefaultExtension = "mp3"
	DefaultPadWidth  = 3
	DefaultCatalog   = 114
)

var (
	// ErrInvalidItem is returned when an item id cannot be parsed.
	ErrInvalidItem = errors.New("invalid item id")

	// ErrOutOfCatalog is returned when an item id is outside the catalog.
	ErrOutOfCatalog = errors.New("item id outside catalog")
)

// Key identifies one (reciter, item, tier) triple. It is also the URL the
// audio is fetched from.
type Key string

// String returns the key as a plain string.
func (k Key) String() string { return string(k) }

// ItemID is a one-based catalog item number.
type ItemID int

// ParseItemID parses caller supplied ids such as "1", "001" or " 57 ".
func ParseItemID(s string) (ItemID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidItem)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidItem, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidItem, n)
	}
	return ItemID(n), nil
}

// Locator builds keys for a CDN layout of the form
// {root}/{tier}/{reciter}/{padded item}.{ext}.
type Locator struct {
	Root      string
	Extension string
	PadWidth  int
	Catalog   int
}

// New returns a Locator for the given CDN root, filling unset fields with
// the defaults.
func New(root string) Locator {
	l := Locator{Root: root}
	return l.withDefaults()
}

func (l Locator) withDefaults() Locator {
	if l.Root == "" {
		l.Root = DefaultRoot
	}
	l.Root = strings.TrimRight(l.Root, "/")
	if l.Extension == "" {
		l.Extension = DefaultExtension
	}
	l.Extension = strings.TrimPrefix(l.Extension, ".")
	if l.PadWidth <= 0 {
		l.PadWidth = DefaultPadWidth
	}
	if l.Catalog <= 0 {
		l.Catalog = DefaultCatalog
	}
	return l
}

// Locate returns the key for a triple. It has no side effects and the same
// triple always maps to the same key. Reciter and tier are escaped as single
// path segments so that distinct triples never collide.
func (l Locator) Locate(reciter string, item ItemID, tier string) Key {
	l = l.withDefaults()
	return Key(fmt.Sprintf("%s/%s/%s/%s.%s",
		l.Root,
		url.PathEscape(tier),
		url.PathEscape(reciter),
		l.Pad(item),
		l.Extension,
	))
}

// Pad renders an item id zero-padded to the configured width.
func (l Locator) Pad(item ItemID) string {
	l = l.withDefaults()
	return fmt.Sprintf("%0*d", l.PadWidth, int(item))
}

// Validate reports whether item lies inside the catalog.
func (l Locator) Validate(item ItemID) error {
	l = l.withDefaults()
	if item < 1 || int(item) > l.Catalog {
		return fmt.Errorf("%w: %d not in 1..%d", ErrOutOfCatalog, item, l.Catalog)
	}
	return nil
}

// Items returns every item id of the catalog in order.
func (l Locator) Items() []ItemID {
	l = l.withDefaults()
	items := make([]ItemID, l.Catalog)
	for i := range items {
		items[i] = ItemID(i + 1)
	}
	return items
}
