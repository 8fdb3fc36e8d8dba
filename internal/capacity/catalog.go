package capacity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

var ErrUnknownCity = errors.New("city is not managed by the campaign")

// City is one capacity bucket definition.
type City struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Limit    int      `json:"limit"`
	Variants []string `json:"variants"`
}

// Catalog is the single lookup table from canonical key to limit and spellings.
type Catalog struct {
	cities []City
	byKey  map[string]City
}

func DefaultCities() []City {
	return []City{
		{Key: "barbacena", Name: "Barbacena", Limit: 200, Variants: []string{"barbacena", "barbacena mg", "barbacena/mg"}},
		{Key: "alfredo-vasconcelos", Name: "Alfredo Vasconcelos", Limit: 50, Variants: []string{"alfredo vasconcelos", "alfredo vasconcellos"}},
		{Key: "antonio-carlos", Name: "Antônio Carlos", Limit: 60, Variants: []string{"antonio carlos", "antônio carlos"}},
	}
}

// NewCatalog validates and indexes cities. Variants are stored normalized and
// the display name is always accepted as a spelling.
func NewCatalog(cities []City) (*Catalog, error) {
	if len(cities) == 0 {
		return nil, errors.New("catalog needs at least one city")
	}
	c := &Catalog{byKey: make(map[string]City, len(cities))}
	for _, city := range cities {
		city.Key = strings.TrimSpace(city.Key)
		if city.Key == "" {
			return nil, errors.New("city key is required")
		}
		if city.Limit < 0 {
			return nil, fmt.Errorf("city %s: limit must be non-negative", city.Key)
		}
		if _, dup := c.byKey[city.Key]; dup {
			return nil, fmt.Errorf("city %s declared twice", city.Key)
		}
		city.Variants = normalizeVariants(append([]string{city.Name}, city.Variants...))
		if len(city.Variants) == 0 {
			return nil, fmt.Errorf("city %s: at least one spelling is required", city.Key)
		}
		c.byKey[city.Key] = city
		c.cities = append(c.cities, city)
	}
	return c, nil
}

// LoadCatalog reads a JSON array of cities from path, or returns the built-in
// catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return NewCatalog(DefaultCities())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}
	var cities []City
	if err := json.Unmarshal(raw, &cities); err != nil {
		return nil, fmt.Errorf("decode cities file: %w", err)
	}
	return NewCatalog(cities)
}

// Cities returns the catalog in declaration order.
func (c *Catalog) Cities() []City {
	out := make([]City, len(c.cities))
	copy(out, c.cities)
	return out
}

func (c *Catalog) Get(key string) (City, bool) {
	city, ok := c.byKey[key]
	return city, ok
}

// Resolve maps a free-text city to its canonical entry. A city matches when the
// normalized text contains one of its spellings; the longest spelling wins.
func (c *Catalog) Resolve(freeText string) (City, bool) {
	text := Normalize(freeText)
	if text == "" {
		return City{}, false
	}
	var (
		best    City
		bestLen int
	)
	for _, city := range c.cities {
		for _, variant := range city.Variants {
			if len(variant) > bestLen && strings.Contains(text, variant) {
				best, bestLen = city, len(variant)
			}
		}
	}
	return best, bestLen > 0
}

func normalizeVariants(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		n := Normalize(value)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
