package data

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/megameal/fireflies/internal/geom"
)

// SwarmEntry describes one group of fireflies scattered around a centre.
type SwarmEntry struct {
	Name           string     `yaml:"name"`
	Count          int        `yaml:"count"`
	Center         [3]float64 `yaml:"center"`
	Spread         [3]float64 `yaml:"spread"`    // half extents of the scatter box
	Colors         []string   `yaml:"colors"`    // "#rrggbb", picked at random per firefly
	Intensity      [2]float64 `yaml:"intensity"` // min, max
	Range          float64    `yaml:"range"`
	Decay          float64    `yaml:"decay"`
	FloatAmplitude float64    `yaml:"float_amplitude"`
	WanderRadius   float64    `yaml:"wander_radius"`
	CycleDuration  float64    `yaml:"cycle_duration"` // seconds, 0 = always glowing
	MinHeight      float64    `yaml:"min_height"`
	MaxHeight      float64    `yaml:"max_height"`
	Lifetime       [2]float64 `yaml:"lifetime"` // min, max seconds before a firefly is replaced; 0 = forever

	Palette []geom.Color `yaml:"-"`
}

type swarmListFile struct {
	Swarms []SwarmEntry `yaml:"swarms"`
}

// SwarmTable holds every swarm definition in file order.
type SwarmTable struct {
	entries []SwarmEntry
	total   int
}

// LoadSwarmTable loads swarm definitions from a YAML file.
func LoadSwarmTable(path string) (*SwarmTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read swarm_list: %w", err)
	}
	return ParseSwarmTable(raw)
}

// ParseSwarmTable decodes swarm definitions from YAML bytes.
func ParseSwarmTable(raw []byte) (*SwarmTable, error) {
	var f swarmListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse swarm_list: %w", err)
	}
	t := &SwarmTable{entries: f.Swarms}
	for i := range t.entries {
		e := &t.entries[i]
		if e.Count < 0 {
			return nil, fmt.Errorf("swarm %q: negative count %d", e.Name, e.Count)
		}
		if e.Intensity[1] < e.Intensity[0] {
			e.Intensity[0], e.Intensity[1] = e.Intensity[1], e.Intensity[0]
		}
		if e.Lifetime[0] < 0 || e.Lifetime[1] < 0 {
			return nil, fmt.Errorf("swarm %q: negative lifetime %v", e.Name, e.Lifetime)
		}
		if e.Lifetime[1] < e.Lifetime[0] {
			e.Lifetime[0], e.Lifetime[1] = e.Lifetime[1], e.Lifetime[0]
		}
		if e.MaxHeight < e.MinHeight {
			return nil, fmt.Errorf("swarm %q: max_height %v below min_height %v", e.Name, e.MaxHeight, e.MinHeight)
		}
		for _, s := range e.Colors {
			c, err := ParseColor(s)
			if err != nil {
				return nil, fmt.Errorf("swarm %q: %w", e.Name, err)
			}
			e.Palette = append(e.Palette, c)
		}
		if len(e.Palette) == 0 {
			e.Palette = []geom.Color{DefaultColor}
		}
		t.total += e.Count
	}
	return t, nil
}

// DefaultColor is the warm yellow used when a swarm lists no colours.
const DefaultColor geom.Color = 0xffd27f

// ParseColor accepts "#rrggbb", "rrggbb" or "0xrrggbb".
func ParseColor(s string) (geom.Color, error) {
	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "#"), "0x")
	if len(h) != 6 {
		return 0, fmt.Errorf("bad colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad colour %q: %w", s, err)
	}
	return geom.Color(v), nil
}

// Entries returns the swarm definitions in file order.
func (t *SwarmTable) Entries() []SwarmEntry {
	return t.entries
}

// Count returns the number of swarm definitions.
func (t *SwarmTable) Count() int {
	return len(t.entries)
}

// Total returns how many fireflies the table spawns.
func (t *SwarmTable) Total() int {
	return t.total
}
