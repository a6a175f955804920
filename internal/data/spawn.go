package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpawnEntry defines a group of bot viewers placed at server start.
type SpawnEntry struct {
	Name         string `yaml:"name"`
	X            int32  `yaml:"x"` // chunk coordinates
	Z            int32  `yaml:"z"`
	Count        int    `yaml:"count"`   // 0 means 1
	RandomX      int32  `yaml:"randomx"` // spread around (x, z) when count > 1
	RandomZ      int32  `yaml:"randomz"`
	ViewDistance int    `yaml:"view_distance"` // 0 = server default
	WanderRange  int    `yaml:"wander_range"`  // 0 = stationary
}

// BotSpawn is one expanded bot placement.
type BotSpawn struct {
	Name         string
	X, Z         int32
	ViewDistance int
	WanderRange  int
}

type spawnListFile struct {
	Bots []SpawnEntry `yaml:"bots"`
}

// SpawnList holds the bot spawn groups in file order.
type SpawnList struct {
	entries []SpawnEntry
}

// LoadSpawnList loads bot spawn groups from a YAML file.
func LoadSpawnList(path string) (*SpawnList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	seen := make(map[string]bool, len(f.Bots))
	for i, e := range f.Bots {
		if e.Name == "" {
			return nil, fmt.Errorf("spawn_list entry %d: missing name", i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("spawn_list entry %d: duplicate name %q", i, e.Name)
		}
		if e.Count < 0 || e.ViewDistance < 0 || e.WanderRange < 0 || e.RandomX < 0 || e.RandomZ < 0 {
			return nil, fmt.Errorf("spawn_list entry %q: negative value", e.Name)
		}
		seen[e.Name] = true
	}
	return &SpawnList{entries: f.Bots}, nil
}

// Entries returns the raw spawn groups.
func (l *SpawnList) Entries() []SpawnEntry { return l.entries }

// Count returns the number of bots the list expands to.
func (l *SpawnList) Count() int {
	n := 0
	for _, e := range l.entries {
		n += max(e.Count, 1)
	}
	return n
}

// Expand lays out every bot. Groups get numbered names ("name-1", ...) and
// positions spread deterministically over the random box, so restarts place
// bots identically.
func (l *SpawnList) Expand() []BotSpawn {
	out := make([]BotSpawn, 0, l.Count())
	for _, e := range l.entries {
		if e.Count <= 1 {
			out = append(out, BotSpawn{Name: e.Name, X: e.X, Z: e.Z, ViewDistance: e.ViewDistance, WanderRange: e.WanderRange})
			continue
		}
		for i := 0; i < e.Count; i++ {
			out = append(out, BotSpawn{
				Name:         fmt.Sprintf("%s-%d", e.Name, i+1),
				X:            e.X + spread(e.Name, i, 0, e.RandomX),
				Z:            e.Z + spread(e.Name, i, 1, e.RandomZ),
				ViewDistance: e.ViewDistance,
				WanderRange:  e.WanderRange,
			})
		}
	}
	return out
}

// spread returns a stable offset in [-r, r] for bot i of a group.
func spread(name string, i, axis int, r int32) int32 {
	if r == 0 {
		return 0
	}
	h := uint32(2166136261)
	for j := 0; j < len(name); j++ {
		h = (h ^ uint32(name[j])) * 16777619
	}
	h = (h ^ uint32(i)) * 16777619
	h = (h ^ uint32(axis)) * 16777619
	return int32(h%uint32(2*r+1)) - r
}
