package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "spawn_list.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadShippedSpawnList(t *testing.T) {
	l, err := LoadSpawnList(filepath.Join("..", "..", "data", "yaml", "spawn_list.yaml"))
	if err != nil {
		t.Fatalf("LoadSpawnList: %v", err)
	}
	if l.Count() != 10 || len(l.Expand()) != 10 {
		t.Fatalf("count = %d, expanded = %d", l.Count(), len(l.Expand()))
	}
}

func TestExpand(t *testing.T) {
	l, err := LoadSpawnList(writeYAML(t, `
bots:
  - name: solo
    x: 3
    z: -3
  - name: pack
    x: 10
    z: 10
    count: 4
    randomx: 2
    randomz: 1
    view_distance: 5
    wander_range: 7
`))
	if err != nil {
		t.Fatalf("LoadSpawnList: %v", err)
	}
	bots := l.Expand()
	if len(bots) != 5 || l.Count() != 5 {
		t.Fatalf("expanded %d bots", len(bots))
	}
	if bots[0].Name != "solo" || bots[0].X != 3 || bots[0].Z != -3 {
		t.Fatalf("solo = %+v", bots[0])
	}
	names := make(map[string]bool)
	for _, b := range bots[1:] {
		if !strings.HasPrefix(b.Name, "pack-") || names[b.Name] {
			t.Fatalf("bad name %q", b.Name)
		}
		names[b.Name] = true
		if b.X < 8 || b.X > 12 || b.Z < 9 || b.Z > 11 {
			t.Fatalf("%s placed at (%d, %d), outside the random box", b.Name, b.X, b.Z)
		}
		if b.ViewDistance != 5 || b.WanderRange != 7 {
			t.Fatalf("%s = %+v", b.Name, b)
		}
	}

	again := l.Expand()
	for i := range bots {
		if bots[i] != again[i] {
			t.Fatal("expansion must be deterministic")
		}
	}
}

func TestLoadSpawnListErrors(t *testing.T) {
	cases := map[string]string{
		"missing name": "bots:\n  - x: 1\n",
		"duplicate":    "bots:\n  - name: a\n  - name: a\n",
		"negative":     "bots:\n  - name: a\n    count: -1\n",
		"bad yaml":     "bots: [",
	}
	for name, body := range cases {
		if _, err := LoadSpawnList(writeYAML(t, body)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
	if _, err := LoadSpawnList(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file must fail")
	}
}
