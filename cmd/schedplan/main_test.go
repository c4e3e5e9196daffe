package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkgo/quark/internal/persist"
)

func TestRun_PrintsEveryList(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "systems.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
lists:
  - name: update
    systems:
      - name: gravity
      - name: movement
      - name: hazard
  - name: cleanup
    systems:
      - name: reaper
      - name: cleanup
`), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), &out, options{
		config:   filepath.Join(dir, "missing.toml"),
		manifest: manifest,
		verify:   true,
	})
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "[cleanup]\n")
	assert.Contains(t, s, "[update]\n")
	assert.Contains(t, s, "movement <- gravity\n")
	assert.Contains(t, s, "hazard   <- movement\n")
	assert.Contains(t, s, "verified: every write conflict is ordered")
}

func TestRun_UnknownList(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "systems.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("lists: [{name: update}]\n"), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), &out, options{
		config:   filepath.Join(dir, "missing.toml"),
		manifest: manifest,
		list:     "render",
	})
	assert.ErrorContains(t, err, "does not exist")
}

func TestRun_HistoryNeedsDatabase(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "systems.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("lists: [{name: update}]\n"), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), &out, options{
		config:   filepath.Join(dir, "missing.toml"),
		manifest: manifest,
		history:  5,
	})
	assert.ErrorContains(t, err, "-history needs database.enabled")
}

func TestPrintRuns(t *testing.T) {
	var out bytes.Buffer
	printRuns(&out, nil)
	assert.Equal(t, "history: no stored runs\n", out.String())

	out.Reset()
	printRuns(&out, []persist.RunRow{
		{ID: 9, Tick: 120, State: "main", Systems: 8, Waves: 4, Workers: 4, Peak: 3, Failed: 1, Cancelled: 2, Elapsed: 1500 * time.Microsecond},
	})
	assert.Equal(t, "history: 1 run(s)\n"+
		"  #9 tick 120 state main: 8 systems, 4 waves, peak 3/4, failed 1, cancelled 2, 1.5ms\n", out.String())
}
