package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeArtifact(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func TestCollectorSweep(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)

	old := writeArtifact(t, dir, "tmp_1.tif", now.Add(-2*time.Minute))
	edge := writeArtifact(t, dir, "tmp_2.1.isolines.shp", now.Add(-ArtifactTTL))
	fresh := writeArtifact(t, dir, "tmp_3.tif", now.Add(-59*time.Second))
	future := writeArtifact(t, dir, "tmp_4.tif", now.Add(time.Minute))

	c := NewCollector(dir, zerolog.Nop())
	c.Now = func() time.Time { return now }

	if n := c.Sweep(context.Background()); n != 2 {
		t.Errorf("expected 2 deleted artifacts, actual %d", n)
	}
	if exists(old) || exists(edge) {
		t.Errorf("expired artifacts were kept")
	}
	if !exists(fresh) || !exists(future) {
		t.Errorf("fresh artifacts were deleted")
	}
}

func TestCollectorSkipsUndeletable(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	past := now.Add(-time.Hour)

	stuck := filepath.Join(dir, "a_stuck")
	if err := os.Mkdir(stuck, 0755); err != nil {
		t.Fatal(err)
	}
	writeArtifact(t, stuck, "inner.dbf", past)
	if err := os.Chtimes(stuck, past, past); err != nil {
		t.Fatal(err)
	}
	old := writeArtifact(t, dir, "tmp_9.tif", past)

	c := NewCollector(dir, zerolog.Nop())
	if n := c.Sweep(context.Background()); n != 1 {
		t.Errorf("expected 1 deleted artifact, actual %d", n)
	}
	if exists(old) {
		t.Errorf("a failed delete stopped the sweep")
	}
	if !exists(stuck) {
		t.Errorf("non-empty directory should have survived")
	}
}

func TestCollectorMissingDir(t *testing.T) {
	c := NewCollector(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())
	if n := c.Sweep(context.Background()); n != 0 {
		t.Errorf("expected nothing deleted, actual %d", n)
	}
}

func TestCollectorStartStop(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().Add(-time.Hour)
	first := writeArtifact(t, dir, "tmp_1.tif", past)

	c := NewCollector(dir, zerolog.Nop())
	c.Interval = 10 * time.Millisecond
	c.Start(context.Background())
	defer c.Stop()

	if exists(first) {
		t.Errorf("expected the startup sweep to run before Start returns")
	}

	second := writeArtifact(t, dir, "tmp_2.tif", past)
	deadline := time.Now().Add(5 * time.Second)
	for exists(second) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if exists(second) {
		t.Errorf("periodic sweep did not run")
	}

	c.Stop()
	third := writeArtifact(t, dir, "tmp_3.tif", past)
	time.Sleep(50 * time.Millisecond)
	if !exists(third) {
		t.Errorf("sweeps continued after Stop")
	}
}

func TestCollectorRestart(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().Add(-time.Hour)

	c := NewCollector(dir, zerolog.Nop())
	c.Interval = time.Hour
	c.Start(context.Background())
	c.Stop()
	c.Stop()

	old := writeArtifact(t, dir, "tmp_5.tif", past)
	c.Start(context.Background())
	defer c.Stop()
	if exists(old) {
		t.Errorf("expected a restarted collector to sweep")
	}
}
