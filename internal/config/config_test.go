package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsOnMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, ok := c.Get(Port)
	if !ok || v != "6379" {
		t.Fatalf("port default = %q, %v", v, ok)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redis.conf")
	contents := "port 7000\n# comment\n\nverbose 1\ndbfilename mydump.txt\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, _ := c.Get(Port); v != "7000" {
		t.Fatalf("port = %q", v)
	}
	if !c.Verbose() {
		t.Fatal("expected verbose true")
	}
	if v, _ := c.Get(DBFilename); v != "mydump.txt" {
		t.Fatalf("dbfilename = %q", v)
	}
	if v, _ := c.Get(Timeout); v != "0" {
		t.Fatalf("timeout default = %q", v)
	}
}

func TestSetOverridesAtRuntime(t *testing.T) {
	c, _ := Load(filepath.Join(t.TempDir(), "absent.conf"))
	c.Set(MaxMemory, "1048576")
	v, ok := c.Get(MaxMemory)
	if !ok || v != "1048576" {
		t.Fatalf("maxmemory = %q, %v", v, ok)
	}
	snap := c.Snapshot()
	if snap[MaxMemory] != "1048576" {
		t.Fatalf("snapshot maxmemory = %q", snap[MaxMemory])
	}
}
