package config

import "testing"

func TestDSN(t *testing.T) {
	c := &Config{
		DBHost: "localhost", DBPort: 5433,
		DBUser: "research", DBPassword: "secret", DBName: "library",
	}
	want := "host=localhost user=research password=secret dbname=library port=5433 sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestSourceEnabled(t *testing.T) {
	c := &Config{EnabledSources: "local, Drive"}
	if !c.SourceEnabled("local") {
		t.Error("local not enabled")
	}
	if !c.SourceEnabled("drive") {
		t.Error("drive not enabled despite case-insensitive match")
	}
	if c.SourceEnabled("ftp") {
		t.Error("ftp reported enabled")
	}
}
