package cli

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()

	want := map[string]bool{
		"generate":   false,
		"validate":   false,
		"fix":        false,
		"netlist":    false,
		"examples":   false,
		"serve":      false,
		"cache":      false,
		"worker":     false,
		"completion": false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestWorkerCommandHidden(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	for _, cmd := range c.RootCommand().Commands() {
		if cmd.Name() == "worker" && !cmd.Hidden {
			t.Error("worker command is visible")
		}
	}
}

func TestParseTestParams(t *testing.T) {
	params, err := parseTestParams([]string{"w=2u", "l=400n"})
	if err != nil {
		t.Fatal(err)
	}
	if params["w"] != "2u" || params["l"] != "400n" {
		t.Errorf("params = %v", params)
	}

	if _, err := parseTestParams([]string{"no-equals"}); err == nil {
		t.Error("malformed pair accepted")
	}
	if _, err := parseTestParams([]string{"=value"}); err == nil {
		t.Error("empty key accepted")
	}

	params, err = parseTestParams(nil)
	if err != nil || params != nil {
		t.Errorf("empty input = %v, %v", params, err)
	}
}

func TestCacheDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-test")
	dir, err := cacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/xdg-test/ordpilot" {
		t.Errorf("dir = %s", dir)
	}
}
