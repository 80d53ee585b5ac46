package gate

import "testing"

func TestBuildGateConfigDefaults(t *testing.T) {
	cfg, err := BuildGateConfig(RawGateConfig{})
	if err != nil {
		t.Fatalf("BuildGateConfig: %v", err)
	}
	if !cfg.Enabled {
		t.Error("expected enabled by default")
	}
	if cfg.Categories[CategoryFileRead] != ActionAllow {
		t.Error("expected file_read to default to allow")
	}
	if cfg.Categories[CategoryShell] != ActionGate {
		t.Error("expected shell to default to gate")
	}
}

func TestBuildGateConfigRejectsUnknownCategory(t *testing.T) {
	_, err := BuildGateConfig(RawGateConfig{Categories: map[string]string{"bogus": "allow"}})
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestBuildGateConfigRejectsMixedAllowlistEntry(t *testing.T) {
	_, err := BuildGateConfig(RawGateConfig{
		Allowlist: []RawAllowlistEntry{{Tool: "shell", Pattern: "x", Command: []string{"ls"}}},
	})
	if err == nil {
		t.Fatal("expected error for entry with both pattern and command")
	}
}

func TestBuildGateConfigShellAllowlistEntry(t *testing.T) {
	cfg, err := BuildGateConfig(RawGateConfig{
		Allowlist: []RawAllowlistEntry{{Tool: "shell", Command: []string{"git", "status"}, Shell: "posix"}},
	})
	if err != nil {
		t.Fatalf("BuildGateConfig: %v", err)
	}
	if !cfg.Allowlist.CheckShell([]string{"git", "status"}, "posix") {
		t.Error("expected shell allowlist entry to match")
	}
}
