package shellparse

import "regexp"

// universalDangerousPatterns sets IsDangerous regardless of which shell
// produced the command. Grounded in the teacher's internal/tools/shell.go
// defaultDenyPatterns list, trimmed to the subset spec.md §4.3 names
// explicitly plus the handful of equally-unambiguous siblings (mkfs,
// shutdown/reboot) the teacher groups alongside them.
var universalDangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[a-zA-Z]*r[a-zA-Z]*f\b`),
	regexp.MustCompile(`\brm\s+-[a-zA-Z]*f[a-zA-Z]*r\b`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
	regexp.MustCompile(`\bdd\s+if=.*\bof=/dev/`),
	regexp.MustCompile(`\bchmod\s+777\b`),
	regexp.MustCompile(`\bchmod\s+-R\b`),
	regexp.MustCompile(`\bcurl\b[^|]*\|\s*(sudo\s+)?(ba)?sh\b`),
	regexp.MustCompile(`\bwget\b[^|]*\|\s*(sudo\s+)?(ba)?sh\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|\s*:&\s*\}\s*;\s*:`),
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`\b(shutdown|reboot)\b`),
}

// IsUniversallyDangerous applies the cross-shell pattern list to a raw
// (unparsed) command string.
func IsUniversallyDangerous(raw string) bool {
	for _, re := range universalDangerousPatterns {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}

// dangerousPowerShellSubstrings are matched case-insensitively anywhere in
// the raw command, per spec.md §4.3's PowerShell clause.
var dangerousPowerShellSubstrings = []string{
	"invoke-expression", "invoke-command", "iex", "icm",
	"-encodedcommand", "downloadstring", "downloadfile",
}
