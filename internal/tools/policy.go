package tools

import "strings"

// toolGroups map group names to tool names, mirroring the teacher's
// TOOL_GROUPS composition — named groups here cover only the tools this
// repo's registry actually carries.
var toolGroups = map[string][]string{
	"fs":       {"read_file", "write_file", "edit_file"},
	"runtime":  {"exec"},
	"web":      {"web_fetch"},
	"sessions": {"subagent_spawn"},
}

// toolProfiles define preset allow sets, evaluated before Allow/Deny.
// "full" or an unrecognized profile name means no restriction.
var toolProfiles = map[string][]string{
	"minimal":   {},
	"coding":    {"group:fs", "group:runtime", "group:web"},
	"messaging": {},
	"full":      {},
}

// Policy is the tool-visibility configuration for one session: which
// tools the LLM is even offered, as a layer above the gate's per-call
// Allow/Gate/Deny decision.
type Policy struct {
	Profile   string
	Allow     []string
	Deny      []string
	AlsoAllow []string
}

// PolicyEngine evaluates tool visibility for one session.
type PolicyEngine struct {
	policy Policy
}

func NewPolicyEngine(policy Policy) *PolicyEngine {
	return &PolicyEngine{policy: policy}
}

// FilterNames narrows allNames down to the tools visible under the
// policy: profile first, then global allow (restricts), then deny
// (removes), then alsoAllow (adds back).
func (pe *PolicyEngine) FilterNames(allNames []string) []string {
	p := pe.policy
	allowed := applyProfile(allNames, p.Profile)
	if len(p.Allow) > 0 {
		allowed = intersectWithSpec(allowed, p.Allow)
	}
	if len(p.Deny) > 0 {
		allowed = subtractWithSpec(allowed, p.Deny)
	}
	if len(p.AlsoAllow) > 0 {
		allowed = unionWithSpec(allowed, allNames, p.AlsoAllow)
	}
	return allowed
}

func applyProfile(all []string, profile string) []string {
	if profile == "" || profile == "full" {
		return append([]string(nil), all...)
	}
	spec, ok := toolProfiles[profile]
	if !ok {
		return append([]string(nil), all...)
	}
	return expandSpec(all, spec)
}

// expandSpec expands a spec list (which may contain "group:xxx") into
// concrete tool names, filtered against available tools.
func expandSpec(available []string, spec []string) []string {
	expanded := specToSet(spec)
	var result []string
	for _, t := range available {
		if expanded[t] {
			result = append(result, t)
		}
	}
	return result
}

func intersectWithSpec(current []string, spec []string) []string {
	expanded := specToSet(spec)
	var result []string
	for _, t := range current {
		if expanded[t] {
			result = append(result, t)
		}
	}
	return result
}

func subtractWithSpec(current []string, spec []string) []string {
	expanded := specToSet(spec)
	var result []string
	for _, t := range current {
		if !expanded[t] {
			result = append(result, t)
		}
	}
	return result
}

// unionWithSpec adds back, from all, any tool named by spec that isn't
// already in current.
func unionWithSpec(current []string, all []string, spec []string) []string {
	present := make(map[string]bool, len(current))
	for _, t := range current {
		present[t] = true
	}
	expanded := specToSet(spec)
	result := append([]string(nil), current...)
	for _, t := range all {
		if expanded[t] && !present[t] {
			result = append(result, t)
			present[t] = true
		}
	}
	return result
}

func specToSet(spec []string) map[string]bool {
	expanded := make(map[string]bool)
	for _, s := range spec {
		if strings.HasPrefix(s, "group:") {
			for _, m := range toolGroups[strings.TrimPrefix(s, "group:")] {
				expanded[m] = true
			}
			continue
		}
		expanded[s] = true
	}
	return expanded
}
