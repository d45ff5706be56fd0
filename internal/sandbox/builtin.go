package sandbox

import (
	"embed"
	"sort"
	"strings"

	"github.com/freeeve/dicewars/pkg/dicewars"
)

//go:embed agents/*.js
var builtinFS embed.FS

// DefaultBuiltin is the agent used when a player has none or theirs cannot
// be found.
const DefaultBuiltin = "greedy"

var builtinAliases = map[string]string{
	"medium": "normal",
}

// BuiltinNames lists the bundled agents.
func BuiltinNames() []string {
	entries, _ := builtinFS.ReadDir("agents")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".js"))
	}
	sort.Strings(names)
	return names
}

// Builtin returns a bundled agent by name, with or without the builtin:
// prefix.
func Builtin(name string) (AgentDefinition, bool) {
	name = strings.TrimPrefix(name, dicewars.BuiltinAgentPrefix)
	if alias, ok := builtinAliases[name]; ok {
		name = alias
	}
	src, err := builtinFS.ReadFile("agents/" + name + ".js")
	if err != nil {
		return AgentDefinition{}, false
	}
	return AgentDefinition{
		ID:     dicewars.BuiltinAgentPrefix + name,
		Name:   name,
		Source: string(src),
	}, true
}
