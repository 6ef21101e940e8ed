package canon

import (
	"sort"
	"strings"
)

// Mapping maps trimmed raw values to their canonical representative. Every
// canonical value is itself a key that maps to itself.
type Mapping map[string]string

// Apply returns the canonical form of v. Values the mapping has never seen are
// returned trimmed and otherwise unchanged.
func (m Mapping) Apply(v string) string {
	t := strings.TrimSpace(v)
	if c, ok := m[t]; ok {
		return c
	}
	return t
}

// Canonicals returns the canonical values in lexical order.
func (m Mapping) Canonicals() []string {
	var out []string
	for k, v := range m {
		if k == v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Groups returns the members of every canonical cluster, keyed by canonical
// value. Members are sorted and include the canonical value itself.
func (m Mapping) Groups() map[string][]string {
	g := make(map[string][]string)
	for k, v := range m {
		g[v] = append(g[v], k)
	}
	for _, members := range g {
		sort.Strings(members)
	}
	return g
}

// Merged returns only the entries whose value differs from their key.
func (m Mapping) Merged() Mapping {
	out := Mapping{}
	for k, v := range m {
		if k != v {
			out[k] = v
		}
	}
	return out
}
