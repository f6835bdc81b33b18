package processor

import "strings"

// GlobalNamespace holds the dataset wide attributes of netCDF sources.
const GlobalNamespace = "NC_GLOBAL"

// FilterAttributes keeps the "<namespace>#<name>" entries of raw whose
// namespace is one of namespaces, keyed by name. When two namespaces carry
// the same name the one listed first wins.
func FilterAttributes(raw map[string]string, namespaces ...string) map[string]string {
	rank := make(map[string]int, len(namespaces))
	for i, ns := range namespaces {
		if _, dup := rank[ns]; !dup {
			rank[ns] = i
		}
	}

	out := make(map[string]string)
	from := make(map[string]int)
	for k, v := range raw {
		i := strings.IndexByte(k, '#')
		if i < 0 {
			continue
		}
		r, ok := rank[k[:i]]
		if !ok {
			continue
		}
		name := k[i+1:]
		if prev, seen := from[name]; seen && prev <= r {
			continue
		}
		out[name] = v
		from[name] = r
	}
	return out
}
