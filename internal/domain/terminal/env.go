package terminal

import (
	"maps"
	"slices"
	"strings"
)

// mergeEnv applies each layer over base in order. Keys already in base keep
// their position, new keys are appended sorted so the result is stable.
func mergeEnv(base []string, layers ...map[string]string) []string {
	out := make([]string, 0, len(base))
	index := make(map[string]int, len(base))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if i, ok := index[key]; ok {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}

	for _, layer := range layers {
		for _, k := range slices.Sorted(maps.Keys(layer)) {
			kv := k + "=" + layer[k]
			if i, ok := index[k]; ok {
				out[i] = kv
				continue
			}
			index[k] = len(out)
			out = append(out, kv)
		}
	}
	return out
}
