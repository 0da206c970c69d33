package query

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
)

// Key computes a deterministic cache key from a query class name and its
// normalized parameters. The key is based on sorted parameter names and
// values, ensuring that:
//   - equal parameter sets = same key (determinism)
//   - different map iteration order = same key (order independence)
//   - absent parameters and empty-string values hash identically, so
//     "no filter" can never split into two entries
//   - any value difference = different key (sensitivity)
func Key(class string, v url.Values) string {
	var buf bytes.Buffer
	buf.WriteString(class)
	buf.WriteByte('\n')

	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vals := append([]string(nil), v[name]...)
		sort.Strings(vals)
		for _, val := range vals {
			if val == "" {
				continue
			}
			fmt.Fprintf(&buf, "%s=%s\n", name, val)
		}
	}

	sum := sha256.Sum256(buf.Bytes())
	return class + ":" + hex.EncodeToString(sum[:])
}
