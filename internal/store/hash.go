package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// ContentHash returns the hex sha256 of a file's text.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ComputeSignatureHash computes a deterministic hash over what other files
// can observe of a file: its definitions and the inheritance edges it owns.
// Positions and statuses do NOT affect the hash, so moving a declaration
// leaves dependents alone.
func ComputeSignatureHash(schemaName string, symbols []*Symbol, edges []*InheritanceEdge) string {
	h := sha256.New()
	fmt.Fprintf(h, "schema:%s\n", schemaName)

	type symbolKey struct{ kind, longName string }
	skeys := make([]symbolKey, len(symbols))
	for i, sym := range symbols {
		skeys[i] = symbolKey{sym.Kind, sym.LongName}
	}
	sort.Slice(skeys, func(i, j int) bool {
		if skeys[i].kind != skeys[j].kind {
			return skeys[i].kind < skeys[j].kind
		}
		return skeys[i].longName < skeys[j].longName
	})
	for _, k := range skeys {
		fmt.Fprintf(h, "symbol:%s:%s\n", k.kind, k.longName)
	}

	ekeys := make([]string, len(edges))
	for i, e := range edges {
		ekeys[i] = fmt.Sprintf("%s:%s:%s:%s:%s", e.Graph, e.ChildFile, e.ChildName, e.ParentFile, e.ParentName)
	}
	sort.Strings(ekeys)
	for _, k := range ekeys {
		fmt.Fprintf(h, "edge:%s\n", k)
	}

	return hex.EncodeToString(h.Sum(nil))
}
