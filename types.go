package schemals

import (
	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/store"
	"github.com/jward/schemals/internal/tree"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder API.

type Diagnostic = diag.Diagnostic
type Node = tree.Node
type Symbol = tree.Symbol
type SymbolType = tree.SymbolType
type StoredFile = store.File
type StoredSymbol = store.Symbol
type StoredEdge = store.InheritanceEdge
type StoredDiagnostic = store.Diagnostic
