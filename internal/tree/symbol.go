package tree

import "fmt"

// SymbolType classifies named schema entities.
type SymbolType uint8

const (
	TypeUnknown SymbolType = iota
	TypeSchema
	TypeDocument
	TypeStruct
	TypeField
	TypeRankProfile
	TypeFunction
	TypeParameter
	TypeFieldset
	TypeDocumentSummary
	TypeAnnotation
	TypeOnnxModel
	TypeConstant
	TypeLabel
)

var symbolTypeNames = map[SymbolType]string{
	TypeUnknown:         "TYPE_UNKNOWN",
	TypeSchema:          "SCHEMA",
	TypeDocument:        "DOCUMENT",
	TypeStruct:          "STRUCT",
	TypeField:           "FIELD",
	TypeRankProfile:     "RANK_PROFILE",
	TypeFunction:        "FUNCTION",
	TypeParameter:       "PARAMETER",
	TypeFieldset:        "FIELDSET",
	TypeDocumentSummary: "DOCUMENT_SUMMARY",
	TypeAnnotation:      "ANNOTATION",
	TypeOnnxModel:       "ONNX_MODEL",
	TypeConstant:        "CONSTANT",
	TypeLabel:           "LABEL",
}

func (t SymbolType) String() string {
	if s, ok := symbolTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("SymbolType(%d)", t)
}

// ParseSymbolType is the inverse of String. Unknown names map to TypeUnknown.
func ParseSymbolType(s string) (SymbolType, bool) {
	for t, name := range symbolTypeNames {
		if name == s {
			return t, true
		}
	}
	return TypeUnknown, false
}

// SymbolStatus is the resolution state of a symbol.
type SymbolStatus uint8

const (
	StatusUnresolved SymbolStatus = iota
	StatusDefinition
	StatusReference
	StatusBuiltinReference
)

func (s SymbolStatus) String() string {
	switch s {
	case StatusUnresolved:
		return "UNRESOLVED"
	case StatusDefinition:
		return "DEFINITION"
	case StatusReference:
		return "REFERENCE"
	case StatusBuiltinReference:
		return "BUILTIN_REFERENCE"
	default:
		return fmt.Sprintf("SymbolStatus(%d)", s)
	}
}

// Symbol is a named entity attached to exactly one node. The scope is a
// relation to the enclosing symbol, not ownership.
type Symbol struct {
	node            *Node
	typ             SymbolType
	status          SymbolStatus
	fileURI         string
	shortIdentifier string
	scope           *Symbol
}

func (s *Symbol) Node() *Node { return s.node }
func (s *Symbol) Type() SymbolType { return s.typ }
func (s *Symbol) SetType(t SymbolType) { s.typ = t }
func (s *Symbol) Status() SymbolStatus { return s.status }
func (s *Symbol) SetStatus(st SymbolStatus) { s.status = st }
func (s *Symbol) FileURI() string { return s.fileURI }
func (s *Symbol) ShortIdentifier() string { return s.shortIdentifier }
func (s *Symbol) SetScope(scope *Symbol) { s.scope = scope }

// Scope returns the enclosing symbol, or nil at the top level.
func (s *Symbol) Scope() *Symbol { return s.scope }

// LongIdentifier is the dot-separated chain of short identifiers from the
// outermost scope down to s.
func (s *Symbol) LongIdentifier() string {
	if s.scope == nil {
		return s.shortIdentifier
	}
	return s.scope.LongIdentifier() + "." + s.shortIdentifier
}

func (s *Symbol) String() string {
	return fmt.Sprintf("Symbol(%s %s %s in %s)", s.typ, s.status, s.LongIdentifier(), s.fileURI)
}
