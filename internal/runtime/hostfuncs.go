package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/schemals/internal/tree"
)

// Syntax host functions. Rules see nodes of the analysed file through
// opaque handles; positions are always those of the enclosing file, so a
// node's range can go straight into report.

// nodeHandle is what a rule holds for a node. It has no exported fields or
// methods, so scripts can only use it through the host functions.
type nodeHandle struct {
	node *tree.Node
}

func newNodeHandle(n *tree.Node) object.Object {
	if n == nil {
		return object.Nil
	}
	return mustProxy(&nodeHandle{node: n})
}

// nodeArg unwraps a handle argument.
func nodeArg(fn string, obj object.Object) (*tree.Node, object.Object) {
	proxy, ok := obj.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected node, got %s", fn, obj.Type())
	}
	h, ok := proxy.Interface().(*nodeHandle)
	if !ok {
		return nil, object.Errorf("%s: expected node, got %T", fn, proxy.Interface())
	}
	return h.node, nil
}

// sitterOf returns the tree-sitter node behind a sub-language node.
func sitterOf(n *tree.Node) (*tree.SitterNode, bool) {
	sn, ok := n.Raw().(*tree.SitterNode)
	return sn, ok
}

// subLanguageRoot returns n itself when it belongs to a spliced
// sub-language tree, or the sub-language tree spliced directly under an
// embedded region.
func subLanguageRoot(n *tree.Node) (*tree.Node, bool) {
	if _, ok := sitterOf(n); ok {
		return n, true
	}
	for _, c := range n.Children() {
		if _, ok := sitterOf(c); ok {
			return c, true
		}
	}
	return nil, false
}

// node_text(node) → string
func makeNodeTextFn() *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		n, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewString(n.Text())
	})
}

// node_type(node) → string
//
// Simulated types win over grammar types, as everywhere else.
func makeNodeTypeFn() *object.Builtin {
	return object.NewBuiltin("node_type", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_type", 1, len(args))
		}
		n, errObj := nodeArg("node_type", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewString(n.Type())
	})
}

// node_range(node) → map with line, col, end_line, end_col
func makeNodeRangeFn() *object.Builtin {
	return object.NewBuiltin("node_range", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_range", 1, len(args))
		}
		n, errObj := nodeArg("node_range", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewMap(rangeMap(n.Range()))
	})
}

// node_children(node) → []node
func makeNodeChildrenFn() *object.Builtin {
	return object.NewBuiltin("node_children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_children", 1, len(args))
		}
		n, errObj := nodeArg("node_children", args[0])
		if errObj != nil {
			return errObj
		}
		children := make([]object.Object, 0, n.Len())
		for _, c := range n.Children() {
			children = append(children, newNodeHandle(c))
		}
		return object.NewList(children)
	})
}

// node_child(node, fieldName) → node or nil
//
// Looks up a grammar field of a sub-language node. Primary nodes have no
// fields and always give nil.
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		n, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field %v", err)
		}
		sn, ok := sitterOf(n)
		if !ok {
			return object.Nil
		}
		target := sn.Node().ChildByFieldName(field)
		if target == nil {
			return object.Nil
		}
		want := keyOf(target)
		for _, c := range n.Children() {
			if csn, ok := sitterOf(c); ok && keyOf(csn.Node()) == want {
				return newNodeHandle(c)
			}
		}
		return object.Nil
	})
}

// query(pattern, node) → []map[string]node
//
// Runs a tree-sitter query over the sub-language tree at node. node may be
// an embedded region from embedded(), in which case the tree spliced into
// it is queried. Captures come back as nodes of the analysed file.
func makeQueryFn() *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern %v", err)
		}
		n, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		root, ok := subLanguageRoot(n)
		if !ok {
			return object.Errorf("query: no sub-language tree at %s node; configure a grammar for the region", n.Type())
		}
		sn, _ := sitterOf(root)
		if sn.Grammar() == nil {
			return object.Errorf("query: %s node has no grammar", root.Type())
		}

		q, err := sitter.NewQuery([]byte(pattern), sn.Grammar())
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		nodes := indexSubtree(root)
		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, sn.Node())

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, sn.SourceBytes())
			captures := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				if node, ok := nodes[keyOf(c.Node)]; ok {
					captures[q.CaptureNameForId(c.Index)] = newNodeHandle(node)
				}
			}
			if len(captures) > 0 {
				results = append(results, object.NewMap(captures))
			}
		}
		return object.NewList(results)
	})
}

// sitterKey identifies a tree-sitter node within its tree. Wrapping
// allocates fresh tree-sitter node values, so pointers cannot be compared.
type sitterKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) sitterKey {
	return sitterKey{start: n.StartByte(), end: n.EndByte(), typ: n.Type()}
}

// indexSubtree maps every sub-language node under root by its tree-sitter
// key. The outermost node wins when two share a key.
func indexSubtree(root *tree.Node) map[sitterKey]*tree.Node {
	nodes := make(map[sitterKey]*tree.Node)
	root.Walk(func(n *tree.Node) bool {
		sn, ok := sitterOf(n)
		if !ok {
			return false
		}
		k := keyOf(sn.Node())
		if _, seen := nodes[k]; !seen {
			nodes[k] = n
		}
		return true
	})
	return nodes
}

// logObject provides log.Debug/Info/Warn/Error methods for rule scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Debug(msg string) { l.logger.Debug(msg) }
func (l *logObject) Info(msg string)  { l.logger.Info(msg) }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg) }
func (l *logObject) Error(msg string) { l.logger.Error(msg) }
