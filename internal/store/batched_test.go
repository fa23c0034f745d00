package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_SymbolsByFile_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "file:///a.sd", "a")

	// A symbol from a previous snapshot.
	insertTestSymbol(t, s, &f.ID, "old", "a.old", "DOCUMENT")

	batch := NewBatchedStore(s)
	id, err := batch.InsertSymbol(&Symbol{FileID: &f.ID, Name: "new", LongName: "a.new", Kind: "STRUCT", Status: "DEFINITION"})
	require.NoError(t, err)
	assert.Negative(t, id, "batched IDs should be negative")

	syms, err := batch.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	names := []string{syms[0].Name, syms[1].Name}
	assert.Contains(t, names, "old")
	assert.Contains(t, names, "new")
}

func TestBatchedStore_SymbolsByFile_DoesNotReturnOtherFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f1 := insertTestFile(t, s, "file:///a.sd", "a")
	f2 := insertTestFile(t, s, "file:///b.sd", "b")

	batch := NewBatchedStore(s)
	_, err := batch.InsertSymbol(&Symbol{FileID: &f1.ID, Name: "inA", LongName: "a.inA", Kind: "STRUCT", Status: "DEFINITION"})
	require.NoError(t, err)
	_, err = batch.InsertSymbol(&Symbol{FileID: &f2.ID, Name: "inB", LongName: "b.inB", Kind: "STRUCT", Status: "DEFINITION"})
	require.NoError(t, err)

	syms, err := batch.SymbolsByFile(f1.ID)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "inA", syms[0].Name)
}

func TestCommitBatch_RemapsParentIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "file:///music.sd", "music")

	batch := NewBatchedStore(s)
	schemaID, err := batch.InsertSymbol(&Symbol{FileID: &f.ID, Name: "music", LongName: "music", Kind: "SCHEMA", Status: "DEFINITION"})
	require.NoError(t, err)
	_, err = batch.InsertSymbol(&Symbol{FileID: &f.ID, Name: "p1", LongName: "music.p1", Kind: "RANK_PROFILE", Status: "DEFINITION", ParentSymbolID: ptr(schemaID)})
	require.NoError(t, err)
	_, err = batch.InsertReference(&Reference{FileID: f.ID, Name: "base", Kind: "RANK_PROFILE", Status: "REFERENCE"})
	require.NoError(t, err)
	_, err = batch.InsertInheritance(&InheritanceEdge{FileID: f.ID, Graph: GraphRankProfile, ChildFile: f.URI, ChildName: "music.p1", ParentFile: f.URI, ParentName: "music.base"})
	require.NoError(t, err)
	_, err = batch.InsertDiagnostic(&Diagnostic{FileID: f.ID, Severity: "warning", Message: "w"})
	require.NoError(t, err)
	assert.Equal(t, 5, batch.Len())

	require.NoError(t, s.CommitBatch(batch))

	syms, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Positive(t, syms[0].ID)
	require.NotNil(t, syms[1].ParentSymbolID)
	assert.Equal(t, syms[0].ID, *syms[1].ParentSymbolID)

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	edges, err := s.InheritanceByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
	diags, err := s.DiagnosticsByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, diags, 1)
}

func TestCommitBatch_UnknownParentRollsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "file:///a.sd", "a")

	batch := NewBatchedStore(s)
	_, err := batch.InsertSymbol(&Symbol{FileID: &f.ID, Name: "ok", LongName: "a.ok", Kind: "DOCUMENT", Status: "DEFINITION"})
	require.NoError(t, err)
	_, err = batch.InsertSymbol(&Symbol{FileID: &f.ID, Name: "orphan", LongName: "a.orphan", Kind: "FIELD", Status: "DEFINITION", ParentSymbolID: ptr(int64(-42))})
	require.NoError(t, err)

	require.Error(t, s.CommitBatch(batch))
	syms, err := s.SymbolsByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestBatchedStore_ConcurrentInserts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "file:///a.sd", "a")
	batch := NewBatchedStore(s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, _ = batch.InsertDiagnostic(&Diagnostic{FileID: f.ID, Severity: "hint", Message: "m"})
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, d := range batch.Diagnostics {
		assert.False(t, seen[d.ID], "duplicate fake id %d", d.ID)
		seen[d.ID] = true
	}
	assert.Len(t, seen, 200)
}
