package schemals

import (
	"context"
	"fmt"
	goruntime "runtime"
	"sync"
	"time"

	"go.lsp.dev/protocol"

	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/parser"
	"github.com/jward/schemals/internal/store"
	"github.com/jward/schemals/internal/tree"
)

// parseResult is the output of parsing one document.
type parseResult struct {
	doc   *SchemaDocument
	root  *tree.Node
	diags []diag.Diagnostic
}

// numWorkers returns the worker count for n items.
func (e *Engine) numWorkers(n int) int {
	workers := e.workers
	if workers <= 0 {
		workers = goruntime.NumCPU()
	}
	return max(min(workers, n), 1)
}

// parseParallel parses docs with a worker pool. Parsing touches nothing
// but the document's content, so workers share no state. Results keep the
// order of docs.
func (e *Engine) parseParallel(ctx context.Context, docs []*SchemaDocument) ([]parseResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	type job struct {
		pos     int
		doc     *SchemaDocument
		content string
	}
	workCh := make(chan job, len(docs))
	for i, doc := range docs {
		workCh <- job{pos: i, doc: doc, content: doc.content}
	}
	close(workCh)

	type result struct {
		pos int
		res parseResult
	}
	resultCh := make(chan result, len(docs))

	var wg sync.WaitGroup
	for range e.numWorkers(len(docs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range workCh {
				if ctx.Err() != nil {
					continue
				}
				resultCh <- result{pos: j.pos, res: e.parseDocument(ctx, j.doc, j.content)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]parseResult, len(docs))
	for r := range resultCh {
		results[r.pos] = r.res
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// parseDocument builds the unified tree of one document: the primary parse
// with sub-language trees spliced into the embedded regions.
func (e *Engine) parseDocument(ctx context.Context, doc *SchemaDocument, content string) parseResult {
	raw, errs := parser.Parse(content)
	root := tree.WrapPrimary(raw)

	var diags []diag.Diagnostic
	if len(errs) > 0 {
		lines := tree.NewLineIndex(content)
		for _, pe := range errs {
			rng := protocol.Range{Start: lines.PositionAt(pe.Begin), End: lines.PositionAt(pe.End)}
			diags = append(diags, diag.Error(rng, pe.Message))
		}
	}
	diags = append(diags, e.spliceSubLanguages(ctx, root)...)
	return parseResult{doc: doc, root: root, diags: diags}
}

// persistItem holds everything a snapshot writer needs for one file.
type persistItem struct {
	snap   *snapshot
	fileID int64
	batch  *store.BatchedStore
}

// persistParallel writes snapshots using a three-phase pipeline:
//
//	Phase A (serial):   Delete old data, prepare file records.
//	Phase B (parallel): Fill one BatchedStore per file.
//	Phase C (serial):   Commit batches to SQLite.
//
// Errors on individual files are collected; processing continues.
func (e *Engine) persistParallel(snaps []*snapshot) error {
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []persistItem
	for _, snap := range snaps {
		fileID, err := e.prepareFile(snap)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", snap.uri, err))
			continue
		}
		items = append(items, persistItem{snap: snap, fileID: fileID, batch: store.NewBatchedStore(e.store)})
	}

	// ---- Phase B: Parallel batch fill ----
	workCh := make(chan persistItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item persistItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range e.numWorkers(len(items)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				resultCh <- result{item: item, err: item.snap.write(item.batch, item.fileID)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("snapshot %s: %w", res.item.snap.uri, res.err))
			continue
		}
		if err := e.store.CommitBatch(res.item.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", res.item.snap.uri, err))
		}
	}

	if len(errs) == 0 {
		if err := e.store.SetMetadata(rulesHashKey, e.rulesHash()); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("persisting had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepareFile does Phase A work for a single file: it clears the data of
// an existing record and updates it, or inserts a new one.
func (e *Engine) prepareFile(snap *snapshot) (int64, error) {
	f := &store.File{
		URI:           snap.uri,
		SchemaName:    snap.schemaName,
		Version:       snap.version,
		Hash:          snap.hash,
		SignatureHash: snap.signature,
		LineCount:     snap.lineCount,
		LastIndexed:   time.Now(),
	}

	existing, err := e.store.FileByURI(snap.uri)
	if err != nil {
		return 0, fmt.Errorf("lookup file: %w", err)
	}
	if existing == nil {
		id, err := e.store.InsertFile(f)
		if err != nil {
			return 0, fmt.Errorf("insert file: %w", err)
		}
		return id, nil
	}

	if err := e.store.DeleteFileData(existing.ID); err != nil {
		return 0, fmt.Errorf("delete old data: %w", err)
	}
	f.ID = existing.ID
	if err := e.store.UpdateFile(f); err != nil {
		return 0, fmt.Errorf("update file: %w", err)
	}
	return existing.ID, nil
}
