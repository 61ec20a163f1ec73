package docindex

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultTopK = 3

// Embedder is the subset of pkg/llm.Client the Index depends on. Kept as a
// narrow interface so tests can substitute a fake without spinning up an
// HTTP server.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
}

// Config configures an Index.
type Config struct {
	SourceURLs []string // documentation source URLs; empty falls back to the seed corpus
	CacheDir   string
	TopK       int
}

// Index is the process-wide Doc Index singleton. Reads
// (Search, Status) take the read lock; Refresh takes the write lock only
// to swap in the new chunk set, and ClearCache touches only the disk
// cache, which has its own lock.
type Index struct {
	mu       sync.RWMutex
	cfg      Config
	embedder Embedder
	cache    *diskCache
	fetcher  *fetcher

	chunks    []Chunk
	usingSeed bool
}

// New constructs an Index. Call Refresh before serving Search to populate
// the in-memory chunk set from cache or a fresh fetch.
func New(cfg Config, embedder Embedder) *Index {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	return &Index{
		cfg:      cfg,
		embedder: embedder,
		cache:    newDiskCache(cfg.CacheDir),
		fetcher:  newFetcher(),
	}
}

// Refresh fetches every configured source, reusing cached embeddings when
// the content hash and age still qualify, re-embedding otherwise. On total
// fetch failure it seeds from the built-in corpus so the system remains
// operational.
func (idx *Index) Refresh(ctx context.Context) error {
	if err := idx.cache.load(); err != nil {
		slog.Warn("doc index cache load failed, starting empty", "error", err)
	}

	urls := idx.cfg.SourceURLs
	var allChunks []Chunk
	usingSeed := false
	fetchedAny := false

	for _, url := range urls {
		chunks, err := idx.refreshOne(ctx, url)
		if err != nil {
			slog.Warn("doc index source fetch failed", "url", url, "error", err)
			continue
		}
		fetchedAny = true
		allChunks = append(allChunks, chunks...)
	}

	if len(urls) == 0 || !fetchedAny {
		usingSeed = true
		allChunks = append(allChunks, idx.embedSeed(ctx)...)
	}

	idx.mu.Lock()
	idx.chunks = allChunks
	idx.usingSeed = usingSeed
	idx.mu.Unlock()

	if err := idx.cache.flush(); err != nil {
		slog.Warn("doc index cache flush failed", "error", err)
	}
	return nil
}

func (idx *Index) refreshOne(ctx context.Context, url string) ([]Chunk, error) {
	content, err := idx.fetcher.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	hash := contentHash(content)
	if cached, ok := idx.cache.lookup(url, hash); ok {
		return cached.Chunks, nil
	}

	chunks := chunkMarkdown(content)
	if err := idx.embedChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("embed chunks for %s: %w", url, err)
	}

	idx.cache.store(url, docEntry{
		Content:     content,
		ContentHash: hash,
		Chunks:      chunks,
		Timestamp:   time.Now(),
	})
	return chunks, nil
}

func (idx *Index) embedSeed(ctx context.Context) []Chunk {
	chunks := chunkMarkdown(seedCorpus)
	if err := idx.embedChunks(ctx, chunks); err != nil {
		slog.Warn("doc index seed embedding failed, seed chunks have no embeddings and score zero in search", "error", err)
	}
	return chunks
}

func (idx *Index) embedChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	for i := range chunks {
		if i < len(vecs) {
			chunks[i].Embedding = vecs[i]
		}
	}
	return nil
}

// Search embeds query and returns the top-K most similar chunks.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = idx.cfg.TopK
	}

	idx.mu.RLock()
	chunks := make([]Chunk, len(idx.chunks))
	copy(chunks, idx.chunks)
	idx.mu.RUnlock()

	if len(chunks) == 0 {
		return nil, nil
	}

	vecs, err := idx.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := vecs[0]

	results := make([]SearchResult, len(chunks))
	for i, c := range chunks {
		results[i] = SearchResult{Chunk: c, Score: cosineSimilarity(queryVec, c.Embedding)}
	}
	return topK(results, k), nil
}

// Status reports index size and freshness for GET /chatbot/docs/status.
func (idx *Index) Status() Status {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sources := idx.cache.snapshot()
	return Status{
		SourceCount: len(sources.Docs),
		ChunkCount:  len(idx.chunks),
		LastCheck:   sources.LastCheck,
		UsingSeed:   idx.usingSeed,
	}
}

// ClearCache purges the persistent embedding cache. The in-memory chunk set
// is left untouched until the next Refresh.
func (idx *Index) ClearCache() error {
	idx.cache.clear()
	return idx.cache.flush()
}
