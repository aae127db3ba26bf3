package ingest

// Guard tracks which row hashes are already staged for a job so a resumed
// initial pass skips them instead of re-validating. It is an in-memory
// optimization only: the unique key on (job, hash) in the staging table is
// the source of truth, and an insert conflict there is treated as
// "already processed", never as an error.
type Guard struct {
	seen map[string]struct{}
}

func NewGuard(staged map[string]struct{}) *Guard {
	if staged == nil {
		staged = make(map[string]struct{})
	}
	return &Guard{seen: staged}
}

func (g *Guard) AlreadyProcessed(hash string) bool {
	_, ok := g.seen[hash]
	return ok
}

func (g *Guard) Mark(hash string) {
	g.seen[hash] = struct{}{}
}
