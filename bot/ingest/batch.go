package ingest

// Batch is an ordered, deduplicated set of normalized phone numbers together
// with the filenames they came from.
type Batch struct {
	numbers []string
	sources []string
	seen    map[string]struct{}
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{seen: make(map[string]struct{})}
}

// Add appends a normalized number unless it is already present. It reports
// whether the number was new.
func (b *Batch) Add(number string) bool {
	if _, dup := b.seen[number]; dup {
		return false
	}
	b.seen[number] = struct{}{}
	b.numbers = append(b.numbers, number)
	return true
}

// AddSource records a provenance filename, skipping duplicates.
func (b *Batch) AddSource(name string) {
	if name == "" {
		return
	}
	for _, s := range b.sources {
		if s == name {
			return
		}
	}
	b.sources = append(b.sources, name)
}

// Merge folds another batch in, preserving insertion order and dedupe.
func (b *Batch) Merge(other *Batch) {
	if other == nil {
		return
	}
	for _, n := range other.numbers {
		b.Add(n)
	}
	for _, s := range other.sources {
		b.AddSource(s)
	}
}

// Numbers returns the normalized numbers in insertion order. The returned
// slice is a copy.
func (b *Batch) Numbers() []string {
	out := make([]string, len(b.numbers))
	copy(out, b.numbers)
	return out
}

// Sources returns the provenance filenames.
func (b *Batch) Sources() []string {
	out := make([]string, len(b.sources))
	copy(out, b.sources)
	return out
}

// Len reports the number of distinct numbers in the batch.
func (b *Batch) Len() int { return len(b.numbers) }
