package embed

// Options configures the local fastembed model.
type Options struct {
	Model     string // e.g. "fast-bge-small-en-v1.5"
	CacheDir  string
	MaxLength int // token limit, 0 = default
	BatchSize int
}
