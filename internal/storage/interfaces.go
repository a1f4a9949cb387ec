package storage

// Indexed items are keyed by ID in snapshots.
type Indexed interface {
	ID() string
}

// Snapshotter is a model whose whole content can be
// copied out and put back in one go.
type Snapshotter[T Indexed] interface {
	Snapshot() map[string]T
	Restore(map[string]T)
}
