package journal

// Noop is a no-op implementation used when SQLite is not configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) RecordFetch(_ *FetchRecord) error { return nil }
func (n *Noop) RecordRun(_ *RunRecord) error     { return nil }
func (n *Noop) Close() error                     { return nil }
