package recorder

// NoopRecorder is used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunRecord) error   { return nil }
func (n *NoopRecorder) RecordSync(_ *SyncRecord) error { return nil }
func (n *NoopRecorder) Close() error                   { return nil }
