package models

// BatchFailure records one failed write batch. Committed sibling batches
// are not rolled back.
type BatchFailure struct {
	BatchIndex int
	Size       int
	Err        error
}

// UpsertReport describes the outcome of a batched index write.
type UpsertReport struct {
	BatchesTotal int
	BatchesOK    int
	DocsWritten  int
	Failed       []BatchFailure
}

// AllOK reports whether every batch committed.
func (r UpsertReport) AllOK() bool { return len(r.Failed) == 0 }

// IndexStats is a snapshot of the external index.
type IndexStats struct {
	Documents int
}
