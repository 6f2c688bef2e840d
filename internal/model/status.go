package model

// ProcessingStatus tracks the lifecycle of a document and of each of its
// chunks: PENDING -> PROCESSING -> COMPLETED | FAILED.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
)
