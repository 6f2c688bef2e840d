package worker

// DocumentTask asks the ingestion worker to process one uploaded file. The
// task id is the handle clients poll; the file path points at the stored copy.
type DocumentTask struct {
	TaskID     string `json:"task_id"`
	DocumentID uint   `json:"document_id"`
	FilePath   string `json:"file_path"`
}

// EmbedTask asks the embedding worker to vectorize one chunk.
type EmbedTask struct {
	ChunkID    uint `json:"chunk_id"`
	DocumentID uint `json:"document_id"`
}
