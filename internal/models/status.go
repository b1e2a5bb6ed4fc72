package models

// Status summarizes catalog, index, and model state.
type Status struct {
	Books            int              `json:"books"`
	BooksWithIndex   int              `json:"books_with_dense_index"`
	Users            int              `json:"users"`
	KeywordIndexSize uint64           `json:"keyword_index_size"`
	DiskUsageBytes   *int64           `json:"disk_usage_bytes,omitempty"`
	DiskUsage        map[string]int64 `json:"disk_usage,omitempty"`
	Model            *ModelStatus     `json:"model,omitempty"`
	Directories      []string         `json:"catalog_directories,omitempty"`
}

// ModelStatus describes the configured scorer.
type ModelStatus struct {
	ModelPath        string `json:"model_path,omitempty"`
	InputWidth       int    `json:"input_width"`
	OutputWidth      int    `json:"output_width"`
	DirectIndexSlots int    `json:"direct_index_slots"`
	TopK             int    `json:"top_k"`
	BreakerState     string `json:"breaker_state,omitempty"`
}
