package models

// Chunk is a CV passage as stored in the vector index
type Chunk struct {
	ID      string `json:"id"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// PromptResponse is the outcome of one question run through the pipeline
type PromptResponse struct {
	Query   string  `json:"query"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Chunks  []Chunk `json:"chunks"`
}

// ScoredChunk is a nearest neighbour candidate with its stored embedding.
type ScoredChunk struct {
	Chunk      Chunk
	Embedding  []float32
	Similarity float64
}
