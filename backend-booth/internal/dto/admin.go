package dto

// BulkResponse summarizes a bulk admin operation
type BulkResponse struct {
	Results   any `json:"results"`
	Total     int `json:"total"`
	Failed    int `json:"failed"`
	Succeeded int `json:"succeeded"`
}
