package model

// ImportError describes one row that could not be imported.
type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Raw     string `json:"raw"`
}

// ImportResult summarizes a bulk import run.
type ImportResult struct {
	RunID        string        `json:"run_id"`
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []ImportError `json:"errors"`
}
