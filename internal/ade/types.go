package ade

// Wire types for the document parse API. The response is loosely typed on
// the service side; everything here is validated into strict records by the
// chunk builder before it crosses any other package boundary.

type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

type Grounding struct {
	Page *int `json:"page"`
	Box  *Box `json:"box"`
}

type Chunk struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Markdown  string     `json:"markdown"`
	Grounding *Grounding `json:"grounding"`
}

type Split struct {
	Chunks   []string `json:"chunks"`
	Pages    []int    `json:"pages"`
	Markdown string   `json:"markdown"`
	Class    string   `json:"class"`
}

type Metadata struct {
	Filename    string `json:"filename"`
	PageCount   int    `json:"page_count"`
	Version     string `json:"version"`
	JobID       string `json:"job_id"`
	OrgID       string `json:"org_id"`
	CreditUsage int    `json:"credit_usage"`
	DurationMS  int64  `json:"duration_ms"`
}

type ParseResponse struct {
	Markdown string   `json:"markdown"`
	Chunks   []Chunk  `json:"chunks"`
	Splits   []Split  `json:"splits"`
	Metadata Metadata `json:"metadata"`
}
