package models

// Case is a brief describing the outcome to explain and the evidence on offer.
type Case struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Headline    string     `json:"headline"`
	Description string     `json:"description,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty"`
	Evidence    []Evidence `json:"evidence"`
}

// Evidence is a draggable card in a case's evidence drawer.
type Evidence struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
