package models

// PromptMessage is the payload of one message on the prompt stream.
type PromptMessage struct {
	ID             string   `json:"id"`
	Prompts        []string `json:"prompts"`
	TimeoutSeconds float64  `json:"timeout_seconds,omitempty"`
}

// ResultMessage is published to the results stream once a PromptMessage is processed.
// Results keep the order of the prompts; absent slots carry an error instead of a response.
type ResultMessage struct {
	ID      string         `json:"id"`
	Results []OutputRecord `json:"results"`
	Absent  int            `json:"absent"`
}
