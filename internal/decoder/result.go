package decoder

// SymbolTable renders token ids as text
type SymbolTable interface {
	TokenToText(ids []int32) string
}

// RecognitionResult is a snapshot of the best hypothesis
type RecognitionResult struct {
	Text   string  `json:"text"`
	Tokens []int32 `json:"tokens"`

	// Timestamps holds the start of each token in seconds since the last reset
	Timestamps []float64 `json:"timestamps"`
}

// IsEmpty reports whether the result carries no text
func (r RecognitionResult) IsEmpty() bool {
	return r.Text == ""
}
