package domain

// BusinessRecord is the mocked analytics payload shown on the dashboard.
// Rating and Reviews only ever come from the generator.
type BusinessRecord struct {
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Rating   float64 `json:"rating"`  // [3.5, 5.0], one decimal
	Reviews  int     `json:"reviews"` // [50, 250)
	Headline string  `json:"headline"`
}

// WithHeadline returns a copy with only the headline replaced.
func (r BusinessRecord) WithHeadline(h string) BusinessRecord {
	r.Headline = h
	return r
}

type FieldCode string

const (
	Required FieldCode = "Required"
	TooShort FieldCode = "TooShort"
)

const (
	FieldName     = "name"
	FieldLocation = "location"
)

type FieldError struct {
	Field   string    `json:"field"`
	Code    FieldCode `json:"code"`
	Message string    `json:"message"`
}

// FieldErrors maps a form field to its validation failure. Empty means valid.
type FieldErrors map[string]FieldError

func (fe FieldErrors) Valid() bool { return len(fe) == 0 }

// Message returns the message for field, or "" when the field passed.
func (fe FieldErrors) Message(field string) string {
	return fe[field].Message
}
