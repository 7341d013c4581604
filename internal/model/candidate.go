package model

// Candidate is the loosely-typed bag of text an adapter pulls off a page
// before any inference runs.
type Candidate struct {
	Title       string
	URL         string
	RawDate     string
	RawTime     string
	RawEndTime  string
	RawLocation string
	Description string
	RawAudience string
	Category    string
	ImageURL    string
	// Registration is set when the source marks the event as sign-up only.
	Registration bool
	// Guessed names fields the extractor filled in without page evidence.
	Guessed []string
}
