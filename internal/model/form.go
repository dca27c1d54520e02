package model

// TimestampLayout is the format of FormSubmission.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// FormSubmission is one entry of the forms document.
//
// Submissions have no key: duplicates are allowed and the position in the
// document is the chronological order.
type FormSubmission struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
