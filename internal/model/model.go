package model

// RosterRequest is the canonical roster-change request as held by the sync
// controller, independent of how the spreadsheet API spelled its columns.
type RosterRequest struct {
	// ID identifies the row in the remote store. Empty means the record has
	// never been persisted; updates and deletes require it.
	ID string `json:"id,omitempty"`
	// Timestamp is the submission time as sent by the API, if any.
	Timestamp string `json:"timestamp,omitempty"`

	Name string `json:"name"`
	// Date is the requested day. Usually ISO "2006-01-02", but the API may
	// return other shapes; compare it only through internal/normalize.
	Date string `json:"date"`
	// Day is the weekday name derived from Date when the request was saved.
	Day     string `json:"day"`
	Request string `json:"request"`
	// Status is compared case-insensitively; only "active" is visible.
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// HasID reports whether the record can be updated or deleted remotely.
func (r RosterRequest) HasID() bool {
	return r.ID != ""
}

// Draft is what a presentation collaborator hands in when saving a request.
// A non-empty ID turns the save into an update.
type Draft struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	Request string `json:"request"`
	Comment string `json:"comment"`
}

// Payload is the body of a submit/update call after date normalization.
type Payload struct {
	Name    string `json:"name"`
	Date    string `json:"date"`
	Day     string `json:"day"`
	Request string `json:"request"`
	Comment string `json:"comment"`
}
