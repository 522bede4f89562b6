package model

import "time"

// ListStatus represents the import lifecycle of a target list.
type ListStatus string

const (
	ListStatusPending    ListStatus = "pending"
	ListStatusProcessing ListStatus = "processing"
	ListStatusCompleted  ListStatus = "completed"
	ListStatusFailed     ListStatus = "failed"
)

// Confidence is the coarse certainty label attached to a match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score returns the numeric match score for a confidence label.
// Labels without a defined score return 0.
func (c Confidence) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.0
	case ConfidenceMedium:
		return 0.8
	default:
		return 0
	}
}

// SourceContact is an address-book entry a user shared with the campaign.
type SourceContact struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Mobile1   string    `json:"mobile1,omitempty"`
	Mobile2   string    `json:"mobile2,omitempty"`
	Mobile3   string    `json:"mobile3,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Zip       string    `json:"zip,omitempty"`
	Company   string    `json:"company,omitempty"`
	Matched   bool      `json:"matched"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Phones returns the raw phone numbers in field order, blanks included.
func (c *SourceContact) Phones() []string {
	return []string{c.Mobile1, c.Mobile2, c.Mobile3}
}

// TargetList is a named, campaign-managed batch of target contacts.
type TargetList struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Status           ListStatus `json:"status"`
	TotalContacts    int        `json:"total_contacts"`
	ImportedContacts int        `json:"imported_contacts"`
	FailedContacts   int        `json:"failed_contacts"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TargetContact is one canonical record in a target list.
type TargetContact struct {
	ID              int64      `json:"id"`
	ListID          int64      `json:"list_id"`
	VoterID         string     `json:"voter_id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	ZipCode         string     `json:"zip_code"`
	Cell1           string     `json:"cell_1,omitempty"`
	Cell2           string     `json:"cell_2,omitempty"`
	Cell3           string     `json:"cell_3,omitempty"`
	Landline1       string     `json:"landline_1,omitempty"`
	Landline2       string     `json:"landline_2,omitempty"`
	Landline3       string     `json:"landline_3,omitempty"`
	Email           string     `json:"email,omitempty"`
	IsMatched       bool       `json:"is_matched"`
	MatchConfidence Confidence `json:"match_confidence,omitempty"`
	MatchScore      *float64   `json:"match_score,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TargetContactSnapshot is a detached copy of a target contact taken at
// candidate-search time. It is never written back.
type TargetContactSnapshot struct {
	ID              int64      `json:"id"`
	ListID          int64      `json:"list_id"`
	VoterID         string     `json:"voter_id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Cell1           string     `json:"cell_1,omitempty"`
	Cell2           string     `json:"cell_2,omitempty"`
	Cell3           string     `json:"cell_3,omitempty"`
	Landline1       string     `json:"landline_1,omitempty"`
	Landline2       string     `json:"landline_2,omitempty"`
	Landline3       string     `json:"landline_3,omitempty"`
	Email           string     `json:"email,omitempty"`
	IsMatched       bool       `json:"is_matched"`
	MatchConfidence Confidence `json:"match_confidence,omitempty"`
	MatchScore      *float64   `json:"match_score,omitempty"`
}

// PhoneFields returns the six stored phone columns in schema order.
func (s TargetContactSnapshot) PhoneFields() []string {
	return []string{s.Cell1, s.Cell2, s.Cell3, s.Landline1, s.Landline2, s.Landline3}
}

// ContactMatch records one link between a source and a target contact.
type ContactMatch struct {
	ID              int64      `json:"id"`
	SourceContactID int64      `json:"source_contact_id"`
	TargetContactID int64      `json:"target_contact_id"`
	TargetListID    int64      `json:"target_list_id"`
	Confidence      Confidence `json:"match_confidence"`
	Score           *float64   `json:"match_score,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MatchDetail is a ContactMatch joined with the target's voter id and list name.
type MatchDetail struct {
	ID              int64      `json:"id"`
	TargetContactID int64      `json:"target_contact_id"`
	VoterID         string     `json:"voter_id"`
	TargetListID    int64      `json:"target_list_id"`
	TargetListName  string     `json:"target_list_name,omitempty"`
	Confidence      Confidence `json:"match_confidence"`
	CreatedAt       time.Time  `json:"created_at"`
}
