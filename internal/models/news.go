package models

import "time"

// Category is the closed set of labels assigned to a record.
type Category string

const (
	CategoryActive     Category = "active"
	CategoryContained  Category = "contained"
	CategoryPrevention Category = "prevention"

	// CategoryAll is the query sentinel meaning "no category filter".
	CategoryAll = "all"
)

// Categories lists every valid category in declaration order.
var Categories = []Category{CategoryActive, CategoryContained, CategoryPrevention}

// Valid reports whether c belongs to the enumeration.
func (c Category) Valid() bool {
	switch c {
	case CategoryActive, CategoryContained, CategoryPrevention:
		return true
	}
	return false
}

// NewsRecord is a normalized news item as cached and served by the API.
type NewsRecord struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Source   string    `json:"source"`
	Date     time.Time `json:"date"`
	Content  string    `json:"content"`
	ImageURL string    `json:"imageUrl"`
	Location string    `json:"location"`
	Category Category  `json:"category"`
	URL      string    `json:"url"`
}

// EventNewAlert names the broadcast emitted for every newly seen record.
const EventNewAlert = "new alert"

// AlertEvent is the payload published to the alert stream.
type AlertEvent struct {
	Event     string     `json:"event"`
	Record    NewsRecord `json:"record"`
	EmittedAt time.Time  `json:"emittedAt"`
}

// ArchivedAlert is the document stored in Elasticsearch.
type ArchivedAlert struct {
	NewsRecord
	Keywords   []string  `json:"keywords"`
	ArchivedAt time.Time `json:"archivedAt"`
}
