package domain

// Card is an ordered column within a board. Order is a zero-based dense
// integer among the board's cards.
type Card struct {
	ID          string `json:"id"`
	BoardID     string `json:"boardId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	TaskCount   int    `json:"taskCount"`
	CreatedBy   string `json:"createdBy,omitempty"`

	// Tasks is populated only on the board view read path, sorted by order.
	Tasks []Task `json:"tasks,omitempty"`
}

// CardDraft carries the caller-supplied fields for a new card.
type CardDraft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CardPatch holds optional card fields for partial updates.
type CardPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}
