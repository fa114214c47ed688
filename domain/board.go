package domain

// Board is the top-level collaborative workspace. The owner is implicitly a
// member and never appears in Members.
type Board struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	OwnerID     string   `json:"ownerId"`
	Members     []string `json:"members"`
	CardCount   int      `json:"cardCount"`
	MemberCount int      `json:"memberCount"`
}

// HasAccess reports whether the given user owns the board or is a member.
func (b *Board) HasAccess(userID string) bool {
	if b.OwnerID == userID {
		return true
	}
	for _, m := range b.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// BoardDraft carries the caller-supplied fields for a new board.
type BoardDraft struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
