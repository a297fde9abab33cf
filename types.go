package luckyreel

import "time"

// Winner is an admin-managed entry of the "recent winners" ticker.
type Winner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Amount    string    `json:"amount"`
	Game      string    `json:"game"`
	TimeAgo   string    `json:"timeAgo"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TimeAgoValues are the only labels a winner may carry.
var TimeAgoValues = []string{"2 mins ago", "5 mins ago", "10 mins ago", "15 mins ago", "30 mins ago", "1 hour ago"}

// WinnerInput is the body of winner create requests.
type WinnerInput struct {
	Name    string `json:"name" validate:"required,max=50"`
	Amount  string `json:"amount" validate:"required,max=32"`
	Game    string `json:"game" validate:"required,max=100"`
	TimeAgo string `json:"timeAgo" validate:"required,oneof='2 mins ago' '5 mins ago' '10 mins ago' '15 mins ago' '30 mins ago' '1 hour ago'"`
}

// WinnerPatch is the body of winner update requests; nil fields are kept.
type WinnerPatch struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=50"`
	Amount  *string `json:"amount" validate:"omitempty,min=1,max=32"`
	Game    *string `json:"game" validate:"omitempty,min=1,max=100"`
	TimeAgo *string `json:"timeAgo" validate:"omitempty,oneof='2 mins ago' '5 mins ago' '10 mins ago' '15 mins ago' '30 mins ago' '1 hour ago'"`
	Active  *bool   `json:"active"`
}

// apply returns w with the non-nil fields of p applied.
func (p WinnerPatch) apply(w Winner) Winner {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Amount != nil {
		w.Amount = *p.Amount
	}
	if p.Game != nil {
		w.Game = *p.Game
	}
	if p.TimeAgo != nil {
		w.TimeAgo = *p.TimeAgo
	}
	if p.Active != nil {
		w.Active = *p.Active
	}
	return w
}
