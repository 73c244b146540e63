package domain

// Profile is the display metadata the roster shows for one participant,
// as returned by GET /api/users/profile/{id}/.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Photo       string `json:"photo"`
}
