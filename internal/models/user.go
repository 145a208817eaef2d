package models

import "time"

// User is a person's profile. FamilyID and PartnerID are nil until pairing.
type User struct {
	ID          string    `json:"id"`
	FamilyID    *string   `json:"family_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PartnerID   *string   `json:"partner_id"`
	AvatarColor string    `json:"avatar_color"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasFamily reports whether the user belongs to a family
func (u *User) HasFamily() bool {
	return u.FamilyID != nil && *u.FamilyID != ""
}

// InFamily reports whether the user belongs to the given family
func (u *User) InFamily(familyID string) bool {
	return u.HasFamily() && *u.FamilyID == familyID
}

// AvatarColors is the palette new profiles draw from
var AvatarColors = []string{
	"#7C4DFF", "#FF6B6B", "#4ECDC4", "#FFD54F", "#FF8A65",
	"#BA68C8", "#4FC3F7", "#81C784", "#F06292", "#9575CD",
}
