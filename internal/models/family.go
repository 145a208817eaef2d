package models

import "time"

// Family is the shared space of two partners, joined through its invite code
type Family struct {
	ID         string    `json:"id"`
	InviteCode string    `json:"invite_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaxFamilyMembers is the size of a complete family
const MaxFamilyMembers = 2

// FamilyWithMembers combines a family with its member profiles
type FamilyWithMembers struct {
	Family
	Members []User `json:"members"`
}

// IsComplete reports whether no one else can join
func (f *FamilyWithMembers) IsComplete() bool {
	return len(f.Members) >= MaxFamilyMembers
}

// Member returns the member with the given id, or nil
func (f *FamilyWithMembers) Member(userID string) *User {
	for i := range f.Members {
		if f.Members[i].ID == userID {
			return &f.Members[i]
		}
	}
	return nil
}
