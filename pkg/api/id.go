package api

import "github.com/google/uuid"

// NewStreamID generates the identifier shared by every chunk of one stream.
func NewStreamID() string {
	return uuid.NewString()
}

// ValidateStreamID checks whether the given string is a canonical UUID as
// produced by NewStreamID.
func ValidateStreamID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
