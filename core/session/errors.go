package session

import "fmt"

// DuplicateError reports that a slot is already occupied, either by a live
// session under the same key or because an occupancy cap is exhausted.
// Menus treat it as "cannot open": logged, never surfaced to the end user.
type DuplicateError struct {
	Key Key
	// Cap names the exhausted occupancy cap ("user", "channel", "guild");
	// empty for a plain duplicate key.
	Cap string
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	if e.Cap != "" {
		return fmt.Sprintf("session: per-%s cap reached for user [%d] in channel [%d]", e.Cap, e.Key.UserID, e.Key.ChannelID)
	}
	return fmt.Sprintf("session: duplicate session in channel [%d] for user [%d]", e.Key.ChannelID, e.Key.UserID)
}

// Code returns a stable identifier for log err_code derivation.
func (e *DuplicateError) Code() string { return "SESSION_DUPLICATE" }
