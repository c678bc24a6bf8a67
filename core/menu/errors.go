package menu

// Validation errors abort Open before any message is sent. They all expose a
// stable Code used for err_code derivation in handler summary logs.

// PagesError reports a page-list cardinality violation: an empty list, or the
// wrong count for fixed-shape menus such as polls. Not retryable; the caller
// must fix menu construction.
type PagesError struct {
	Msg string
}

// Error implements the error interface.
func (e *PagesError) Error() string { return e.Msg }

// Code returns a stable identifier for structured logs.
func (e *PagesError) Code() string { return "PAGES_INVALID" }

// ButtonsError reports an invalid or insufficient button configuration.
type ButtonsError struct {
	Msg string
}

// Error implements the error interface.
func (e *ButtonsError) Error() string { return e.Msg }

// Code returns a stable identifier for structured logs.
func (e *ButtonsError) Code() string { return "BUTTONS_INVALID" }

// EventError reports an invalid callback combination, such as a poll voting
// page defining a cancel callback.
type EventError struct {
	Msg string
}

// Error implements the error interface.
func (e *EventError) Error() string { return e.Msg }

// Code returns a stable identifier for structured logs.
func (e *EventError) Code() string { return "EVENT_INVALID" }
