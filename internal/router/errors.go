package router

import "fmt"

// AddressingError marks a URN that cannot name any deliverable endpoint.
type AddressingError struct {
	URN    string
	Reason string
}

func (e *AddressingError) Error() string {
	return fmt.Sprintf("cannot address %q: %s", e.URN, e.Reason)
}

// NotFoundError marks a well-formed reference to an entity the chat platform
// does not know. Kind is "user", "bot" or "visitor".
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}
