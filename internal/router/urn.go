package router

import "strings"

// Scheme selects the delivery mechanism for an outbound message.
type Scheme string

const (
	SchemeDirect   Scheme = "direct"
	SchemeLivechat Scheme = "livechat"
)

// URN addresses one chat endpoint as scheme:identifier. For direct the
// identifier is a username, for livechat a visitor token.
type URN struct {
	Scheme Scheme
	ID     string
}

func (u URN) String() string {
	return string(u.Scheme) + ":" + u.ID
}

// ParseURN splits raw at the first colon. Identifiers may themselves contain
// colons, so only the first one delimits.
func ParseURN(raw string) (URN, error) {
	scheme, id, found := strings.Cut(raw, ":")
	if !found {
		return URN{}, &AddressingError{URN: raw, Reason: "missing scheme separator"}
	}
	if scheme == "" {
		return URN{}, &AddressingError{URN: raw, Reason: "empty scheme"}
	}
	if id == "" {
		return URN{}, &AddressingError{URN: raw, Reason: "empty identifier"}
	}
	return URN{Scheme: Scheme(scheme), ID: id}, nil
}
