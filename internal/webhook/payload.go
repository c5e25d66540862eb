package webhook

import (
	"fmt"

	"github.com/flowbridge/flowbridge/internal/attachments"
)

// ContactURNScheme prefixes visitor URNs on the flow-automation side.
const ContactURNScheme = "rocketchat:livechat"

type UserPayload struct {
	URN      string `json:"urn"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// MessagePayload is the message-forwarding body POSTed to a bot's callback
// URL. Text and Attachments are present only when non-empty; the payload
// shape is sparse, never padded with nulls.
type MessagePayload struct {
	User        UserPayload              `json:"user"`
	Text        string                   `json:"text,omitempty"`
	Attachments []attachments.Descriptor `json:"attachments,omitempty"`
}

// NewMessagePayload builds a forwarding payload. urnID is the scheme-local
// identifier: the username for direct chats, the visitor token for livechat.
func NewMessagePayload(scheme, urnID, username, fullName, text string, atts []attachments.Descriptor) MessagePayload {
	return MessagePayload{
		User: UserPayload{
			URN:      scheme + ":" + urnID,
			Username: username,
			FullName: fullName,
		},
		Text:        text,
		Attachments: atts,
	}
}

// FlowStartPayload triggers a flow run for the given contact URNs, carrying
// the raw event context as opaque extra data.
type FlowStartPayload struct {
	Flow  string   `json:"flow"`
	URNs  []string `json:"urns"`
	Extra any      `json:"extra"`
}

// ContactFieldsPayload updates contact profile fields on the flows side.
type ContactFieldsPayload struct {
	Fields map[string]string `json:"fields"`
}

// ContactURN formats a visitor token as a flows-side contact URN.
func ContactURN(visitorToken string) string {
	return fmt.Sprintf("%s:%s", ContactURNScheme, visitorToken)
}
