package attachments

import (
	"strings"

	"github.com/flowbridge/flowbridge/internal/events"
)

const (
	KindImage       = "image"
	KindAudio       = "audio"
	KindVideo       = "video"
	KindDocument    = "document"
	KindDocumentPDF = "document/pdf"
)

// Descriptor is the transport-safe representation of one attachment in an
// outbound webhook payload.
type Descriptor struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Classify derives the media kind from the attachment's kind-specific
// metadata, image before video before audio, defaulting to document.
func Classify(att events.Attachment) string {
	switch {
	case att.ImageType != "":
		return KindImage
	case att.VideoType != "":
		return KindVideo
	case att.AudioType != "":
		return KindAudio
	default:
		return KindDocument
	}
}

// ResolveURL joins the chat server's public base URL with the attachment's
// relative link.
func ResolveURL(serverBaseURL string, att events.Attachment) string {
	base := strings.TrimRight(serverBaseURL, "/")
	link := att.Link
	if link != "" && !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return base + link
}

// BuildDescriptors resolves a message's attachments for payload construction.
// Documents are refined to document/pdf by URL suffix; non-pdf documents are
// excluded entirely. Returns nil when nothing survives, so callers can keep
// the payload sparse.
func BuildDescriptors(serverBaseURL string, atts []events.Attachment) []Descriptor {
	if len(atts) == 0 {
		return nil
	}
	descriptors := make([]Descriptor, 0, len(atts))
	for _, att := range atts {
		kind := Classify(att)
		resolved := ResolveURL(serverBaseURL, att)
		if kind == KindDocument {
			if !strings.HasSuffix(strings.ToLower(resolved), ".pdf") {
				continue
			}
			kind = KindDocumentPDF
		}
		descriptors = append(descriptors, Descriptor{Type: kind, URL: resolved})
	}
	if len(descriptors) == 0 {
		return nil
	}
	return descriptors
}
