package rocketchat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowbridge/flowbridge/internal/attachments"
)

// SendDirectMessage delivers text and attachments into the direct room
// between the authenticated bot account and username, creating the room on
// first contact. Returns the id of the posted message.
func (c *Client) SendDirectMessage(ctx context.Context, username, text string, atts []Attachment) (string, error) {
	room, err := c.CreateDirectRoom(ctx, username)
	if err != nil {
		return "", err
	}
	return c.sendToRoom(ctx, room.ID, text, atts)
}

// SendLivechatMessage delivers text and attachments into the visitor's open
// livechat room. Returns the id of the posted message.
func (c *Client) SendLivechatMessage(ctx context.Context, visitorToken, text string, atts []Attachment) (string, error) {
	room, err := c.GetLivechatRoom(ctx, visitorToken)
	if err != nil {
		return "", err
	}
	return c.sendToRoom(ctx, room.ID, text, atts)
}

// sendToRoom materializes each attachment on the chat server, then posts one
// message carrying the text and the uploaded media. Attachments whose source
// cannot be fetched are skipped; the rest of the message still goes out.
func (c *Client) sendToRoom(ctx context.Context, roomID, text string, atts []Attachment) (string, error) {
	var inline []MessageAttachment
	for _, att := range atts {
		upload, err := attachments.FetchUpload(ctx, c.http, att.URL)
		if err != nil {
			return "", err
		}
		if upload == nil {
			c.logger.Warn("attachment source unavailable, skipping",
				slog.String("room_id", roomID),
				slog.String("url", att.URL))
			continue
		}

		fileURL, err := c.UploadFile(ctx, roomID, upload.Filename, upload.ContentType, upload.Data)
		if err != nil {
			return "", err
		}

		switch mediaKind(att.Type) {
		case "image":
			inline = append(inline, MessageAttachment{ImageURL: fileURL})
		case "audio":
			inline = append(inline, MessageAttachment{AudioURL: fileURL})
		case "video":
			inline = append(inline, MessageAttachment{VideoURL: fileURL})
		default:
			if text != "" {
				text += "\n"
			}
			text += fileURL
		}
	}
	return c.PostMessage(ctx, roomID, text, inline)
}

// mediaKind reduces a classified attachment type to its media family,
// "document/pdf" to "document".
func mediaKind(attachmentType string) string {
	if idx := strings.IndexByte(attachmentType, '/'); idx >= 0 {
		return attachmentType[:idx]
	}
	return attachmentType
}
