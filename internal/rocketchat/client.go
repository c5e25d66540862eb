package rocketchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// Client is a thin wrapper over the chat server's REST API, authenticated as
// the bridge's admin user.
type Client struct {
	baseURL   string
	userID    string
	authToken string
	http      *http.Client
	logger    *slog.Logger
}

func NewClient(log *slog.Logger, httpClient *http.Client, baseURL, userID, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		userID:    userID,
		authToken: authToken,
		http:      httpClient,
		logger:    log.With(slog.String("service", "rocketchat")),
	}
}

// BaseURL returns the chat server's public root, used to resolve relative
// attachment links.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Token", c.authToken)
	req.Header.Set("X-User-Id", c.userID)
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// GetUser resolves a platform user by username.
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	path := "/api/v1/users.info?username=" + url.QueryEscape(username)
	status, err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("users.info returned status %d", status)
	}
	return &out.User, nil
}

// GetVisitor resolves a livechat visitor by token.
func (c *Client) GetVisitor(ctx context.Context, token string) (*Visitor, error) {
	var out struct {
		Visitor Visitor `json:"visitor"`
	}
	path := "/api/v1/livechat/visitor/" + url.PathEscape(token)
	status, err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: token %s", ErrVisitorNotFound, token)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("livechat/visitor returned status %d", status)
	}
	if out.Visitor.Token == "" {
		return nil, fmt.Errorf("%w: token %s", ErrVisitorNotFound, token)
	}
	return &out.Visitor, nil
}

// CreateDirectRoom opens, or returns the existing, direct room between the
// authenticated user and username.
func (c *Client) CreateDirectRoom(ctx context.Context, username string) (*Room, error) {
	var out struct {
		Room Room `json:"room"`
	}
	payload := map[string]string{"username": username}
	status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/im.create", payload, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("im.create returned status %d", status)
	}
	if out.Room.ID == "" {
		return nil, ErrRoomNotFound
	}
	return &out.Room, nil
}

// GetLivechatRoom returns the visitor's open livechat room. Messages go to
// the visitor's current conversation, never a closed one.
func (c *Client) GetLivechatRoom(ctx context.Context, visitorToken string) (*Room, error) {
	var out struct {
		Room Room `json:"room"`
	}
	path := "/api/v1/livechat/room?token=" + url.QueryEscape(visitorToken)
	status, err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("livechat/room returned status %d", status)
	}
	if out.Room.ID == "" {
		return nil, ErrRoomNotFound
	}
	return &out.Room, nil
}

// PostMessage sends a text message, with optional inline media attachments,
// into roomID and returns the created message id.
func (c *Client) PostMessage(ctx context.Context, roomID, text string, atts []MessageAttachment) (string, error) {
	var out struct {
		Message struct {
			ID string `json:"_id"`
		} `json:"message"`
	}
	payload := map[string]any{
		"roomId": roomID,
		"text":   text,
	}
	if len(atts) > 0 {
		payload["attachments"] = atts
	}
	status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/chat.postMessage", payload, &out)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("chat.postMessage returned status %d", status)
	}
	return out.Message.ID, nil
}

// UploadFile stores a file in roomID and returns its server-relative URL.
func (c *Client) UploadFile(ctx context.Context, roomID, filename, contentType string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/rooms.upload/"+url.PathEscape(roomID), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("rooms.upload returned status %d", resp.StatusCode)
	}

	var out struct {
		Message struct {
			File struct {
				ID   string `json:"_id"`
				Name string `json:"name"`
			} `json:"file"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode rooms.upload response: %w", err)
	}
	if out.Message.File.ID == "" {
		return "", fmt.Errorf("rooms.upload response missing file reference")
	}
	return fmt.Sprintf("%s/file-upload/%s/%s", c.baseURL, out.Message.File.ID, url.PathEscape(out.Message.File.Name)), nil
}
