package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatline/models"
	tokenstore "chatline/pkg/token"
)

// Client talks to the messenger backend's REST surface. All calls attach the
// bearer token from the store when one is set.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   *tokenstore.Store
	clientID string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// FileUpload is the backend's answer to a successful upload.
type FileUpload struct {
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

func NewClient(baseURL string, tokens *tokenstore.Store) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		tokens:   tokens,
		clientID: uuid.NewString(),
	}
}

// Login exchanges credentials for a bearer token and installs it in the
// token store. The backend expects an OAuth2 password form.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Client-ID", c.clientID)

	var tok tokenResponse
	if err := c.do(req, &tok); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := c.tokens.Set(tok.AccessToken); err != nil {
		return fmt.Errorf("login: bad token: %w", err)
	}
	log.Printf("[api] logged in as %s (uid=%d)", username, c.tokens.UserID())
	return nil
}

// Register creates an account. The caller still needs to Login afterwards.
func (c *Client) Register(ctx context.Context, username, password string) (models.User, error) {
	var u models.User
	err := c.postJSON(ctx, "/register", map[string]string{
		"username": username,
		"password": password,
	}, &u)
	if err != nil {
		return models.User{}, fmt.Errorf("register: %w", err)
	}
	return u, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var u models.User
	if err := c.getJSON(ctx, "/me", nil, &u); err != nil {
		return models.User{}, fmt.Errorf("me: %w", err)
	}
	return u, nil
}

// UpdateProfile sets display name and/or about text; empty strings are left
// unchanged server-side.
func (c *Client) UpdateProfile(ctx context.Context, displayName, about string) error {
	q := url.Values{}
	if displayName != "" {
		q.Set("display_name", displayName)
	}
	if about != "" {
		q.Set("about", about)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/profile?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// SearchUsers returns users whose username starts with query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	var users []models.User
	q := url.Values{"query": {query}}
	if err := c.getJSON(ctx, "/users/search", q, &users); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// SendRequest asks another user to open a direct conversation.
func (c *Client) SendRequest(ctx context.Context, receiverUsername string) (models.ChatRequest, error) {
	var cr models.ChatRequest
	err := c.postJSON(ctx, "/requests/send", map[string]string{
		"receiver_username": receiverUsername,
	}, &cr)
	if err != nil {
		return models.ChatRequest{}, fmt.Errorf("send request: %w", err)
	}
	return cr, nil
}

// PendingRequests lists chat requests awaiting the current user's answer.
func (c *Client) PendingRequests(ctx context.Context) ([]models.ChatRequest, error) {
	var reqs []models.ChatRequest
	if err := c.getJSON(ctx, "/requests/pending", nil, &reqs); err != nil {
		return nil, fmt.Errorf("pending requests: %w", err)
	}
	return reqs, nil
}

// RespondRequest accepts or rejects a pending chat request.
func (c *Client) RespondRequest(ctx context.Context, requestID int64, accept bool) error {
	path := fmt.Sprintf("/requests/%d/respond?accept=%t", requestID, accept)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("respond request %d: %w", requestID, err)
	}
	return nil
}

// Rooms lists the user's conversations, most recently active first.
func (c *Client) Rooms(ctx context.Context) ([]models.Conversation, error) {
	var rooms []models.Conversation
	if err := c.getJSON(ctx, "/chat/rooms", nil, &rooms); err != nil {
		return nil, fmt.Errorf("rooms: %w", err)
	}
	return rooms, nil
}

// RoomMessages fetches the persisted transcript page for a room, oldest
// first. beforeID = 0 fetches the newest page.
func (c *Client) RoomMessages(ctx context.Context, roomID int64, limit int, beforeID int64) ([]models.Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if beforeID > 0 {
		q.Set("before_id", strconv.FormatInt(beforeID, 10))
	}
	var msgs []models.Message
	path := fmt.Sprintf("/chat/rooms/%d/messages", roomID)
	if err := c.getJSON(ctx, path, q, &msgs); err != nil {
		return nil, fmt.Errorf("room %d messages: %w", roomID, err)
	}
	return msgs, nil
}

// CreateGroup opens a group conversation with the given members.
func (c *Client) CreateGroup(ctx context.Context, name string, participantIDs []int64) error {
	err := c.postJSON(ctx, "/groups/create", map[string]any{
		"name":            name,
		"participant_ids": participantIDs,
	}, nil)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Upload stores an attachment server-side and returns its served location and
// classified type (image, video, audio or document). The caller sends the
// returned URL onward as message content.
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (FileUpload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return FileUpload{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return FileUpload{}, fmt.Errorf("upload: read %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return FileUpload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return FileUpload{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out FileUpload
	if err := c.do(req, &out); err != nil {
		return FileUpload{}, fmt.Errorf("upload %s: %w", fileName, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-ID", c.clientID)
	if tok, err := c.tokens.Token(); err == nil {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}
	return nil
}
