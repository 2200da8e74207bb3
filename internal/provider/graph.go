package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recruitflow/recruitflow/internal/models"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphError is a non-2xx response from the Microsoft Graph API.
type GraphError struct {
	StatusCode int
	Body       string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api: status=%d body=%s", e.StatusCode, e.Body)
}

// GraphProvider adapts the Microsoft Graph REST API to the MailProvider
// interface. There is no Graph SDK in play; requests are plain JSON over
// HTTP with a bearer token.
type GraphProvider struct {
	creds      CredentialSource
	httpClient *http.Client
	baseURL    string
}

func NewGraphProvider(creds CredentialSource, client *http.Client) *GraphProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GraphProvider{creds: creds, httpClient: client, baseURL: graphBaseURL}
}

var _ MailProvider = (*GraphProvider)(nil)

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphAttachment struct {
	ODataType    string `json:"@odata.type,omitempty"`
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes,omitempty"`
}

type graphMessage struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversationId"`
	Subject        string            `json:"subject"`
	From           graphRecipient    `json:"from"`
	Body           graphBody         `json:"body"`
	Attachments    []graphAttachment `json:"attachments"`
}

type graphListResponse struct {
	Value []graphMessage `json:"value"`
}

func (p *GraphProvider) ListCandidateMessages(ctx context.Context, cred *models.OAuthCredential, jobTitle string) ([]MessageRef, error) {
	fresh, err := p.creds.Fresh(ctx, cred)
	if err != nil {
		return nil, err
	}

	// OData string literals escape single quotes by doubling them.
	escaped := strings.ReplaceAll(jobTitle, "'", "''")
	filter := fmt.Sprintf("isRead eq false and hasAttachments eq true and contains(subject, '%s')", escaped)
	query := url.Values{}
	query.Set("$filter", filter)
	query.Set("$select", "id,conversationId,subject")

	var resp graphListResponse
	err = retry(3, 1*time.Second, func() error {
		body, e := p.do(ctx, fresh, http.MethodGet, "/me/mailFolders/inbox/messages?"+query.Encode(), nil)
		if e != nil {
			return e
		}
		return json.Unmarshal(body, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("list graph messages: %w", err)
	}

	refs := make([]MessageRef, 0, len(resp.Value))
	for _, m := range resp.Value {
		refs = append(refs, MessageRef{ID: m.ID, ThreadID: m.ConversationID})
	}
	return refs, nil
}

func (p *GraphProvider) GetMessage(ctx context.Context, cred *models.OAuthCredential, messageID string) (*Message, error) {
	fresh, err := p.creds.Fresh(ctx, cred)
	if err != nil {
		return nil, err
	}

	var raw graphMessage
	err = retry(2, 500*time.Millisecond, func() error {
		body, e := p.do(ctx, fresh, http.MethodGet, "/me/messages/"+url.PathEscape(messageID)+"?$expand=attachments", nil)
		if e != nil {
			return e
		}
		return json.Unmarshal(body, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("get graph message %s: %w", messageID, err)
	}

	msg := &Message{
		ID:          raw.ID,
		ThreadID:    raw.ConversationID,
		Subject:     raw.Subject,
		FromName:    raw.From.EmailAddress.Name,
		FromAddress: raw.From.EmailAddress.Address,
		BodyHTML:    raw.Body.Content,
	}
	for _, att := range raw.Attachments {
		msg.Attachments = append(msg.Attachments, AttachmentRef{
			ID:          att.ID,
			Filename:    att.Name,
			ContentType: att.ContentType,
		})
	}
	return msg, nil
}

func (p *GraphProvider) GetAttachment(ctx context.Context, cred *models.OAuthCredential, messageID, attachmentID string) ([]byte, error) {
	fresh, err := p.creds.Fresh(ctx, cred)
	if err != nil {
		return nil, err
	}

	var att graphAttachment
	err = retry(2, 500*time.Millisecond, func() error {
		path := "/me/messages/" + url.PathEscape(messageID) + "/attachments/" + url.PathEscape(attachmentID)
		body, e := p.do(ctx, fresh, http.MethodGet, path, nil)
		if e != nil {
			return e
		}
		return json.Unmarshal(body, &att)
	})
	if err != nil {
		return nil, fmt.Errorf("get graph attachment: %w", err)
	}
	return base64.StdEncoding.DecodeString(att.ContentBytes)
}

func (p *GraphProvider) MarkRead(ctx context.Context, cred *models.OAuthCredential, messageID string) error {
	fresh, err := p.creds.Fresh(ctx, cred)
	if err != nil {
		return err
	}
	payload := map[string]bool{"isRead": true}
	_, err = p.do(ctx, fresh, http.MethodPatch, "/me/messages/"+url.PathEscape(messageID), payload)
	return err
}

func (p *GraphProvider) SendMail(ctx context.Context, cred *models.OAuthCredential, out OutboundMail) error {
	attachments := make([]graphAttachment, 0, len(out.Attachments))
	for _, att := range out.Attachments {
		attachments = append(attachments, graphAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Filename,
			ContentBytes: base64.StdEncoding.EncodeToString(att.Data),
		})
	}
	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"subject": out.Subject,
			"body": graphBody{
				ContentType: "HTML",
				Content:     out.HTMLBody,
			},
			"toRecipients": []graphRecipient{
				{EmailAddress: graphEmailAddress{Address: out.To}},
			},
			"attachments": attachments,
		},
	}
	fresh, err := p.creds.Fresh(ctx, cred)
	if err != nil {
		return err
	}
	if _, err := p.do(ctx, fresh, http.MethodPost, "/me/sendMail", payload); err != nil {
		return fmt.Errorf("send graph mail: %w", err)
	}
	return nil
}

// do executes one Graph request with an already-fresh credential and
// returns the response body. Callers resolve Fresh once before any retry
// loop; a dead refresh token must surface immediately, never be retried.
func (p *GraphProvider) do(ctx context.Context, fresh *models.OAuthCredential, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+fresh.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &GraphError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
