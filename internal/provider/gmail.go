package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/recruitflow/recruitflow/internal/models"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailProvider adapts the Gmail REST API to the MailProvider interface.
type GmailProvider struct {
	creds CredentialSource
	opts  []option.ClientOption // extra client options; tests point these at a local server
}

func NewGmailProvider(creds CredentialSource) *GmailProvider {
	return &GmailProvider{creds: creds}
}

var _ MailProvider = (*GmailProvider)(nil)

// service builds a Gmail client scoped to this one credential for this one
// call. Nothing is cached process-wide, so two users' tokens can never
// collide in a shared field.
func (p *GmailProvider) service(ctx context.Context, cred *models.OAuthCredential) (*gmail.Service, error) {
	fresh, err := p.creds.Fresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	return p.serviceFor(ctx, fresh)
}

// serviceFor builds a client around a credential that is already fresh.
func (p *GmailProvider) serviceFor(ctx context.Context, fresh *models.OAuthCredential) (*gmail.Service, error) {
	tok := &oauth2.Token{AccessToken: fresh.AccessToken, Expiry: fresh.ExpiresAt}
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}, p.opts...)
	return gmail.NewService(ctx, opts...)
}

func (p *GmailProvider) ListCandidateMessages(ctx context.Context, cred *models.OAuthCredential, jobTitle string) ([]MessageRef, error) {
	srv, err := p.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	// Gmail search is case-insensitive; quoting keeps multi-word titles
	// together. An embedded double quote would end the phrase early, so
	// strip them.
	q := fmt.Sprintf(`subject:"%s" has:attachment`, strings.ReplaceAll(jobTitle, `"`, ""))

	var resp *gmail.ListMessagesResponse
	err = retry(3, 1*time.Second, func() error {
		var e error
		resp, e = srv.Users.Messages.List("me").Q(q).LabelIds("UNREAD").Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("list gmail messages: %w", err)
	}

	refs := make([]MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

func (p *GmailProvider) GetMessage(ctx context.Context, cred *models.OAuthCredential, messageID string) (*Message, error) {
	srv, err := p.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var raw *gmail.Message
	err = retry(2, 500*time.Millisecond, func() error {
		var e error
		raw, e = srv.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("get gmail message %s: %w", messageID, err)
	}

	msg := &Message{ID: raw.Id, ThreadID: raw.ThreadId}
	for _, h := range raw.Payload.Headers {
		switch h.Name {
		case "Subject":
			msg.Subject = h.Value
		case "From":
			msg.FromName, msg.FromAddress = parseFrom(h.Value)
		}
	}
	msg.BodyHTML = extractBody(raw.Payload)
	collectAttachments(raw.Payload, &msg.Attachments)
	return msg, nil
}

func (p *GmailProvider) GetAttachment(ctx context.Context, cred *models.OAuthCredential, messageID, attachmentID string) ([]byte, error) {
	srv, err := p.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var body *gmail.MessagePartBody
	err = retry(2, 500*time.Millisecond, func() error {
		var e error
		body, e = srv.Users.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("get gmail attachment: %w", err)
	}
	return decodeBase64URL(body.Data)
}

func (p *GmailProvider) MarkRead(ctx context.Context, cred *models.OAuthCredential, messageID string) error {
	srv, err := p.service(ctx, cred)
	if err != nil {
		return err
	}
	_, err = srv.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

func (p *GmailProvider) SendMail(ctx context.Context, cred *models.OAuthCredential, out OutboundMail) error {
	fresh, err := p.creds.Fresh(ctx, cred)
	if err != nil {
		return err
	}
	srv, err := p.serviceFor(ctx, fresh)
	if err != nil {
		return err
	}

	rfc822, err := buildMIME(fresh.Email, out)
	if err != nil {
		return fmt.Errorf("build mime message: %w", err)
	}
	_, err = srv.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(rfc822),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send gmail message: %w", err)
	}
	return nil
}

// buildMIME assembles the raw RFC 2822 multipart message the Gmail send
// endpoint requires.
func buildMIME(from string, out OutboundMail) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", out.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", out.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=UTF-8")
	part, err := w.CreatePart(htmlHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(out.HTMLBody)); err != nil {
		return nil, err
	}

	for _, att := range out.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", contentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(base64.StdEncoding.EncodeToString(att.Data))); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// extractBody walks the MIME tree preferring HTML over plain text. Bodies
// nest under multipart/alternative, so a flat scan of the top-level parts
// misses them.
func extractBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	var plain, html string
	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p.Body != nil && p.Body.Data != "" && p.Filename == "" {
			data, err := decodeBase64URL(p.Body.Data)
			if err == nil {
				switch p.MimeType {
				case "text/html":
					if html == "" {
						html = string(data)
					}
				case "text/plain":
					if plain == "" {
						plain = string(data)
					}
				}
			}
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(part)
	if html != "" {
		return html
	}
	return plain
}

func collectAttachments(part *gmail.MessagePart, out *[]AttachmentRef) {
	if part == nil {
		return
	}
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		*out = append(*out, AttachmentRef{
			ID:          part.Body.AttachmentId,
			Filename:    part.Filename,
			ContentType: part.MimeType,
		})
	}
	for _, child := range part.Parts {
		collectAttachments(child, out)
	}
}

// parseFrom splits a "Display Name <addr@host>" header.
func parseFrom(raw string) (name, address string) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return strings.TrimSpace(raw), strings.TrimSpace(raw)
	}
	name = addr.Name
	if name == "" {
		name = addr.Address
	}
	return name, addr.Address
}

// decodeBase64URL handles Gmail's URL-safe base64, with or without padding.
func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
