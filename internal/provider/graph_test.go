package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
	"github.com/stretchr/testify/require"
)

// staticCreds hands back the credential untouched; token freshness is the
// credentials package's problem, not this one's.
type staticCreds struct{}

func (staticCreds) Fresh(ctx context.Context, cred *models.OAuthCredential) (*models.OAuthCredential, error) {
	return cred, nil
}

func testCred() *models.OAuthCredential {
	return &models.OAuthCredential{
		UserID:      1,
		Provider:    models.ProviderMicrosoft,
		Email:       "recruiter@example.com",
		AccessToken: "test-access-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func newTestGraph(handler http.HandlerFunc) (*GraphProvider, *httptest.Server) {
	srv := httptest.NewServer(handler)
	p := NewGraphProvider(staticCreds{}, srv.Client())
	p.baseURL = srv.URL
	return p, srv
}

func TestGraphList_FilterAndAuth(t *testing.T) {
	var gotFilter, gotSelect, gotAuth string
	p, srv := newTestGraph(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("$filter")
		gotSelect = r.URL.Query().Get("$select")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(graphListResponse{Value: []graphMessage{
			{ID: "m1", ConversationID: "c1", Subject: "Application for Backend Engineer"},
			{ID: "m2", ConversationID: "c2", Subject: "Re: Backend Engineer"},
		}})
	})
	defer srv.Close()

	refs, err := p.ListCandidateMessages(context.Background(), testCred(), "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, []MessageRef{{ID: "m1", ThreadID: "c1"}, {ID: "m2", ThreadID: "c2"}}, refs)
	require.Equal(t, "isRead eq false and hasAttachments eq true and contains(subject, 'Backend Engineer')", gotFilter)
	require.Equal(t, "id,conversationId,subject", gotSelect)
	require.Equal(t, "Bearer test-access-token", gotAuth)
}

func TestGraphList_EscapesSingleQuotes(t *testing.T) {
	var gotFilter string
	p, srv := newTestGraph(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("$filter")
		json.NewEncoder(w).Encode(graphListResponse{})
	})
	defer srv.Close()

	_, err := p.ListCandidateMessages(context.Background(), testCred(), "O'Brien's Deputy")
	require.NoError(t, err)
	require.Contains(t, gotFilter, "contains(subject, 'O''Brien''s Deputy')")
}

func TestGraphGetMessage_ExpandsAttachments(t *testing.T) {
	p, srv := newTestGraph(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "attachments", r.URL.Query().Get("$expand"))
		json.NewEncoder(w).Encode(graphMessage{
			ID:             "m1",
			ConversationID: "c1",
			Subject:        "Application for Backend Engineer",
			From:           graphRecipient{EmailAddress: graphEmailAddress{Name: "Jane Doe", Address: "jane@example.com"}},
			Body:           graphBody{ContentType: "html", Content: "<p>hello</p>"},
			Attachments: []graphAttachment{
				{ID: "a1", Name: "resume.pdf", ContentType: "application/pdf"},
			},
		})
	})
	defer srv.Close()

	msg, err := p.GetMessage(context.Background(), testCred(), "m1")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", msg.FromName)
	require.Equal(t, "jane@example.com", msg.FromAddress)
	require.Equal(t, "<p>hello</p>", msg.BodyHTML)
	require.Len(t, msg.Attachments, 1)
	require.Equal(t, "resume.pdf", msg.Attachments[0].Filename)
}

func TestGraphGetAttachment_DecodesContentBytes(t *testing.T) {
	payload := []byte("%PDF-1.4 resume bytes")
	p, srv := newTestGraph(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(graphAttachment{
			ID:           "a1",
			Name:         "resume.pdf",
			ContentBytes: base64.StdEncoding.EncodeToString(payload),
		})
	})
	defer srv.Close()

	data, err := p.GetAttachment(context.Background(), testCred(), "m1", "a1")
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestGraphMarkRead_PatchesIsRead(t *testing.T) {
	var gotMethod string
	var gotBody map[string]bool
	p, srv := newTestGraph(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	})
	defer srv.Close()

	require.NoError(t, p.MarkRead(context.Background(), testCred(), "m1"))
	require.Equal(t, http.MethodPatch, gotMethod)
	require.Equal(t, map[string]bool{"isRead": true}, gotBody)
}

func TestGraphSendMail_Payload(t *testing.T) {
	var got struct {
		Message struct {
			Subject      string            `json:"subject"`
			Body         graphBody         `json:"body"`
			ToRecipients []graphRecipient  `json:"toRecipients"`
			Attachments  []graphAttachment `json:"attachments"`
		} `json:"message"`
	}
	p, srv := newTestGraph(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/sendMail", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	})
	defer srv.Close()

	err := p.SendMail(context.Background(), testCred(), OutboundMail{
		To:       "recruiter@example.com",
		Subject:  "Shortlisted Applications for Backend Engineer",
		HTMLBody: "<h2>Digest</h2>",
		Attachments: []OutboundAttachment{
			{Filename: "resume.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Shortlisted Applications for Backend Engineer", got.Message.Subject)
	require.Equal(t, "HTML", got.Message.Body.ContentType)
	require.Equal(t, "recruiter@example.com", got.Message.ToRecipients[0].EmailAddress.Address)
	require.Len(t, got.Message.Attachments, 1)
	require.Equal(t, "#microsoft.graph.fileAttachment", got.Message.Attachments[0].ODataType)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("pdf")), got.Message.Attachments[0].ContentBytes)
}

// deadCreds simulates a rejected refresh token on every freshness check.
type deadCreds struct {
	calls int
}

func (c *deadCreds) Fresh(ctx context.Context, cred *models.OAuthCredential) (*models.OAuthCredential, error) {
	c.calls++
	return nil, domain.ErrReauthRequired
}

func TestGraphList_ReauthSurfacesWithoutRetry(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	creds := &deadCreds{}
	p := NewGraphProvider(creds, srv.Client())
	p.baseURL = srv.URL

	start := time.Now()
	_, err := p.ListCandidateMessages(context.Background(), testCred(), "Backend Engineer")
	require.ErrorIs(t, err, domain.ErrReauthRequired)
	require.Equal(t, 1, creds.calls)
	require.Zero(t, requests)
	require.Less(t, time.Since(start), time.Second)
}

func TestGraphDo_NonSuccessStatus(t *testing.T) {
	p, srv := newTestGraph(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":"ErrorAccessDenied"}}`))
	})
	defer srv.Close()

	err := p.MarkRead(context.Background(), testCred(), "m1")
	var gErr *GraphError
	require.ErrorAs(t, err, &gErr)
	require.Equal(t, http.StatusForbidden, gErr.StatusCode)
	require.Contains(t, gErr.Body, "ErrorAccessDenied")
}
