package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func newTestClient(url string, kind Kind) *ChatClient {
	return NewChatClient(ClientConfig{BaseURL: url + "/v1/", APIKey: "test-key", Model: "gpt-4o", Timeout: 5 * time.Second}, kind)
}

func TestChatClient_GenerateArticle(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, completion("# Planning for Retirement\n\n## Start Early\n\nCompounding **matters** over decades."), &seen)
	defer srv.Close()

	res, err := newTestClient(srv.URL, KindText).Generate(context.Background(), Request{
		Topic:       "retirement",
		ContentType: domain.ContentTypeBlog,
		LengthClass: LengthShort,
		Action:      domain.ActionGenerate,
	})
	require.NoError(t, err)
	assert.Equal(t, "Planning for Retirement", res.Title)
	assert.Equal(t, "<h2>Start Early</h2>\n<p>Compounding <strong>matters</strong> over decades.</p>", res.Body)
	assert.Equal(t, DefaultDisclaimer, res.Disclaimers)

	assert.Equal(t, "gpt-4o", seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[1].Content, "300-500 words")
}

func TestChatClient_RewriteReturnsPlainPassage(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, completion("  Markets may rise or fall.  "), &seen)
	defer srv.Close()

	res, err := newTestClient(srv.URL, KindText).Generate(context.Background(), Request{
		Action:         domain.ActionRewrite,
		RewriteMode:    domain.RewriteModeFixCompliance,
		ComplianceNote: "no guarantees",
		CurrentContent: "Markets always rise.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Markets may rise or fall.", res.Body)
	assert.Empty(t, res.Title)
	assert.Contains(t, seen.Messages[1].Content, `"no guarantees"`)
	assert.Contains(t, seen.Messages[1].Content, "Return ONLY the rewritten passage")
}

func TestChatClient_ImageUsesPosterStyle(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, completion("Bold navy poster with a rising line."), &seen)
	defer srv.Close()

	res, err := newTestClient(srv.URL, KindImage).Generate(context.Background(), Request{
		Topic:  "market volatility",
		Action: domain.ActionGenerate,
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>Bold navy poster with a rising line.</p>", res.Body)
	assert.True(t, strings.HasPrefix(seen.Messages[0].Content, "You are a creative director"))
}

func TestChatClient_ProviderErrorMessage(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL, KindText).Generate(context.Background(), Request{Topic: "x"})
	require.Error(t, err)
	assert.Equal(t, "Rate limit reached", err.Error())
	assert.ErrorIs(t, err, common.ErrGenerationFailed)
}

func TestChatClient_NonJSONError(t *testing.T) {
	srv := chatServer(t, http.StatusBadGateway, "upstream down", nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL, KindText).Generate(context.Background(), Request{Topic: "x"})
	require.Error(t, err)
	assert.Equal(t, "generation API error (502): upstream down", err.Error())
}

func TestChatClient_LongErrorKeepsRunesWhole(t *testing.T) {
	// 199 ASCII bytes then a two-byte rune straddling the cut
	body := strings.Repeat("x", 199) + "é" + strings.Repeat("y", 50)
	srv := chatServer(t, http.StatusBadGateway, body, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL, KindText).Generate(context.Background(), Request{Topic: "x"})
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Equal(t, "generation API error (502): "+strings.Repeat("x", 199)+"...", err.Error())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	assert.Equal(t, "...", truncate("日本", 2))
	assert.Equal(t, "日...", truncate("日本", 4))
}

func TestChatClient_EmptyChoices(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"choices":[]}`, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL, KindText).Generate(context.Background(), Request{Topic: "x"})
	assert.ErrorIs(t, err, common.ErrGenerationFailed)
}
