// Package publisher performs the external side effect of publishing an
// approved content version.
package publisher

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"github.com/JxWayne890/complyflow-financial/pkg/storage"
)

// Item is one publication
type Item struct {
	Request *domain.ContentRequest
	Version *domain.ContentVersion
	At      time.Time
}

// Receipt tells where the publication went
type Receipt struct {
	Location string `json:"location"`
}

// Publisher runs the publish side effect. It is called inside the status
// transaction; an error rolls the transition back.
type Publisher interface {
	Publish(ctx context.Context, item Item) (*Receipt, error)
}

// Noop accepts every publication and only logs it
type Noop struct{}

func (Noop) Publish(_ context.Context, item Item) (*Receipt, error) {
	pkglogger.GetLogger().Info().
		Str("content_request_id", item.Request.ID).
		Int("version_number", item.Version.VersionNumber).
		Msg("content published")
	return &Receipt{Location: "noop://" + item.Request.ID}, nil
}

type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*storage.ObjectRef, error)
}

// S3Archive writes the published version as a standalone HTML page
type S3Archive struct {
	store objectStore
}

// NewS3Archive creates an S3Archive over an S3 client
func NewS3Archive(client *storage.S3Client) *S3Archive {
	return &S3Archive{store: client}
}

func (a *S3Archive) Publish(ctx context.Context, item Item) (*Receipt, error) {
	if item.Request == nil || item.Version == nil {
		return nil, fmt.Errorf("publish: request and version are required")
	}
	key := storage.ArchiveKey(item.Request.OrgID, item.Request.ID, item.Version.VersionNumber, item.At)
	ref, err := a.store.Put(ctx, key, []byte(Render(item.Version)), "text/html; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("publish archive: %w", err)
	}
	pkglogger.GetLogger().Info().
		Str("content_request_id", item.Request.ID).
		Str("key", ref.Key).
		Msg("publication archived")
	return &Receipt{Location: ref.URL}, nil
}

// Render builds the archived HTML document for a version
func Render(v *domain.ContentVersion) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(v.Title))
	b.WriteString("</title></head>\n<body>\n<article>\n<h1>")
	b.WriteString(html.EscapeString(v.Title))
	b.WriteString("</h1>\n")
	b.WriteString(v.Body)
	b.WriteString("\n</article>\n")
	if d := strings.TrimSpace(v.Disclaimers); d != "" {
		b.WriteString("<footer class=\"disclaimers\">")
		b.WriteString(html.EscapeString(d))
		b.WriteString("</footer>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}
