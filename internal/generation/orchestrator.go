package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Mode picks which generators a draft uses
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
	ModeBoth  Mode = "both"
)

// Valid reports whether m is known
func (m Mode) Valid() bool { return m == ModeText || m == ModeImage || m == ModeBoth }

// visualSeparator sits between the image block and the article in "both" mode
const visualSeparator = "<br/><hr/><br/>"

// Brief describes one draft
type Brief struct {
	Topic        string
	ContentType  domain.ContentType
	Instructions string
	Length       LengthClass
	Mode         Mode
}

func (b Brief) request(action domain.GenerationAction) Request {
	return Request{
		Topic:        b.Topic,
		ContentType:  b.ContentType,
		Instructions: b.Instructions,
		LengthClass:  b.Length,
		Action:       action,
	}
}

// Orchestrator drives the text and image generators
type Orchestrator struct {
	text  Generator
	image Generator
}

// NewOrchestrator creates an Orchestrator; image may be nil when no image capability is configured
func NewOrchestrator(text, image Generator) *Orchestrator {
	return &Orchestrator{text: text, image: image}
}

// Compose produces a full draft. In "both" mode the two calls run
// concurrently and the image block is placed ahead of the article. Any
// failure aborts the whole draft with the originating message.
func (o *Orchestrator) Compose(ctx context.Context, b Brief) (Result, error) {
	if b.Mode == "" {
		b.Mode = ModeText
	}
	if !b.Mode.Valid() {
		return Result{}, fmt.Errorf("%w: unknown generation mode %q", common.ErrInvalidInput, b.Mode)
	}
	wantText := b.Mode == ModeText || b.Mode == ModeBoth
	wantImage := b.Mode == ModeImage || b.Mode == ModeBoth
	if wantImage && o.image == nil {
		return Result{}, Failf("image generation is not configured")
	}

	var text, image Result
	g, gctx := errgroup.WithContext(ctx)
	if wantText {
		g.Go(func() error {
			var err error
			text, err = o.text.Generate(gctx, b.request(domain.ActionGenerate))
			return err
		})
	}
	if wantImage {
		g.Go(func() error {
			var err error
			image, err = o.image.Generate(gctx, b.request(domain.ActionGenerate))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, asError(err)
	}

	var out Result
	switch b.Mode {
	case ModeText:
		out = text
	case ModeImage:
		out = Result{Title: "Visual Asset: " + b.Topic, Body: image.Body, Disclaimers: image.Disclaimers}
	case ModeBoth:
		out = text
		out.Body = image.Body + visualSeparator + text.Body
	}
	if strings.TrimSpace(out.Body) == "" {
		return Result{}, Failf("generator returned empty content")
	}
	if strings.TrimSpace(out.Title) == "" {
		out.Title = b.Topic
	}
	return out, nil
}

// Extend asks the text generator for a longer version of the current draft
func (o *Orchestrator) Extend(ctx context.Context, b Brief, currentPlain string) (Result, error) {
	req := b.request(domain.ActionExtend)
	req.CurrentContent = currentPlain
	res, err := o.text.Generate(ctx, req)
	if err != nil {
		return Result{}, asError(err)
	}
	if strings.TrimSpace(res.Body) == "" {
		return Result{}, Failf("generator returned empty content")
	}
	return res, nil
}

// Rewrite transforms one passage and returns the raw rewritten text
func (o *Orchestrator) Rewrite(ctx context.Context, b Brief, passage string, mode domain.RewriteMode, note string) (string, error) {
	req := b.request(domain.ActionRewrite)
	req.CurrentContent = passage
	req.RewriteMode = mode
	req.ComplianceNote = note
	res, err := o.text.Generate(ctx, req)
	if err != nil {
		return "", asError(err)
	}
	// some providers put a one-line answer in the title slot
	text := res.Body
	if strings.TrimSpace(text) == "" {
		text = res.Title
	}
	if strings.TrimSpace(text) == "" {
		return "", Failf("generator returned empty content")
	}
	return text, nil
}
