package internal

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageSource gives per-page access to a single document. Page numbers
// are 1-based.
type PageSource interface {
	PageCount() int
	PageText(pageNr int) (string, error)
	PageImage(ctx context.Context, pageNr int) ([]byte, error)
}

// SourceOpener opens a document for page access. The extractor treats
// an open failure as an unprocessable document.
type SourceOpener func(path string) (PageSource, error)

// pdfSource is the pdfcpu-backed PageSource.
type pdfSource struct {
	ctx *model.Context
}

// OpenPDF validates and parses a PDF file.
func OpenPDF(path string) (PageSource, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return &pdfSource{ctx: ctx}, nil
}

func (s *pdfSource) PageCount() int {
	return s.ctx.PageCount
}

func (s *pdfSource) PageText(pageNr int) (string, error) {
	r, err := pdfcpu.ExtractPageContent(s.ctx, pageNr)
	if err != nil {
		return "", fmt.Errorf("extract page %d content: %w", pageNr, err)
	}
	if r == nil {
		return "", nil
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read page %d content: %w", pageNr, err)
	}
	return decodeContentText(string(raw)), nil
}

// PageImage returns the largest image on the page, which for scanned
// documents is the page scan itself.
func (s *pdfSource) PageImage(_ context.Context, pageNr int) ([]byte, error) {
	images, err := pdfcpu.ExtractPageImages(s.ctx, pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("extract page %d images: %w", pageNr, err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("page %d has no images", pageNr)
	}

	var largest []byte
	for _, img := range images {
		data, err := io.ReadAll(img)
		if err != nil {
			continue
		}
		if len(data) > len(largest) {
			largest = data
		}
	}
	if len(largest) == 0 {
		return nil, fmt.Errorf("page %d images unreadable", pageNr)
	}
	return largest, nil
}

var (
	// Text-showing operators carry literal strings: (text) Tj and
	// [(te)(xt)] TJ.
	tjRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
	tJRe = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)
	litRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
)

// decodeContentText pulls the literal strings of the text-showing
// operators out of a decoded content stream. Good enough for density
// analysis and born-digital documents; scans go through OCR anyway.
func decodeContentText(content string) string {
	var b strings.Builder

	for _, m := range tjRe.FindAllStringSubmatch(content, -1) {
		b.WriteString(unescapePDFString(m[1]))
		b.WriteString("\n")
	}
	for _, m := range tJRe.FindAllStringSubmatch(content, -1) {
		for _, lit := range litRe.FindAllStringSubmatch(m[1], -1) {
			b.WriteString(unescapePDFString(lit[1]))
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

func unescapePDFString(s string) string {
	replacer := strings.NewReplacer(
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
		`\n`, "\n",
		`\r`, "",
		`\t`, " ",
	)
	return replacer.Replace(s)
}
