package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dms/config"
	"dms/model"
	"dms/pkg/log"
	"dms/types"
)

// Extractor turns a document path into DocumentContent, deciding
// between direct text extraction, OCR and a per-page hybrid of both.
type Extractor struct {
	open SourceOpener
	ocr  model.Recognizer
	cfg  config.OCRConfig
}

func NewExtractor(open SourceOpener, ocr model.Recognizer, cfg config.OCRConfig) *Extractor {
	return &Extractor{open: open, ocr: ocr, cfg: cfg}
}

// Extract runs the extraction decision for one document.
//
// Direct text is pulled per page first; if the resulting density
// (characters per page) is below the configured threshold, every page
// goes through OCR and the longer of direct/OCR text wins per page.
// A page-level OCR failure degrades that page to its direct text. A
// document with zero pages, or no extractable text at all, fails with
// types.ErrUnprocessable; batch callers skip it and continue.
func (e *Extractor) Extract(ctx context.Context, path string) (*types.DocumentContent, error) {
	start := time.Now()

	src, err := e.open(path)
	if err != nil {
		return nil, &types.UnprocessableDocumentError{Path: path, Cause: err}
	}

	pageCount := src.PageCount()
	if pageCount == 0 {
		return nil, &types.UnprocessableDocumentError{Path: path, Cause: errZeroPages}
	}

	directPages := make([]string, pageCount)
	totalChars := 0
	for i := 0; i < pageCount; i++ {
		text, err := src.PageText(i + 1)
		if err != nil {
			log.Warnw("direct extraction failed for page", "path", path, "page", i+1, "error", err)
			text = ""
		}
		directPages[i] = strings.TrimSpace(text)
		totalChars += len([]rune(directPages[i]))
	}

	density := totalChars / pageCount
	method := types.ExtractionDirect
	ocrUsed := false
	pages := directPages

	if e.cfg.Enabled && density < e.cfg.Threshold {
		log.Infow("text density below threshold, running OCR",
			"path", path, "density", density, "threshold", e.cfg.Threshold)
		pages = e.runOCR(ctx, path, src, directPages)
		ocrUsed = true
		if anyText(directPages) {
			method = types.ExtractionHybrid
		} else {
			method = types.ExtractionOCR
		}
	}

	fullText := strings.Join(pages, "\n")
	if strings.TrimSpace(fullText) == "" {
		return nil, &types.UnprocessableDocumentError{Path: path, Cause: errNoText}
	}

	return &types.DocumentContent{
		FilePath:       path,
		Text:           fullText,
		PageTexts:      pages,
		PageCount:      pageCount,
		FileSize:       fileSize(path),
		ImportDate:     time.Now(),
		Directory:      DirectoryLabel(path),
		OCRUsed:        ocrUsed,
		Method:         method,
		ProcessingTime: time.Since(start),
	}, nil
}

// runOCR recognizes every page and merges with the direct text: a page
// whose direct text already meets the threshold keeps it, otherwise the
// longer text wins. OCR failures fall back to the page's direct text.
func (e *Extractor) runOCR(ctx context.Context, path string, src PageSource, directPages []string) []string {
	merged := make([]string, len(directPages))
	failed := 0

	for i := range directPages {
		direct := directPages[i]
		if len([]rune(direct)) >= e.cfg.Threshold {
			merged[i] = direct
			continue
		}

		ocrText, err := e.recognizePage(ctx, src, i+1)
		if err != nil {
			failed++
			log.Warnw("OCR failed for page, keeping direct text",
				"path", path, "page", i+1, "error", err)
			merged[i] = direct
			continue
		}

		if len([]rune(ocrText)) > len([]rune(direct)) {
			merged[i] = ocrText
		} else {
			merged[i] = direct
		}
	}

	if failed > 0 {
		log.Warnf("extraction degraded for %s: OCR failed on %d/%d pages", path, failed, len(directPages))
	}
	return merged
}

func (e *Extractor) recognizePage(ctx context.Context, src PageSource, pageNr int) (string, error) {
	image, err := src.PageImage(ctx, pageNr)
	if err != nil {
		return "", err
	}
	text, err := e.ocr.Recognize(ctx, image)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// DirectoryLabel derives the hierarchical grouping key from a document
// path: its directory part with forward slashes, empty for top-level
// files.
func DirectoryLabel(path string) string {
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.TrimPrefix(dir, "./")
}

func anyText(pages []string) bool {
	for _, p := range pages {
		if p != "" {
			return true
		}
	}
	return false
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

var (
	errZeroPages = errText("document has zero pages")
	errNoText    = errText("no extractable text")
)

type errText string

func (e errText) Error() string { return string(e) }
