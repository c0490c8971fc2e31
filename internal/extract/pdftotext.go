package extract

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var pdfinfoPagesRe = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// PdfToText extracts text from PDFs using the poppler pdftotext and pdfinfo
// CLI tools.
type PdfToText struct {
	binPath  string
	infoPath string
}

// NewPdfToText creates a PdfToText extractor. Empty paths default to
// "pdftotext" and "pdfinfo".
func NewPdfToText(binPath, infoPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	if infoPath == "" {
		infoPath = "pdfinfo"
	}
	return &PdfToText{binPath: binPath, infoPath: infoPath}
}

// Extract runs pdftotext -layout on the given PDF and reads the page count
// from pdfinfo. A failed page-count lookup degrades to a single page rather
// than failing extraction: page numbers are estimates either way.
func (p *PdfToText) Extract(ctx context.Context, pdfPath string) (string, int, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", 0, eris.Wrapf(err, "extract: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	pages := p.pageCount(ctx, pdfPath)
	return stdout.String(), pages, nil
}

func (p *PdfToText) pageCount(ctx context.Context, pdfPath string) int {
	out, err := exec.CommandContext(ctx, p.infoPath, pdfPath).Output()
	if err != nil {
		zap.L().Warn("pdfinfo failed, assuming one page",
			zap.String("pdf", pdfPath),
			zap.Error(err),
		)
		return 1
	}

	m := pdfinfoPagesRe.FindSubmatch(out)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
