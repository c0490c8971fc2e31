// Package extract pulls raw text and page counts out of PDF documents.
package extract

import "context"

// Extractor extracts text content and a page count from PDF files.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (text string, pages int, err error)
}
