package packaging

import (
	"bytes"
	"fmt"

	pdf "github.com/ledongthuc/pdf"
)

// VerifyPDF checks that data parses as a PDF with at least one page.
// Platforms reject structurally broken files long after upload, so catching
// them before packaging turns a slow remote failure into a fast local one.
func VerifyPDF(data []byte) error {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return fmt.Errorf("not a readable PDF: %w", err)
	}
	if doc.NumPage() < 1 {
		return fmt.Errorf("PDF has no pages")
	}
	return nil
}
