package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"pdfchat/internal/domain"
)

// DocumentStats reports what was pulled out of a single document.
type DocumentStats struct {
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	EmptyPages int    `json:"empty_pages"`
	Chars      int    `json:"chars"`
	Error      string `json:"error,omitempty"`
}

// Extractor concatenates page text across documents in input order.
type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the text of all documents. Pages and documents that cannot
// be read contribute nothing. domain.ErrEmptyDocument is returned when the
// combined text is blank.
func (e *Extractor) Extract(docs []domain.Document) (string, []DocumentStats, error) {
	var sb strings.Builder
	stats := make([]DocumentStats, 0, len(docs))

	for _, doc := range docs {
		st := DocumentStats{Name: doc.Name}
		pages, err := pageTexts(bytes.NewReader(doc.Data), int64(len(doc.Data)))
		if err != nil {
			st.Error = err.Error()
			e.logger.Warn("pdf unreadable, skipping", zap.String("document", doc.Name), zap.Error(err))
		}
		st.Pages = len(pages)
		for _, text := range pages {
			if strings.TrimSpace(text) == "" {
				st.EmptyPages++
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(text)
			st.Chars += len([]rune(text))
		}
		e.logger.Debug("pdf extracted",
			zap.String("document", doc.Name),
			zap.Int("pages", st.Pages),
			zap.Int("empty_pages", st.EmptyPages),
			zap.Int("chars", st.Chars),
		)
		stats = append(stats, st)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", stats, domain.ErrEmptyDocument
	}
	return text, stats, nil
}

// pageTexts returns one entry per page. An unreadable page yields "".
func pageTexts(r io.ReaderAt, size int64) (pages []string, err error) {
	if size == 0 {
		return nil, fmt.Errorf("open pdf failed: empty file")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("open pdf failed: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	n := reader.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		pages[i-1] = pageText(reader, i)
	}
	return pages, nil
}

func pageText(reader *pdf.Reader, num int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
