package filesource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/source"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const pageTimeout = 10 * time.Second

type rawPage struct {
	Number  int
	Content string
}

// Source turns one uploaded file into a single Document, pages joined by blank lines.
type Source struct {
	path   string
	name   string
	id     string
	logger *logger_i.Logger
}

var _ source.Source = (*Source)(nil)

// New reads the file at path when fetched. name is the original upload name and becomes
// the title; id is the document id (the ingest job id for uploads).
func New(path, name, id string) *Source {
	if name == "" {
		name = filepath.Base(path)
	}
	return &Source{path: path, name: name, id: id, logger: logger_i.NewLogger("File Source")}
}

func (s *Source) FetchDocuments(ctx context.Context) ([]commonModels.Document, error) {
	log := s.logger.WithTrace(ctx)

	docType := GetDocType(s.name)
	if docType == commonModels.ERR {
		docType = GetDocType(s.path)
	}
	if docType == commonModels.ERR {
		return nil, ragErrors.InvalidArgument("unsupported file type %q", filepath.Ext(s.name))
	}
	log.Debug("Processing document", "filename", s.name, "type", docType)

	pages, err := s.extractText(ctx, docType)
	if err != nil {
		log.Error("Error extracting document content", "error", err)
		return nil, &ragErrors.SourceFetchError{Source: "file", URL: s.path, Err: err}
	}

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if text := strings.TrimSpace(p.Content); text != "" {
			parts = append(parts, text)
		}
	}
	now := time.Now().UTC()
	return []commonModels.Document{{
		Id:          s.id,
		Title:       strings.TrimSuffix(s.name, filepath.Ext(s.name)),
		Body:        strings.Join(parts, "\n\n"),
		URL:         "file://" + s.name,
		CreatedAt:   now,
		UpdatedAt:   now,
		ContentType: docType,
	}}, nil
}

func GetDocType(path string) commonModels.DocType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return commonModels.PDF
	case ".docx", ".odt", ".rtf":
		return commonModels.DOCX
	case ".txt", ".md":
		return commonModels.TXT
	default:
		return commonModels.ERR
	}
}

func (s *Source) extractText(ctx context.Context, contentType commonModels.DocType) ([]rawPage, error) {
	switch contentType {
	case commonModels.PDF:
		return s.extractPDF(ctx)
	case commonModels.DOCX, commonModels.TXT:
		return s.extractDocument()
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

func (s *Source) extractPDF(ctx context.Context) ([]rawPage, error) {
	f, err := pdf.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []rawPage
	numPages := f.NumPage()
	s.logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// one unreadable page does not fail the document
			s.logger.Warn("skipping unreadable pdf page", "file", s.name, "page", i, "error", err)
			continue
		}
		pages = append(pages, rawPage{Number: i, Content: content})
	}
	return pages, nil
}

// extractDocument reads .odt, .docx, .rtf or plain text as one page.
func (s *Source) extractDocument() ([]rawPage, error) {
	text, err := cat.File(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filepath.Ext(s.path), err)
	}
	return []rawPage{{Number: 1, Content: text}}, nil
}

// the pdf reader can spin on malformed content streams
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageTimeout):
		return "", errors.New("page extraction timed out")
	}
}
