package services

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// SupportedExtensions lists the file types DocumentLoader can read.
var SupportedExtensions = []string{".md", ".txt", ".pdf"}

// ConfigurePDFLicense installs the UniPDF metered key. PDF extraction fails
// until a valid key is set; an empty key is ignored.
func ConfigurePDFLicense(key string) error {
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("failed to set unidoc license key: %w", err)
	}
	return nil
}

// IsSupportedFile reports whether path has a loadable extension.
func IsSupportedFile(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// DocumentLoader reads markdown, text and PDF files from disk.
type DocumentLoader struct {
	logger *slog.Logger
}

var _ DocumentSource = (*DocumentLoader)(nil)

// NewDocumentLoader creates a loader.
func NewDocumentLoader() *DocumentLoader {
	return &DocumentLoader{logger: slog.Default().With("component", "loader")}
}

// LoadFile reads a single file. The title is taken from a leading "# "
// heading when there is one and from the file name otherwise.
func (l *DocumentLoader) LoadFile(path string) (*models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var content string
	pages := 0
	switch ext {
	case ".txt", ".md":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		content = string(raw)
	case ".pdf":
		content, pages, err = extractTextFromPDF(path)
		if err != nil {
			return nil, fmt.Errorf("failed to extract pdf text: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	metadata := map[string]any{
		"title":       documentTitle(content, ext, path),
		"source":      path,
		"file_type":   ext,
		"file_size":   info.Size(),
		"modified_at": info.ModTime().UTC().Format(time.RFC3339),
	}
	if ext == ".pdf" {
		metadata["page_count"] = pages
	}

	return &models.Document{Content: content, Metadata: metadata, Source: path}, nil
}

// LoadDirectory loads every supported file below dir in lexical order.
// Files that fail to load or have no text are returned as skipped. Hidden
// files and directories are ignored.
func (l *DocumentLoader) LoadDirectory(dir string) ([]models.Document, []models.SkippedFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	var docs []models.Document
	var skipped []models.SkippedFile
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skipped = append(skipped, models.SkippedFile{Path: path, Reason: err.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !IsSupportedFile(path) {
			skipped = append(skipped, models.SkippedFile{Path: path, Reason: "unsupported file type " + filepath.Ext(path)})
			return nil
		}

		doc, err := l.LoadFile(path)
		if err != nil {
			l.logger.Warn("skipping file", "path", path, "error", err)
			skipped = append(skipped, models.SkippedFile{Path: path, Reason: err.Error()})
			return nil
		}
		if strings.TrimSpace(doc.Content) == "" {
			skipped = append(skipped, models.SkippedFile{Path: path, Reason: "no text content"})
			return nil
		}
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error walking the path %s: %w", dir, err)
	}

	l.logger.Info("loaded documents", "directory", dir, "documents", len(docs), "skipped", len(skipped))
	return docs, skipped, nil
}

// DocumentStats summarizes docs. An empty input yields the zero value.
func DocumentStats(docs []models.Document) models.DocumentStats {
	if len(docs) == 0 {
		return models.DocumentStats{}
	}
	stats := models.DocumentStats{TotalDocuments: len(docs), FileTypes: []string{}}
	for _, doc := range docs {
		stats.TotalCharacters += len([]rune(doc.Content))
		if ft, ok := doc.Metadata["file_type"].(string); ok && !slices.Contains(stats.FileTypes, ft) {
			stats.FileTypes = append(stats.FileTypes, ft)
		}
	}
	slices.Sort(stats.FileTypes)
	stats.AverageLength = float64(stats.TotalCharacters) / float64(len(docs))
	return stats
}

func documentTitle(content, ext, path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if ext == ".pdf" {
		return stem
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			if title := strings.TrimSpace(strings.TrimPrefix(line, "# ")); title != "" {
				return title
			}
		}
		break
	}
	return stem
}

// extractTextFromPDF uses UniPDF to get all text from a PDF file along with
// its page count.
func extractTextFromPDF(path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return "", 0, err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", 0, err
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", 0, err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", 0, err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", 0, err
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return sb.String(), numPages, nil
}
