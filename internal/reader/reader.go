// Package reader turns uploaded files into chunked documents ready for indexing.
package reader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// Config configures a Reader.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Reader loads a file with the loader matching its extension and splits
// every page into chunks.
type Reader struct {
	splitter textsplitter.TextSplitter
}

func New(cfg Config) *Reader {
	return &Reader{splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)}
}

// NewWithSplitter creates a Reader that uses an arbitrary langchaingo splitter.
func NewWithSplitter(splitter textsplitter.TextSplitter) *Reader {
	return &Reader{splitter: splitter}
}

// Read loads path and returns its chunks. An empty or text-less document
// yields no chunks and no error.
func (r *Reader) Read(ctx context.Context, path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	pages, err := loaderFor(path, f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	name := documentName(path)
	var docs []domain.Document
	for i, page := range pages {
		pageNum := pageNumber(page, i+1)
		chunks, err := r.splitter.SplitText(page.PageContent)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s page %d: %w", path, pageNum, err)
		}
		for j, chunk := range chunks {
			meta := map[string]any{
				"page":  pageNum,
				"chunk": j + 1,
			}
			for k, v := range page.Metadata {
				if _, ok := meta[k]; !ok {
					meta[k] = v
				}
			}
			doc := domain.Document{
				ID:         fmt.Sprintf("%s_%d_%d", name, pageNum, j+1),
				Name:       name,
				Content:    chunk,
				Page:       pageNum,
				ChunkIndex: j,
				Meta:       meta,
			}
			doc.Normalize()
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

type loader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

func loaderFor(path string, f *os.File, size int64) loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return documentloaders.NewHTML(io.Reader(f))
	case ".txt", ".md", ".markdown", ".csv":
		return documentloaders.NewText(io.Reader(f))
	default:
		return documentloaders.NewPDF(f, size)
	}
}

func documentName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(name, " ", "_")
}

func pageNumber(doc schema.Document, fallback int) int {
	switch v := doc.Metadata["page"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
