package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	"github.com/Aman-CERP/spanlabel/internal/stats"
	"github.com/Aman-CERP/spanlabel/internal/store"
	"github.com/Aman-CERP/spanlabel/internal/ui"
)

// Resource URIs.
const (
	DocumentURIPrefix = "spanlabel://documents/"
	StatsURI          = "spanlabel://stats"
)

// DocumentURI returns the resource URI of a document.
func DocumentURI(name string) string {
	return DocumentURIPrefix + url.PathEscape(name)
}

// RegisterResources registers every document as a resource, plus the
// corpus statistics. Documents added later need a server restart.
func (s *Server) RegisterResources(ctx context.Context) error {
	docs, err := s.store.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	for _, d := range docs {
		s.registerDocumentResource(d)
	}
	s.registerStatsResource()

	s.logger.Info("registered resources", "count", len(docs)+1)
	return nil
}

func (s *Server) registerDocumentResource(d store.Document) {
	uri := DocumentURI(d.Name)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        d.Name,
			URI:         uri,
			Description: fmt.Sprintf("%s (%d characters) with its annotations marked", d.Name, d.Length),
			MIMEType:    "text/plain",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadDocument(ctx, d.Name)
			if err != nil {
				return nil, MapError(err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "text/plain", Text: text}},
			}, nil
		},
	)
}

// ReadDocument renders a document with its annotations bracketed, the same
// output as `spanlabel show`.
func (s *Server) ReadDocument(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.labelNames(ctx)
	if err != nil {
		return "", err
	}

	var pd ui.PlainDocument
	err = s.withDocument(ctx, name, func(doc store.Document, e *annotation.Engine) error {
		st := e.Status()
		pd = ui.PlainDocument{
			Name:        doc.Name,
			Text:        doc.Content,
			Ranges:      e.RenderRanges(),
			Annotations: st.AnnotationCount,
			Clusters:    st.ClusterCount,
			LabelName:   names,
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := ui.RenderPlain(&sb, pd); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (s *Server) registerStatsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "stats",
			URI:         StatsURI,
			Description: "Annotation and overlap statistics for every document",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			rep, err := stats.Collect(ctx, s.store, stats.Options{
				Workers: s.config.Stats.Workers,
				Logger:  s.logger,
			})
			if err != nil {
				return nil, MapError(err)
			}
			data, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal stats: %w", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: StatsURI, MIMEType: "application/json", Text: string(data)}},
			}, nil
		},
	)
}
