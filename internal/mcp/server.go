package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/spanlabel/internal/annotation"
	"github.com/Aman-CERP/spanlabel/internal/config"
	"github.com/Aman-CERP/spanlabel/internal/search"
	"github.com/Aman-CERP/spanlabel/internal/session"
	"github.com/Aman-CERP/spanlabel/internal/store"
	"github.com/Aman-CERP/spanlabel/pkg/version"
)

// Server is the MCP server for spanlabel. It lets AI clients read and edit
// annotations through the same engine the terminal annotator uses.
type Server struct {
	mcp      *mcp.Server
	sessions *session.Manager
	store    *store.SQLiteStore
	config   *config.Config
	logger   *slog.Logger

	// mu serializes tool calls. Opening a document through the manager
	// closes the previous session, so open and use must not interleave.
	mu sync.Mutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server over a session manager.
func NewServer(sessions *session.Manager, cfg *config.Config) (*Server, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		sessions: sessions,
		store:    sessions.Store(),
		config:   cfg,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Name,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return version.Name, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), toolDescriptions...)
}

// CallTool invokes a tool by name with JSON-style arguments and returns its
// structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolListDocuments:
		return s.listDocuments(ctx)
	case ToolListLabels:
		return s.listLabels(ctx)
	case ToolListAnnotations:
		in, err := decodeArgs[ListAnnotationsInput](args)
		if err != nil {
			return nil, err
		}
		return s.listAnnotations(ctx, in)
	case ToolAddAnnotation:
		in, err := decodeArgs[AddAnnotationInput](args)
		if err != nil {
			return nil, err
		}
		return s.addAnnotation(ctx, in)
	case ToolDeleteAnnotation:
		in, err := decodeArgs[DeleteAnnotationInput](args)
		if err != nil {
			return nil, err
		}
		return s.deleteAnnotation(ctx, in)
	case ToolSetExtraData:
		in, err := decodeArgs[SetExtraDataInput](args)
		if err != nil {
			return nil, err
		}
		return s.setExtraData(ctx, in)
	case ToolFindAnnotations:
		in, err := decodeArgs[FindAnnotationsInput](args)
		if err != nil {
			return nil, err
		}
		return s.findAnnotations(ctx, in)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var in T
	raw, err := json.Marshal(args)
	if err != nil {
		return in, NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return in, nil
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close closes the open session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Close()
}

// withDocument opens the named document, pulls in edits made by other
// processes, and runs fn on its engine.
func (s *Server) withDocument(ctx context.Context, name string, fn func(doc store.Document, e *annotation.Engine) error) error {
	if name == "" {
		return NewInvalidParamsError("document parameter is required")
	}
	sess, err := s.sessions.Open(ctx, name)
	if err != nil {
		return err
	}
	return s.use(ctx, sess, fn)
}

func (s *Server) use(ctx context.Context, sess *session.Session, fn func(doc store.Document, e *annotation.Engine) error) error {
	if _, err := sess.Sync(ctx); err != nil {
		return err
	}
	doc := sess.Document()
	return sess.Do(func(e *annotation.Engine) error {
		return fn(doc, e)
	})
}

// labelNames returns a lookup from label id to name.
func (s *Server) labelNames(ctx context.Context) (func(int64) string, error) {
	labels, err := s.store.Labels(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(labels))
	for _, l := range labels {
		names[l.ID] = l.Name
	}
	return func(id int64) string {
		if n, ok := names[id]; ok {
			return n
		}
		return fmt.Sprintf("#%d", id)
	}, nil
}

func (s *Server) listDocuments(ctx context.Context) (ListDocumentsOutput, error) {
	docs, err := s.store.Documents(ctx)
	if err != nil {
		return ListDocumentsOutput{}, err
	}
	out := ListDocumentsOutput{Documents: make([]DocumentOutput, 0, len(docs))}
	for _, d := range docs {
		n, err := s.store.CountAnnotations(ctx, d.ID)
		if err != nil {
			return ListDocumentsOutput{}, err
		}
		out.Documents = append(out.Documents, DocumentOutput{
			ID:          d.ID,
			Name:        d.Name,
			Length:      d.Length,
			Annotations: n,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out, nil
}

func (s *Server) listLabels(ctx context.Context) (ListLabelsOutput, error) {
	labels, err := s.store.Labels(ctx)
	if err != nil {
		return ListLabelsOutput{}, err
	}
	if labels == nil {
		labels = []store.Label{}
	}
	return ListLabelsOutput{Labels: labels}, nil
}

func (s *Server) listAnnotations(ctx context.Context, in ListAnnotationsInput) (ListAnnotationsOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.labelNames(ctx)
	if err != nil {
		return ListAnnotationsOutput{}, err
	}

	out := ListAnnotationsOutput{
		Document:    in.Document,
		Annotations: []AnnotationOutput{},
		Clusters:    []ClusterOutput{},
	}
	err = s.withDocument(ctx, in.Document, func(doc store.Document, e *annotation.Engine) error {
		text := []rune(doc.Content)
		for _, a := range e.Annotations() {
			out.Annotations = append(out.Annotations, toAnnotationOutput(a, text, names))
		}
		for _, c := range e.Clusters() {
			co := ClusterOutput{Start: c.Start, End: c.End, Text: slice(text, c.Start, c.End)}
			for _, m := range e.Members(c) {
				co.Members = append(co.Members, m.ID)
			}
			out.Clusters = append(out.Clusters, co)
		}
		return nil
	})
	return out, err
}

func (s *Server) addAnnotation(ctx context.Context, in AddAnnotationInput) (AnnotationResultOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Label == "" {
		return AnnotationResultOutput{}, NewInvalidParamsError("label parameter is required")
	}
	lbl, err := s.store.LabelByName(ctx, in.Label)
	if err != nil {
		return AnnotationResultOutput{}, err
	}
	names, err := s.labelNames(ctx)
	if err != nil {
		return AnnotationResultOutput{}, err
	}

	out := AnnotationResultOutput{Document: in.Document}
	err = s.withDocument(ctx, in.Document, func(doc store.Document, e *annotation.Engine) error {
		a, err := e.Add(ctx, lbl.ID, in.Start, in.End)
		if err != nil {
			return err
		}
		out.Annotation = toAnnotationOutput(a, []rune(doc.Content), names)
		return nil
	})
	if err == nil {
		s.logger.Info("annotation added via mcp",
			slog.String("document", in.Document),
			slog.Int64("id", out.Annotation.ID))
	}
	return out, err
}

// sessionFor opens the document that owns annotation id.
func (s *Server) sessionFor(ctx context.Context, id int64) (*session.Session, annotation.Annotation, error) {
	if id <= 0 {
		return nil, annotation.Annotation{}, NewInvalidParamsError("id parameter is required")
	}
	a, docID, err := s.store.AnnotationByID(ctx, id)
	if err != nil {
		return nil, annotation.Annotation{}, err
	}
	sess, err := s.sessions.OpenID(ctx, docID)
	if err != nil {
		return nil, annotation.Annotation{}, err
	}
	return sess, a, nil
}

func (s *Server) deleteAnnotation(ctx context.Context, in DeleteAnnotationInput) (DeleteAnnotationOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.sessionFor(ctx, in.ID)
	if err != nil {
		return DeleteAnnotationOutput{}, err
	}
	if err := s.store.DeleteAnnotation(ctx, in.ID); err != nil {
		return DeleteAnnotationOutput{}, err
	}
	if _, err := sess.Dispatch(ctx, annotation.ExternalDelete{ID: in.ID}); err != nil {
		return DeleteAnnotationOutput{}, err
	}

	s.logger.Info("annotation deleted via mcp", slog.Int64("id", in.ID))
	return DeleteAnnotationOutput{Document: sess.Document().Name, ID: in.ID, Deleted: true}, nil
}

func (s *Server) setExtraData(ctx context.Context, in SetExtraDataInput) (AnnotationResultOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.sessionFor(ctx, in.ID)
	if err != nil {
		return AnnotationResultOutput{}, err
	}
	if err := s.store.UpdateExtraData(ctx, in.ID, in.Text); err != nil {
		return AnnotationResultOutput{}, err
	}
	names, err := s.labelNames(ctx)
	if err != nil {
		return AnnotationResultOutput{}, err
	}

	out := AnnotationResultOutput{Document: sess.Document().Name}
	err = s.use(ctx, sess, func(doc store.Document, e *annotation.Engine) error {
		a, ok := e.Annotation(in.ID)
		if !ok {
			return fmt.Errorf("annotation %d missing after sync", in.ID)
		}
		out.Annotation = toAnnotationOutput(a, []rune(doc.Content), names)
		return nil
	})
	return out, err
}

func (s *Server) findAnnotations(ctx context.Context, in FindAnnotationsInput) (FindAnnotationsOutput, error) {
	if in.Query == "" {
		return FindAnnotationsOutput{}, NewInvalidParamsError("query parameter is required")
	}
	start := time.Now()
	requestID := generateRequestID()

	idx, err := search.Build(ctx, s.store)
	if err != nil {
		return FindAnnotationsOutput{}, err
	}
	defer func() { _ = idx.Close() }()

	limit := clampLimit(in.Limit, s.config.Search.MaxResults, 1, MaxFindResults)
	results, err := idx.Search(ctx, in.Query, limit)
	if err != nil {
		return FindAnnotationsOutput{}, err
	}

	s.logger.Debug("find_annotations",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))
	if results == nil {
		results = []search.Result{}
	}
	return FindAnnotationsOutput{Results: results}, nil
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, s.tool(ToolListDocuments), s.mcpListDocumentsHandler)
	mcp.AddTool(s.mcp, s.tool(ToolListLabels), s.mcpListLabelsHandler)
	mcp.AddTool(s.mcp, s.tool(ToolListAnnotations), s.mcpListAnnotationsHandler)
	mcp.AddTool(s.mcp, s.tool(ToolAddAnnotation), s.mcpAddAnnotationHandler)
	mcp.AddTool(s.mcp, s.tool(ToolDeleteAnnotation), s.mcpDeleteAnnotationHandler)
	mcp.AddTool(s.mcp, s.tool(ToolSetExtraData), s.mcpSetExtraDataHandler)
	mcp.AddTool(s.mcp, s.tool(ToolFindAnnotations), s.mcpFindAnnotationsHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(toolDescriptions)))
}

func (s *Server) tool(name string) *mcp.Tool {
	for _, t := range toolDescriptions {
		if t.Name == name {
			return &mcp.Tool{Name: t.Name, Description: t.Description}
		}
	}
	return &mcp.Tool{Name: name}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) mcpListDocumentsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListDocumentsInput) (
	*mcp.CallToolResult,
	ListDocumentsOutput,
	error,
) {
	out, err := s.listDocuments(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, MapError(err)
	}
	return textResult(FormatDocuments(out.Documents)), out, nil
}

func (s *Server) mcpListLabelsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListLabelsInput) (
	*mcp.CallToolResult,
	ListLabelsOutput,
	error,
) {
	out, err := s.listLabels(ctx)
	if err != nil {
		return nil, ListLabelsOutput{}, MapError(err)
	}
	return textResult(FormatLabels(out)), out, nil
}

func (s *Server) mcpListAnnotationsHandler(ctx context.Context, _ *mcp.CallToolRequest, in ListAnnotationsInput) (
	*mcp.CallToolResult,
	ListAnnotationsOutput,
	error,
) {
	out, err := s.listAnnotations(ctx, in)
	if err != nil {
		return nil, ListAnnotationsOutput{}, MapError(err)
	}
	return textResult(FormatAnnotations(out)), out, nil
}

func (s *Server) mcpAddAnnotationHandler(ctx context.Context, _ *mcp.CallToolRequest, in AddAnnotationInput) (
	*mcp.CallToolResult,
	AnnotationResultOutput,
	error,
) {
	out, err := s.addAnnotation(ctx, in)
	if err != nil {
		return nil, AnnotationResultOutput{}, MapError(err)
	}
	return textResult(FormatAnnotationResult("Added", out)), out, nil
}

func (s *Server) mcpDeleteAnnotationHandler(ctx context.Context, _ *mcp.CallToolRequest, in DeleteAnnotationInput) (
	*mcp.CallToolResult,
	DeleteAnnotationOutput,
	error,
) {
	out, err := s.deleteAnnotation(ctx, in)
	if err != nil {
		return nil, DeleteAnnotationOutput{}, MapError(err)
	}
	return textResult(fmt.Sprintf("Deleted annotation #%d from \"%s\"", out.ID, out.Document)), out, nil
}

func (s *Server) mcpSetExtraDataHandler(ctx context.Context, _ *mcp.CallToolRequest, in SetExtraDataInput) (
	*mcp.CallToolResult,
	AnnotationResultOutput,
	error,
) {
	out, err := s.setExtraData(ctx, in)
	if err != nil {
		return nil, AnnotationResultOutput{}, MapError(err)
	}
	return textResult(FormatAnnotationResult("Updated", out)), out, nil
}

func (s *Server) mcpFindAnnotationsHandler(ctx context.Context, _ *mcp.CallToolRequest, in FindAnnotationsInput) (
	*mcp.CallToolResult,
	FindAnnotationsOutput,
	error,
) {
	out, err := s.findAnnotations(ctx, in)
	if err != nil {
		return nil, FindAnnotationsOutput{}, MapError(err)
	}
	return textResult(FormatFindResults(in.Query, out.Results)), out, nil
}

// generateRequestID creates a short random ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
