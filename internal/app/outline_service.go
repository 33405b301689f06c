package app

import (
	"context"
	"hash/fnv"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"gopherai-study/internal/ai"
	"gopherai-study/internal/cache"
	"gopherai-study/internal/metrics"
	"gopherai-study/internal/model"
	"gopherai-study/internal/outline"
	"gopherai-study/internal/pkg/fingerprint"
)

const (
	defaultExtractTimeout = 60 * time.Second
	recomputeLockStripes  = 64
)

// SectionExtractor proposes section boundaries for a document. It may fail
// or return nothing; both are tolerated.
type SectionExtractor interface {
	ExtractSections(ctx context.Context, documentText string, chunkCount int) ([]model.RawSectionProposal, error)
}

type OutlineOptions struct {
	Normalize      outline.NormalizeConfig
	Unify          outline.UnifyConfig
	ExtractTimeout time.Duration
}

type OutlineService struct {
	chunks          ChunkStore
	documents       DocumentOutlineStore
	sessionOutlines SessionOutlineStore
	sessions        SessionToucher
	extractor       SectionExtractor
	cache           *cache.OutlineCache
	metrics         *metrics.Metrics
	opts            OutlineOptions

	// recompute reads and writes of one session are serialized so the last
	// writer always saw every document stored before it started.
	recomputeLocks [recomputeLockStripes]sync.Mutex
}

func NewOutlineService(
	chunks ChunkStore,
	documents DocumentOutlineStore,
	sessionOutlines SessionOutlineStore,
	sessions SessionToucher,
	extractor SectionExtractor,
	outlineCache *cache.OutlineCache,
	m *metrics.Metrics,
	opts OutlineOptions,
) *OutlineService {
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = defaultExtractTimeout
	}
	return &OutlineService{
		chunks:          chunks,
		documents:       documents,
		sessionOutlines: sessionOutlines,
		sessions:        sessions,
		extractor:       extractor,
		cache:           outlineCache,
		metrics:         m,
		opts:            opts,
	}
}

// IngestInput describes one extracted document to file into a session.
type IngestInput struct {
	SessionID   string
	Filename    string
	ContentType string
	UserID      *uint
	Chunks      []model.ChunkInput
}

type IngestResult struct {
	SessionID          string          `json:"session_id"`
	Filename           string          `json:"filename"`
	ContentFingerprint string          `json:"content_fingerprint"`
	Path               outline.Path    `json:"path"`
	ChunkCount         int             `json:"chunk_count"`
	Sections           []model.Section `json:"sections"`
}

// Ingest normalizes the document's sections, stores its tagged chunks and
// outline and rebuilds the session outline. Boundary extraction failures only
// move the document down the fallback ladder.
func (s *OutlineService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, ErrMissingFilename
	}
	if !IsPDF(filename, input.ContentType) {
		return nil, ErrUnsupportedContent
	}
	if len(input.Chunks) == 0 {
		return nil, ErrNoChunks
	}
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID), zap.String("filename", filename))

	contents := make([]string, len(input.Chunks))
	for i, c := range input.Chunks {
		contents[i] = c.Content
	}
	fp := fingerprint.Document(filename, contents)

	if err := s.sessions.Touch(ctx, sessionID, input.UserID); err != nil {
		return nil, err
	}

	proposals, extractErr := s.extract(ctx, input.Chunks)
	if extractErr != nil {
		logger.Warn("section extraction failed, falling back", zap.Error(extractErr))
	}
	normalized := outline.Normalize(outline.DocumentRef{Name: filename, Fingerprint: fp}, input.Chunks, proposals, extractErr, s.opts.Normalize)
	s.metrics.ObserveNormalizerPath(string(normalized.Path))
	if normalized.Path != outline.PathDeclared {
		logger.Info("document outline built from fallback", zap.String("path", string(normalized.Path)), zap.Int("proposals", len(proposals)))
	}

	tagged, err := outline.Tag(input.Chunks, normalized.Sections)
	if err != nil {
		return nil, err
	}
	if err := s.chunks.ReplaceDocumentChunks(ctx, sessionID, filename, model.NewDocumentChunks(sessionID, filename, tagged)); err != nil {
		s.metrics.ObserveIngestion("error")
		return nil, storageErr("store chunks", err)
	}

	record := &model.DocumentOutline{
		SessionID:          sessionID,
		Filename:           filename,
		ContentFingerprint: fp,
		ChunkCount:         len(input.Chunks),
	}
	record.SetSections(normalized.Sections)
	if err := s.documents.Upsert(ctx, record); err != nil {
		s.metrics.ObserveIngestion("error")
		return nil, storageErr("store document outline", err)
	}
	if _, err := s.RecomputeSessionOutline(ctx, sessionID); err != nil {
		s.metrics.ObserveIngestion("error")
		return nil, err
	}
	s.metrics.ObserveIngestion("ok")
	logger.Info("document ingested", zap.String("path", string(normalized.Path)), zap.Int("sections", len(normalized.Sections)), zap.Int("chunks", len(tagged)))

	return &IngestResult{
		SessionID:          sessionID,
		Filename:           filename,
		ContentFingerprint: fp,
		Path:               normalized.Path,
		ChunkCount:         len(tagged),
		Sections:           normalized.Sections,
	}, nil
}

// BatchItem is the outcome of one document of a batch ingestion.
type BatchItem struct {
	Filename string        `json:"filename"`
	Result   *IngestResult `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
}

// IngestBatch ingests each document independently; one failure does not stop
// the others.
func (s *OutlineService) IngestBatch(ctx context.Context, inputs []IngestInput) []BatchItem {
	items := make([]BatchItem, len(inputs))
	for i, in := range inputs {
		items[i].Filename = in.Filename
		res, err := s.Ingest(ctx, in)
		if err != nil {
			logutil.GetLogger(ctx).Warn("batch document ingestion failed",
				zap.String("session_id", in.SessionID), zap.String("filename", in.Filename), zap.Error(err))
			items[i].Err = err
			items[i].Error = err.Error()
			continue
		}
		items[i].Result = res
	}
	return items
}

// DeleteDocument removes a document's chunks and outline and rebuilds the
// session outline so it no longer refers to the document.
func (s *OutlineService) DeleteDocument(ctx context.Context, sessionID, filename string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	filename = strings.TrimSpace(filename)
	if sessionID == "" {
		return false, ErrMissingSessionID
	}
	if filename == "" {
		return false, ErrMissingFilename
	}
	if err := s.chunks.DeleteByDocument(ctx, sessionID, filename); err != nil {
		return false, storageErr("delete chunks", err)
	}
	n, err := s.documents.DeleteBySessionAndFilename(ctx, sessionID, filename)
	if err != nil {
		return false, storageErr("delete document outline", err)
	}
	if _, err := s.RecomputeSessionOutline(ctx, sessionID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecomputeSessionOutline rebuilds the unified outline from every stored
// document outline of the session and replaces the stored one.
func (s *OutlineService) RecomputeSessionOutline(ctx context.Context, sessionID string) ([]model.UnifiedSection, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	docs, err := s.documents.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("list document outlines", err)
	}
	if len(docs) == 0 {
		s.cache.Invalidate(sessionID)
		if err := s.sessionOutlines.DeleteBySession(ctx, sessionID); err != nil {
			return nil, storageErr("delete session outline", err)
		}
		return []model.UnifiedSection{}, nil
	}
	unified := outline.Unify(docs, s.opts.Unify)

	record := &model.SessionOutline{SessionID: sessionID}
	record.SetSections(unified)
	if err := s.sessionOutlines.Upsert(ctx, record); err != nil {
		s.cache.Invalidate(sessionID)
		return nil, storageErr("store session outline", err)
	}
	s.cache.Set(sessionID, unified)

	groups := 0
	for _, u := range unified {
		if u.Grouped {
			groups++
		}
	}
	s.metrics.SetUnifiedGroups(groups)
	logutil.GetLogger(ctx).Debug("session outline recomputed",
		zap.String("session_id", sessionID), zap.Int("documents", len(docs)), zap.Int("sections", len(unified)), zap.Int("groups", groups))
	return unified, nil
}

// GetSessionOutline returns the unified outline; a session without one yields
// an empty list.
func (s *OutlineService) GetSessionOutline(ctx context.Context, sessionID string) ([]model.UnifiedSection, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if cached, ok := s.cache.Get(ctx, sessionID); ok {
		return cached, nil
	}
	record, err := s.sessionOutlines.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("get session outline", err)
	}
	if record == nil {
		return []model.UnifiedSection{}, nil
	}
	sections := record.SectionList()
	if sections == nil {
		sections = []model.UnifiedSection{}
	}
	s.cache.Set(sessionID, sections)
	return sections, nil
}

type DocumentOutlineResult struct {
	SessionID          string          `json:"session_id"`
	Filename           string          `json:"filename"`
	ContentFingerprint string          `json:"content_fingerprint,omitempty"`
	ChunkCount         int             `json:"chunk_count"`
	Sections           []model.Section `json:"sections"`
	Found              bool            `json:"found"`
}

// GetDocumentOutline returns the stored sections of one document. A missing
// document yields an empty result with Found unset.
func (s *OutlineService) GetDocumentOutline(ctx context.Context, sessionID, filename string) (*DocumentOutlineResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	filename = strings.TrimSpace(filename)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if filename == "" {
		return nil, ErrMissingFilename
	}
	result := &DocumentOutlineResult{SessionID: sessionID, Filename: filename, Sections: []model.Section{}}
	record, err := s.documents.GetBySessionAndFilename(ctx, sessionID, filename)
	if err != nil {
		return nil, storageErr("get document outline", err)
	}
	if record == nil {
		return result, nil
	}
	result.Found = true
	result.ContentFingerprint = record.ContentFingerprint
	result.ChunkCount = record.ChunkCount
	if sections := record.SectionList(); sections != nil {
		result.Sections = sections
	}
	return result, nil
}

func (s *OutlineService) extract(ctx context.Context, chunks []model.ChunkInput) ([]model.RawSectionProposal, error) {
	if s.extractor == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ExtractTimeout)
	defer cancel()
	return s.extractor.ExtractSections(ctx, ai.RenderChunks(chunks), len(chunks))
}

func (s *OutlineService) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.recomputeLocks[h.Sum32()%recomputeLockStripes]
}

// IsPDF reports whether an upload is a PDF. A specific content type decides;
// otherwise the extension does.
func IsPDF(filename, contentType string) bool {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType != "application/octet-stream" {
			return mediaType == "application/pdf"
		}
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
