package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"gopherai-study/internal/metrics"
	"gopherai-study/internal/model"
)

const (
	defaultCharsPerQuestion  = 600
	defaultMaxContentChars   = 12000
	defaultGenerationTimeout = 90 * time.Second
	maxQuizQuestions         = 50
)

// QuestionGenerator writes multiple choice questions either from source
// content or from a bare topic.
type QuestionGenerator interface {
	FromContent(ctx context.Context, content string, count int, difficulty string) ([]model.Question, error)
	FromTopic(ctx context.Context, topic string, count int, difficulty string) ([]model.Question, error)
}

type QuizOptions struct {
	CharsPerQuestion  int
	MaxContentChars   int
	GenerationTimeout time.Duration
}

type QuizService struct {
	filter    *ContentFilter
	questions QuizQuestionStore
	ledger    QuizSessionStore
	sessions  SessionToucher
	generator QuestionGenerator
	metrics   *metrics.Metrics
	opts      QuizOptions
}

func NewQuizService(
	filter *ContentFilter,
	questions QuizQuestionStore,
	ledger QuizSessionStore,
	sessions SessionToucher,
	generator QuestionGenerator,
	m *metrics.Metrics,
	opts QuizOptions,
) *QuizService {
	if opts.CharsPerQuestion <= 0 {
		opts.CharsPerQuestion = defaultCharsPerQuestion
	}
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = defaultMaxContentChars
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = defaultGenerationTimeout
	}
	return &QuizService{
		filter:    filter,
		questions: questions,
		ledger:    ledger,
		sessions:  sessions,
		generator: generator,
		metrics:   m,
		opts:      opts,
	}
}

type QuizInput struct {
	SessionID  string
	SectionIDs []string
	Query      string
	Count      int
	Difficulty string
}

type QuizResult struct {
	QuizSessionID      uint             `json:"quiz_session_id"`
	SectionIDs         []string         `json:"section_ids"`
	EstimatedQuestions int              `json:"estimated_questions"`
	DocumentQuestions  int              `json:"document_questions"`
	ExternalQuestions  int              `json:"external_questions"`
	Questions          []model.Question `json:"questions"`
}

// EstimatedQuestions is how many questions length characters of content can
// carry: max(1, length/charsPerQuestion).
func EstimatedQuestions(length, charsPerQuestion int) int {
	if charsPerQuestion <= 0 {
		charsPerQuestion = defaultCharsPerQuestion
	}
	if n := length / charsPerQuestion; n > 1 {
		return n
	}
	return 1
}

// Generate returns exactly input.Count questions for the selected sections.
// Document-grounded questions come first and never repeat a question already
// served for any of the sections; topic-only questions fill the shortfall.
// When even that is not enough an *InsufficientContentError is returned and
// nothing is recorded, unless a generator call failed along the way, in which
// case the error wraps ErrGenerationUnavailable.
func (s *QuizService) Generate(ctx context.Context, input QuizInput) (*QuizResult, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if input.Count <= 0 || input.Count > maxQuizQuestions {
		return nil, ErrInvalidInput
	}
	sectionIDs := dedupe(input.SectionIDs)
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID), zap.Strings("section_ids", sectionIDs))

	if err := s.sessions.Touch(ctx, sessionID, nil); err != nil {
		return nil, err
	}

	chunks := s.filter.ChunksForQuiz(ctx, sessionID, sectionIDs)
	content := JoinContent(chunks)
	length := ContentLength(chunks)
	estimated := EstimatedQuestions(length, s.opts.CharsPerQuestion)
	docTarget := 0
	if length > 0 {
		docTarget = min(input.Count, estimated)
	}

	// ledger keys include the related sections of grouped ones
	resultSections, ledgerSections := sectionIDs, chunkSectionIDs(chunks)
	if len(sectionIDs) > 0 {
		ledgerSections = s.filter.ExpandSections(ctx, sessionID, sectionIDs)
	} else {
		resultSections = ledgerSections
	}
	served, err := s.servedIDs(ctx, sessionID, ledgerSections)
	if err != nil {
		return nil, err
	}

	primary, remainder := splitRunes(content, s.opts.MaxContentChars)
	accepted := make(map[string]struct{}, input.Count)
	var genErrs []error
	var docQuestions []model.Question
	if docTarget > 0 {
		var err error
		docQuestions, err = s.fromContent(ctx, logger, primary, docTarget, input.Difficulty, served, accepted)
		genErrs = appendErr(genErrs, err)
		if len(docQuestions) == 0 {
			topUp := remainder
			if topUp == "" {
				topUp = primary
			}
			logger.Info("no usable document questions, topping up from remaining content", zap.Int("chars", utf8.RuneCountInString(topUp)))
			docQuestions, err = s.fromContent(ctx, logger, topUp, docTarget, input.Difficulty, served, accepted)
			genErrs = appendErr(genErrs, err)
		}
	}

	var extQuestions []model.Question
	if shortfall := input.Count - len(docQuestions); shortfall > 0 {
		topic := deriveTopic(chunks, sectionIDs, input.Query)
		if topic == "" {
			logger.Warn("no topic for external questions")
		} else {
			logger.Info("requesting external questions", zap.Int("shortfall", shortfall), zap.String("topic", topic))
			var err error
			extQuestions, err = s.fromTopic(ctx, logger, topic, shortfall, input.Difficulty, accepted)
			genErrs = appendErr(genErrs, err)
		}
	}

	all := append(docQuestions, extQuestions...)
	if len(all) < input.Count {
		if len(genErrs) > 0 {
			s.metrics.ObserveQuiz("unavailable", 0)
			return nil, fmt.Errorf("%w: requested %d questions, generated %d: %w",
				ErrGenerationUnavailable, input.Count, len(all), errors.Join(genErrs...))
		}
		s.metrics.ObserveQuiz("insufficient", 0)
		return nil, &InsufficientContentError{Requested: input.Count, Available: len(all)}
	}
	all = all[:input.Count]

	quizSessionID, err := s.record(ctx, sessionID, ledgerSections, input.Difficulty, all)
	if err != nil {
		s.metrics.ObserveQuiz("error", 0)
		return nil, err
	}
	s.metrics.ObserveQuiz("served", len(extQuestions))

	return &QuizResult{
		QuizSessionID:      quizSessionID,
		SectionIDs:         resultSections,
		EstimatedQuestions: estimated,
		DocumentQuestions:  len(docQuestions),
		ExternalQuestions:  len(all) - len(docQuestions),
		Questions:          all,
	}, nil
}

// ListSectionQuestions returns the questions already served for a section;
// an unknown section yields an empty list.
func (s *QuizService) ListSectionQuestions(ctx context.Context, sessionID, sectionID string) ([]model.Question, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if strings.TrimSpace(sectionID) == "" {
		return nil, ErrInvalidInput
	}
	records, err := s.questions.ListBySessionAndSection(ctx, sessionID, sectionID)
	if err != nil {
		return nil, storageErr("list quiz questions", err)
	}
	out := make([]model.Question, 0, len(records))
	for i := range records {
		out = append(out, records[i].Question())
	}
	return out, nil
}

// servedIDs collects every question id recorded for a ledger entry that
// shares at least one section with sectionIDs.
func (s *QuizService) servedIDs(ctx context.Context, sessionID string, sectionIDs []string) (map[string]struct{}, error) {
	served := make(map[string]struct{})
	if len(sectionIDs) == 0 {
		return served, nil
	}
	entries, err := s.ledger.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("read quiz ledger", err)
	}
	want := make(map[string]struct{}, len(sectionIDs))
	for _, id := range sectionIDs {
		want[id] = struct{}{}
	}
	for i := range entries {
		if !intersects(entries[i].SectionIDList(), want) {
			continue
		}
		for _, id := range entries[i].ServedIDList() {
			served[id] = struct{}{}
		}
	}
	return served, nil
}

// fromContent and fromTopic each get their own deadline so a timed out call
// does not starve the fallback that follows it.
func (s *QuizService) fromContent(ctx context.Context, logger *zap.Logger, content string, count int, difficulty string, served, accepted map[string]struct{}) ([]model.Question, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
	defer cancel()
	generated, err := s.generator.FromContent(callCtx, content, count, difficulty)
	if err != nil {
		logger.Warn("document question generation failed", zap.Error(err))
		return nil, err
	}
	return accept(generated, count, model.QuestionOriginDocument, served, accepted), nil
}

func (s *QuizService) fromTopic(ctx context.Context, logger *zap.Logger, topic string, count int, difficulty string, accepted map[string]struct{}) ([]model.Question, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
	defer cancel()
	generated, err := s.generator.FromTopic(callCtx, topic, count, difficulty)
	if err != nil {
		logger.Warn("external question generation failed", zap.Error(err))
		return nil, err
	}
	return accept(generated, count, model.QuestionOriginExternal, nil, accepted), nil
}

func (s *QuizService) record(ctx context.Context, sessionID string, sectionIDs []string, difficulty string, questions []model.Question) (uint, error) {
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	rows := make([]model.QuizQuestion, 0, len(questions)*len(sectionIDs))
	for _, sectionID := range sectionIDs {
		for _, q := range questions {
			rows = append(rows, model.NewQuizQuestion(sessionID, sectionID, difficulty, q))
		}
	}
	if err := s.questions.SaveBatch(ctx, rows); err != nil {
		return 0, storageErr("save quiz questions", err)
	}
	entry := &model.QuizSession{
		SessionID:     sessionID,
		QuestionCount: len(questions),
		Difficulty:    difficulty,
	}
	entry.SetSectionIDs(sectionIDs)
	entry.SetServedIDs(ids)
	if err := s.ledger.Create(ctx, entry); err != nil {
		return 0, storageErr("append quiz ledger", err)
	}
	return entry.ID, nil
}

// accept keeps up to limit well-formed questions whose ids were neither served
// before nor already accepted in this request.
func accept(generated []model.Question, limit int, origin string, served, accepted map[string]struct{}) []model.Question {
	out := make([]model.Question, 0, limit)
	for _, q := range generated {
		if len(out) == limit {
			break
		}
		if !wellFormed(q) {
			continue
		}
		if _, ok := served[q.ID]; ok {
			continue
		}
		if _, ok := accepted[q.ID]; ok {
			continue
		}
		accepted[q.ID] = struct{}{}
		q.Origin = origin
		out = append(out, q)
	}
	return out
}

func wellFormed(q model.Question) bool {
	return q.ID != "" &&
		strings.TrimSpace(q.Prompt) != "" &&
		len(q.Options) == model.QuestionOptionCount &&
		q.CorrectIndex >= 0 && q.CorrectIndex < model.QuestionOptionCount
}

// deriveTopic prefers the titles of the sections content came from, then the
// raw section ids, then the free-text query.
func deriveTopic(chunks []model.DocumentChunk, sectionIDs []string, query string) string {
	seen := make(map[string]struct{})
	var titles []string
	for _, c := range chunks {
		title := strings.TrimSpace(c.SectionTitle)
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	}
	if len(titles) > 0 {
		return strings.Join(titles, ", ")
	}
	if len(sectionIDs) > 0 {
		return strings.Join(sectionIDs, ", ")
	}
	return strings.TrimSpace(query)
}

func chunkSectionIDs(chunks []model.DocumentChunk) []string {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, c := range chunks {
		if c.SectionID == "" {
			continue
		}
		if _, ok := seen[c.SectionID]; ok {
			continue
		}
		seen[c.SectionID] = struct{}{}
		ids = append(ids, c.SectionID)
	}
	return ids
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}

func intersects(ids []string, want map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := want[id]; ok {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// splitRunes cuts s after limit runes.
func splitRunes(s string, limit int) (string, string) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, ""
	}
	runes := []rune(s)
	return string(runes[:limit]), string(runes[limit:])
}
