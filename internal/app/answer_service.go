package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"coursetutor/internal/ai"
	"coursetutor/internal/model"
	"coursetutor/internal/ranking"
)

// AnswerState is the terminal state of one answering call.
type AnswerState string

const (
	AnswerFallback   AnswerState = "FALLBACK"
	AnswerNoMaterial AnswerState = "NO_MATERIAL"
	AnswerDone       AnswerState = "DONE"
)

const contextSeparator = "\n\n---\n\n"

type SourceRef struct {
	SourceType model.SourceType `json:"source_type"`
	SourceID   uint             `json:"source_id"`
	Title      string           `json:"title"`
	ChunkIndex int              `json:"chunk_index"`
	Score      float64          `json:"score"`
}

type AnswerResult struct {
	State   AnswerState `json:"state"`
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources,omitempty"`
}

type variant struct {
	name        string
	topK        int
	instruction string
	noMaterial  string
	noMatch     string
	fallback    string
	candidates  func(ctx context.Context, chunks ChunkReader, courseID uint) ([]model.ChunkRecord, error)
}

const tutorInstruction = `You are an AI tutor for this course. Answer the student's question using only the course material in the context below.
If the answer is not in the context, say that the course material does not cover it. Do not make up facts.`

const companionInstruction = `You are a friendly study companion. Help the student with an encouraging tone, using the course material and library books in the context below.
Only use facts from the context. If the context does not answer the question, say so kindly and suggest asking the teacher.`

func tutorVariant(topK int) variant {
	return variant{
		name:        "tutor",
		topK:        topK,
		instruction: tutorInstruction,
		noMaterial:  "There is no indexed course material to answer from yet. Ask your teacher to index the course material.",
		noMatch:     "I could not find any relevant information in the course material.",
		fallback:    "The AI tutor is not available right now. Please try again later.",
		candidates: func(ctx context.Context, chunks ChunkReader, courseID uint) ([]model.ChunkRecord, error) {
			return chunks.ListByCourse(ctx, courseID)
		},
	}
}

func companionVariant(topK int) variant {
	return variant{
		name:        "companion",
		topK:        topK,
		instruction: companionInstruction,
		noMaterial:  "Hi! There is no material for this course yet. Ask your teacher to index it so I can learn about your books and lessons!",
		noMatch:     "I looked through your course material and books but found nothing about that yet. Try asking in a different way!",
		fallback:    "Oops, I had a little hiccup just now. Can we try again in a moment?",
		candidates: func(ctx context.Context, chunks ChunkReader, courseID uint) ([]model.ChunkRecord, error) {
			return chunks.ListForCompanion(ctx, courseID)
		},
	}
}

// AnswerDeps are the collaborators of an AnswerService. Cache and Logger are
// optional.
type AnswerDeps struct {
	Chunks    ChunkReader
	Embedder  ai.Embedder
	Completer ai.Completer
	Ranker    ranking.Ranker
	Cache     QueryCache
	Logger    *zap.Logger
}

// AnswerService answers questions from the indexed chunks of a course.
type AnswerService struct {
	AnswerDeps
	variant variant
	cfg     RetrievalConfig
}

// NewTutorService answers from the course's own material only.
func NewTutorService(deps AnswerDeps, cfg RetrievalConfig) *AnswerService {
	return newAnswerService(deps, cfg, tutorVariant(cfg.TutorTopK))
}

// NewStudyCompanionService also draws on every library book.
func NewStudyCompanionService(deps AnswerDeps, cfg RetrievalConfig) *AnswerService {
	return newAnswerService(deps, cfg, companionVariant(cfg.CompanionTopK))
}

func newAnswerService(deps AnswerDeps, cfg RetrievalConfig, v variant) *AnswerService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Ranker == nil {
		deps.Ranker = ranking.NewLinearRanker()
	}
	deps.Logger = deps.Logger.Named(v.name)
	return &AnswerService{AnswerDeps: deps, variant: v, cfg: cfg}
}

// Answer never fails; every terminal state yields text for the student.
func (s *AnswerService) Answer(ctx context.Context, courseID uint, question string) string {
	return s.Ask(ctx, courseID, question).Answer
}

func (s *AnswerService) Ask(ctx context.Context, courseID uint, question string) AnswerResult {
	log := s.Logger.With(zap.Uint("course_id", courseID))
	question = strings.TrimSpace(question)

	queryVec, err := s.embedQuestion(ctx, question)
	if err != nil {
		log.Warn("embed question failed", zap.Error(err))
		return AnswerResult{State: AnswerFallback, Answer: s.variant.fallback}
	}

	candidates, err := s.variant.candidates(ctx, s.Chunks, courseID)
	if err != nil {
		log.Error("load candidates failed", zap.Error(err))
		return AnswerResult{State: AnswerFallback, Answer: s.variant.fallback}
	}
	if len(candidates) == 0 {
		return AnswerResult{State: AnswerNoMaterial, Answer: s.variant.noMaterial}
	}

	top := s.Ranker.TopK(queryVec, candidates, s.variant.topK)
	if len(top) == 0 {
		return AnswerResult{State: AnswerNoMaterial, Answer: s.variant.noMatch}
	}

	prompt := buildPrompt(s.variant.instruction, BuildContext(top, s.cfg.MaxContextChars), question)
	answer, err := s.complete(ctx, prompt)
	if err != nil {
		log.Warn("completion failed", zap.Error(err))
		return AnswerResult{State: AnswerFallback, Answer: s.variant.fallback}
	}

	sources := make([]SourceRef, 0, len(top))
	for _, sc := range top {
		sources = append(sources, SourceRef{
			SourceType: sc.Record.SourceType,
			SourceID:   sc.Record.SourceID,
			Title:      sc.Record.SourceTitle,
			ChunkIndex: sc.Record.ChunkIndex,
			Score:      sc.Score,
		})
	}
	return AnswerResult{State: AnswerDone, Answer: answer, Sources: sources}
}

func (s *AnswerService) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if s.Cache != nil {
		if vec, ok, err := s.Cache.Get(ctx, question); err == nil && ok {
			return vec, nil
		} else if err != nil {
			s.Logger.Debug("query cache get failed", zap.Error(err))
		}
	}

	embedCtx := ctx
	if s.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()
	}
	vec, err := s.Embedder.Embed(embedCtx, question)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ai.ErrEmbeddingRejected
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, question, vec); err != nil {
			s.Logger.Debug("query cache set failed", zap.Error(err))
		}
	}
	return vec, nil
}

func (s *AnswerService) complete(ctx context.Context, prompt string) (string, error) {
	if s.cfg.CompleteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CompleteTimeout)
		defer cancel()
	}
	answer, err := s.Completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// BuildContext tags each chunk with its source title and joins them with a
// separator. The block stays within maxChars runes; the first chunk is always
// included, cut to the budget if needed.
func BuildContext(top []ranking.Scored, maxChars int) string {
	var b strings.Builder
	used := 0
	for i, sc := range top {
		entry := "[" + sc.Record.SourceTitle + "]: " + sc.Record.TextChunk
		cost := len([]rune(entry))
		if i > 0 {
			cost += len([]rune(contextSeparator))
		}
		if maxChars > 0 && used+cost > maxChars {
			if i == 0 {
				b.WriteString(string([]rune(entry)[:maxChars]))
			}
			break
		}
		if i > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(entry)
		used += cost
	}
	return b.String()
}

func buildPrompt(instruction, contextBlock, question string) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
