package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/domain/course"
	"github.com/yungbote/recollection-backend/internal/modules/learning/analysis"
	"github.com/yungbote/recollection-backend/internal/modules/learning/merger"
	"github.com/yungbote/recollection-backend/internal/modules/learning/strategy"
	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// LLM is the structured-output capability used for lesson and takeaway calls.
type LLM interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// AnalysisCache stores AnalyzedContent by content id. Get returns nil, nil on a miss.
type AnalysisCache interface {
	Get(ctx context.Context, contentID uuid.UUID) (*content.AnalyzedContent, error)
	Put(ctx context.Context, a *content.AnalyzedContent) error
}

// ReportFunc receives the label and fixed percentage of each stage as it begins.
type ReportFunc func(step string, pct int)

type Step struct {
	Label   string
	Percent int
}

// Stage checkpoints. Percentages are fixed and increasing; the task runtime reports 100 on success.
var (
	StepAnalyze   = Step{"analyzing content", 10}
	StepMerge     = Step{"merging content", 20}
	StepStrategy  = Step{"strategy selection", 25}
	StepStructure = Step{"lesson structuring", 30}
	StepTakeaways = Step{"takeaway extraction", 55}
	StepAssemble  = Step{"course assembly", 80}
)

type Config struct {
	AnalysisTimeout     time.Duration
	LessonTimeout       time.Duration
	TakeawayTimeout     time.Duration
	AnalysisConcurrency int
}

func (c Config) withDefaults() Config {
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = 2 * time.Minute
	}
	if c.LessonTimeout <= 0 {
		c.LessonTimeout = 3 * time.Minute
	}
	if c.TakeawayTimeout <= 0 {
		c.TakeawayTimeout = 2 * time.Minute
	}
	if c.AnalysisConcurrency <= 0 {
		c.AnalysisConcurrency = 4
	}
	return c
}

type Deps struct {
	Analyzer  analysis.Analyzer
	Cache     AnalysisCache
	Lessons   LLM
	Takeaways LLM
}

type Generator struct {
	log    *logger.Logger
	deps   Deps
	cfg    Config
	tracer trace.Tracer
	now    func() time.Time
}

func New(log *logger.Logger, deps Deps, cfg Config) *Generator {
	if deps.Takeaways == nil {
		deps.Takeaways = deps.Lessons
	}
	return &Generator{
		log:    log.With("service", "CourseGenerator"),
		deps:   deps,
		cfg:    cfg.withDefaults(),
		tracer: otel.Tracer("coursegen"),
		now:    time.Now,
	}
}

// Generate runs the pipeline over contents. analyzed may be shorter than
// contents or empty; any entry present for a content id is used as is.
// The returned course is not persisted.
func (g *Generator) Generate(ctx context.Context, contents []*content.Content, analyzed []*content.AnalyzedContent, report ReportFunc) (*course.Course, error) {
	if report == nil {
		report = func(string, int) {}
	}
	if len(contents) == 0 {
		return nil, apperr.Validation("generate course", "no contents")
	}
	ctx, span := g.tracer.Start(ctx, "coursegen.generate", trace.WithAttributes(attribute.Int("contents", len(contents))))
	defer span.End()

	c, err := g.generate(ctx, contents, analyzed, report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		return nil, err
	}
	return c, nil
}

func (g *Generator) generate(ctx context.Context, contents []*content.Content, analyzed []*content.AnalyzedContent, report ReportFunc) (*course.Course, error) {
	report(StepAnalyze.Label, StepAnalyze.Percent)
	aligned, err := g.ensureAnalysis(ctx, contents, analyzed)
	if err != nil {
		return nil, err
	}

	report(StepMerge.Label, StepMerge.Percent)
	merged, err := merger.Merge(contents, aligned)
	if err != nil {
		return nil, err
	}

	report(StepStrategy.Label, StepStrategy.Percent)
	strat := strategy.Select(merged.Genre)
	g.log.Info("Strategy selected",
		"genre", merged.Genre,
		"strategy", strat.Kind(),
		"sources", len(merged.SourceContentIDs),
		"topics", len(merged.Topics),
	)

	report(StepStructure.Label, StepStructure.Percent)
	var plans []strategy.LessonPlan
	err = g.call(ctx, StepStructure.Label, g.deps.Lessons, g.cfg.LessonTimeout, strat.LessonStructurePrompt(merged),
		func(obj map[string]any) (err error) {
			plans, err = strategy.DecodeLessonPlans(obj)
			return err
		})
	if err != nil {
		return nil, err
	}

	report(StepTakeaways.Label, StepTakeaways.Percent)
	var takeaways []course.Takeaway
	err = g.call(ctx, StepTakeaways.Label, g.deps.Takeaways, g.cfg.TakeawayTimeout, strat.TakeawaysPrompt(merged, plans),
		func(obj map[string]any) (err error) {
			takeaways, err = strategy.DecodeTakeaways(obj)
			return err
		})
	if err != nil {
		return nil, err
	}

	report(StepAssemble.Label, StepAssemble.Percent)
	_, span := g.tracer.Start(ctx, "coursegen.assemble")
	defer span.End()
	c := assemble(contents, merged, strat, plans, takeaways, g.now())
	if err := c.Validate(); err != nil {
		return nil, apperr.Generation(StepAssemble.Label, err)
	}
	return c, nil
}

// ensureAnalysis returns one AnalyzedContent per content, in content order.
// Provided entries and cache hits are never re-analyzed. Any failure aborts the run.
func (g *Generator) ensureAnalysis(ctx context.Context, contents []*content.Content, analyzed []*content.AnalyzedContent) ([]*content.AnalyzedContent, error) {
	ctx, span := g.tracer.Start(ctx, "coursegen.analyze")
	defer span.End()

	known := make(map[uuid.UUID]*content.AnalyzedContent, len(analyzed))
	for _, a := range analyzed {
		if a != nil {
			known[a.ContentID] = a
		}
	}

	for i, c := range contents {
		if c == nil {
			return nil, apperr.Validation("analyze content", "nil content at position %d", i)
		}
	}

	out := make([]*content.AnalyzedContent, len(contents))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.AnalysisConcurrency)
	for i, c := range contents {
		if a, ok := known[c.ID]; ok {
			out[i] = a
			continue
		}
		eg.Go(func() error {
			a, err := g.analyzeOne(egctx, c)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (g *Generator) analyzeOne(ctx context.Context, c *content.Content) (*content.AnalyzedContent, error) {
	op := fmt.Sprintf("analyze content %s", c.ID)
	if g.deps.Cache != nil {
		hit, err := g.deps.Cache.Get(ctx, c.ID)
		if err != nil {
			return nil, apperr.Analysis(op, fmt.Errorf("analysis cache: %w", err))
		}
		if hit != nil {
			return hit, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.AnalysisTimeout)
	defer cancel()
	a, err := g.deps.Analyzer.Analyze(callCtx, c)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindAnalysis {
			err = apperr.Analysis(op, err)
		}
		return nil, err
	}

	if g.deps.Cache != nil {
		if err := g.deps.Cache.Put(ctx, a); err != nil {
			g.log.Warn("Failed to cache content analysis", "content_id", c.ID, "error", err)
		}
	}
	return a, nil
}

// call issues one structured request and retries it once on a transient failure.
// Whatever error remains is reported as a generation error labelled with op.
func (g *Generator) call(ctx context.Context, op string, llm LLM, timeout time.Duration, p strategy.PromptSpec, decode func(map[string]any) error) error {
	ctx, span := g.tracer.Start(ctx, "coursegen."+p.Name)
	defer span.End()

	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = g.callOnce(ctx, op, llm, timeout, p, decode)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return nil
		}
		if ctx.Err() != nil || !apperr.IsTransient(err) || attempt == 2 {
			break
		}
		g.log.Warn("Structured call failed, retrying once",
			"op", op,
			"kind", apperr.KindOf(err),
			"error", err,
		)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return apperr.Generation(op, err)
}

func (g *Generator) callOnce(ctx context.Context, op string, llm LLM, timeout time.Duration, p strategy.PromptSpec, decode func(map[string]any) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	obj, err := llm.GenerateJSON(callCtx, p.System, p.User, p.Name, p.Schema)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			if callCtx.Err() == context.DeadlineExceeded {
				return apperr.Timeout(op, err)
			}
			return apperr.Provider(op, err)
		}
		return err
	}
	if err := decode(obj); err != nil {
		return apperr.SchemaViolation(op, err)
	}
	return nil
}
