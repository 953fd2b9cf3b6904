// Package lifecycle owns service readiness: the driver handles, the schema
// card store, and the background build tasks that take the engine from cold
// start to a fully profiled card without blocking tool traffic.
package lifecycle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/adapters/datasource"
	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/guardrail"
	"github.com/querylens/querylens-engine/pkg/logging"
	"github.com/querylens/querylens-engine/pkg/planner"
	"github.com/querylens/querylens-engine/pkg/retrieval"
	"github.com/querylens/querylens-engine/pkg/schema"
	"github.com/querylens/querylens-engine/pkg/sqlast"
)

// Readiness phases.
const (
	PhaseIdle     = "IDLE"
	PhaseStarting = "STARTING"
	PhaseRunning  = "RUNNING"
	PhaseReady    = "READY"
	PhaseFailed   = "FAILED"
	PhaseStopped  = "STOPPED"
)

const buildVersion = "1"

// State is the externally observable readiness snapshot.
type State struct {
	Phase        string    `json:"phase"`
	Attempts     int       `json:"attempts"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
	ErrorMessage string    `json:"error_message,omitempty"`
	TableCount   int       `json:"table_count"`
	FastStart    bool      `json:"fast_start"`
	Enriched     bool      `json:"enriched"`
}

// Coordinator drives the startup protocol: fast-start build, READY, then a
// background enrichment pass that swaps in a fully profiled card. Enrichment
// failures never regress readiness.
type Coordinator struct {
	cfg         *config.Config
	logger      *zap.Logger
	dialect     string
	fingerprint string

	reflector datasource.Reflector
	runner    datasource.Runner
	embedder  retrieval.Embedder
	store     *schema.Store
	svc       *sqlast.Service
	guard     *guardrail.Guardrail

	mu        sync.Mutex
	state     State
	engine    *retrieval.Engine
	engineKey string
	enriched  bool

	readyOnce sync.Once
	readyCh   chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

// New resolves the configured dialect, connects the datasource adapter, and
// returns an idle coordinator. Connection failures here are fatal for the
// process; the caller decides the exit path.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Coordinator, error) {
	dialect := cfg.Dialect
	if dialect == "" {
		dialect = datasource.DetectDialect(cfg.DatabaseURL)
	}
	reg, err := datasource.Lookup(dialect)
	if err != nil {
		return nil, fmt.Errorf("resolving dialect: %w", err)
	}

	reflector, err := reg.NewReflector(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting reflector for %s: %w", logging.SanitizeDSN(cfg.DatabaseURL), err)
	}
	runner, err := reg.NewRunner(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		reflector.Close()
		return nil, fmt.Errorf("connecting runner for %s: %w", logging.SanitizeDSN(cfg.DatabaseURL), err)
	}

	return newCoordinator(cfg, dialect, reflector, runner, logger), nil
}

// NewWithHandles wires a coordinator around already connected driver
// handles. Callers that resolved their own adapter (or substitute one) use
// this; New is the connection-string path.
func NewWithHandles(cfg *config.Config, dialect string, reflector datasource.Reflector, runner datasource.Runner, logger *zap.Logger) *Coordinator {
	return newCoordinator(cfg, dialect, reflector, runner, logger)
}

func newCoordinator(cfg *config.Config, dialect string, reflector datasource.Reflector, runner datasource.Runner, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("lifecycle")
	svc := sqlast.NewService(logger)
	sqlDialect, err := sqlast.ParseDialect(dialect)
	if err != nil {
		sqlDialect = sqlast.DialectGeneric
	}
	return &Coordinator{
		cfg:         cfg,
		logger:      logger,
		dialect:     dialect,
		fingerprint: schema.TargetFingerprint(cfg.DatabaseURL),
		reflector:   reflector,
		runner:      runner,
		embedder:    retrieval.NewEmbedder(cfg.Embedding, logger),
		store:       schema.NewStore(logger),
		svc:         svc,
		guard: guardrail.New(runner, svc, sqlDialect, guardrail.Options{
			RowLimit:     cfg.Execution.RowLimit,
			MaxCellChars: cfg.Execution.MaxCellChars,
			Timeout:      cfg.Execution.Timeout(),
		}, logger),
		state:   State{Phase: PhaseIdle},
		readyCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start kicks the background build protocol. It returns immediately; callers
// observe progress through State and AwaitReady.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	// Every build gets its own ID so cached, fast-start, and enrichment
	// log lines correlate.
	c.logger = c.logger.With(zap.String("build_id", uuid.NewString()))

	c.mu.Lock()
	c.state.Phase = PhaseStarting
	c.state.StartedAt = time.Now()
	c.mu.Unlock()

	go c.run(ctx)
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	c.mu.Lock()
	c.state.Attempts++
	c.state.Phase = PhaseRunning
	c.mu.Unlock()

	// The path to READY is bounded; enrichment is not.
	startCtx := ctx
	if d := c.cfg.Startup.ReadyTimeout(); d > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if cached := c.loadCachedCard(); cached != nil {
		c.publish(ctx, cached, false)
		c.logger.Info("serving cached schema card",
			zap.String("reflection_hash", cached.ReflectionHash),
			zap.Int("tables", len(cached.Tables)))
	} else if err := c.fastStart(startCtx); err != nil {
		c.fail(err)
		return
	}

	c.enrich(ctx)
}

// fastStart builds a structure-only card under conservative caps so the
// service can declare READY quickly.
func (c *Coordinator) fastStart(ctx context.Context) error {
	card, err := schema.Build(ctx, c.reflector, schema.BuildOptions{
		Dialect:           c.dialect,
		TargetFingerprint: c.fingerprint,
		IncludeSchemas:    c.cfg.Sampling.IncludeSchemas,
		ExcludeSchemas:    c.cfg.Sampling.ExcludeSchemas,
		MaxTables:         c.cfg.Startup.MaxTables,
		SkipSampling:      true,
		Version:           buildVersion,
		FastStart:         true,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("fast-start build: %w", err)
	}
	c.publish(ctx, card, false)
	c.logger.Info("fast-start card published",
		zap.Int("tables", len(card.Tables)),
		zap.String("reflection_hash", card.ReflectionHash))
	return nil
}

// enrich performs the full build: complete table scope, sampling, profiling,
// and embeddings. The card swap is skipped when the reflected structure is
// unchanged and the active card is already enriched.
func (c *Coordinator) enrich(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	card, err := schema.Build(ctx, c.reflector, schema.BuildOptions{
		Dialect:           c.dialect,
		TargetFingerprint: c.fingerprint,
		IncludeSchemas:    c.cfg.Sampling.IncludeSchemas,
		ExcludeSchemas:    c.cfg.Sampling.ExcludeSchemas,
		SampleRows:        c.cfg.Sampling.Rows,
		SampleTimeout:     c.cfg.Sampling.Timeout(),
		Version:           buildVersion,
	}, c.logger)
	if err != nil {
		// The fast-start card stays active; readiness never regresses.
		c.logger.Warn("enrichment failed, keeping current card", zap.Error(err))
		c.mu.Lock()
		c.state.ErrorMessage = err.Error()
		c.mu.Unlock()
		return
	}

	current := c.store.Get()
	if current != nil && current.ReflectionHash == card.ReflectionHash && c.isEnriched() {
		c.logger.Info("structure unchanged, keeping current card",
			zap.String("reflection_hash", card.ReflectionHash))
		return
	}

	c.publish(ctx, card, true)
	c.saveCachedCard()
	c.logger.Info("enriched card published",
		zap.Int("tables", len(card.Tables)),
		zap.String("reflection_hash", card.ReflectionHash))
}

// publish installs a card, rebuilds the retrieval engine when its cache key
// changed, and marks the service READY.
func (c *Coordinator) publish(ctx context.Context, card *schema.Card, enriched bool) {
	c.store.Put(card)

	key := card.ReflectionHash + "|" + c.plannerFingerprint()
	c.mu.Lock()
	rebuild := key != c.engineKey
	c.mu.Unlock()

	var engine *retrieval.Engine
	if rebuild {
		engine = retrieval.BuildEngine(ctx, card, c.embedder, retrieval.Options{
			Alpha:              c.cfg.Retrieval.Alpha,
			TopK:               c.cfg.Retrieval.TopK,
			MaxColumnsPerTable: c.cfg.Embedding.MaxColumnsPerTable,
		}, c.logger)
	}

	c.mu.Lock()
	if rebuild {
		c.engine = engine
		c.engineKey = key
	}
	c.enriched = enriched
	c.state.Phase = PhaseReady
	c.state.CompletedAt = time.Now()
	c.state.TableCount = len(card.Tables)
	c.state.FastStart = card.Meta.FastStart
	c.state.Enriched = enriched
	c.mu.Unlock()

	c.readyOnce.Do(func() { close(c.readyCh) })
}

// plannerFingerprint hashes the configuration that shapes retrieval output,
// so a config change invalidates the cached engine even for the same card.
func (c *Coordinator) plannerFingerprint() string {
	h := sha256.Sum256(fmt.Appendf(nil, "%d|%g|%d|%s|%d",
		c.cfg.Retrieval.TopK,
		c.cfg.Retrieval.Alpha,
		c.cfg.Retrieval.MaxExpand,
		c.cfg.Embedding.Model,
		c.cfg.Embedding.MaxColumnsPerTable,
	))
	return hex.EncodeToString(h[:8])
}

func (c *Coordinator) loadCachedCard() *schema.Card {
	if c.cfg.Startup.CardCacheDir == "" {
		return nil
	}
	return schema.LoadFromDir(c.cfg.Startup.CardCacheDir, c.fingerprint, c.logger)
}

func (c *Coordinator) saveCachedCard() {
	if c.cfg.Startup.CardCacheDir == "" {
		return
	}
	c.store.SaveToDir(c.cfg.Startup.CardCacheDir)
}

func (c *Coordinator) fail(err error) {
	c.logger.Error("initialization failed", zap.Error(err))
	c.mu.Lock()
	c.state.Phase = PhaseFailed
	c.state.ErrorMessage = err.Error()
	c.state.CompletedAt = time.Now()
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.readyCh) })
}

// State returns a readiness snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether tool traffic may proceed.
func (c *Coordinator) Ready() bool {
	return c.State().Phase == PhaseReady
}

// NotReadyError shapes the standard readiness rejection for tools.
func (c *Coordinator) NotReadyError() *apperrors.ToolError {
	s := c.State()
	elapsed := 0.0
	if !s.StartedAt.IsZero() {
		elapsed = time.Since(s.StartedAt).Seconds()
	}
	if s.Phase == PhaseFailed {
		return apperrors.New(apperrors.CategoryReadiness, apperrors.CodeServiceFailed,
			"schema analysis failed: "+s.ErrorMessage)
	}
	return apperrors.NotReady(s.Phase, elapsed)
}

// AwaitReady blocks until the service is READY, the build fails, or the
// context expires.
func (c *Coordinator) AwaitReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s := c.State(); s.Phase != PhaseReady {
		return fmt.Errorf("initialization failed: %s", s.ErrorMessage)
	}
	return nil
}

// Card returns the active schema card, nil before READY.
func (c *Coordinator) Card() *schema.Card {
	return c.store.Get()
}

// Engine returns the retrieval engine for the active card.
func (c *Coordinator) Engine() *retrieval.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// Planner builds a planner over the current engine.
func (c *Coordinator) Planner() *planner.Planner {
	engine := c.Engine()
	if engine == nil {
		return nil
	}
	return planner.New(engine, planner.Options{
		TopK:      c.cfg.Retrieval.TopK,
		Alpha:     c.cfg.Retrieval.Alpha,
		MaxExpand: c.cfg.Retrieval.MaxExpand,
	}, c.logger)
}

// Guardrail returns the execution guardrail.
func (c *Coordinator) Guardrail() *guardrail.Guardrail { return c.guard }

// SQLService returns the shared SQL dialect service.
func (c *Coordinator) SQLService() *sqlast.Service { return c.svc }

// Dialect returns the active database dialect.
func (c *Coordinator) Dialect() string { return c.dialect }

// EmbeddingsEnabled reports the embedding capability for status output.
func (c *Coordinator) EmbeddingsEnabled() bool {
	return c.embedder != nil && c.embedder.Enabled()
}

func (c *Coordinator) isEnriched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enriched
}

// Shutdown cancels background work, waits up to grace for it to finish, and
// closes the driver handles.
func (c *Coordinator) Shutdown(grace time.Duration) {
	if c.cancel != nil {
		c.cancel()
	}
	select {
	case <-c.done:
	case <-time.After(grace):
		c.logger.Warn("background tasks did not stop within grace window")
	}

	c.mu.Lock()
	c.state.Phase = PhaseStopped
	c.mu.Unlock()

	c.reflector.Close()
	c.runner.Close()
	c.logger.Info("coordinator stopped")
}
