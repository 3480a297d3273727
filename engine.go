// Package hypoengine is the public facade over the hypothesis tree
// engine: construction, the top-level pipeline run, and plain
// passthrough accessors onto the Project Store. Internal packages hold
// all the logic; this file only wires them together and re-exports the
// types a caller needs, the way the teacher's mbflow.go sits in front of
// internal/application/executor.
package hypoengine

import (
	"context"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kestrelhq/hypoengine/internal/catalog"
	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/llmgateway"
	"github.com/kestrelhq/hypoengine/internal/matrixgen"
	"github.com/kestrelhq/hypoengine/internal/mece"
	"github.com/kestrelhq/hypoengine/internal/orchestrator"
	"github.com/kestrelhq/hypoengine/internal/refine"
	"github.com/kestrelhq/hypoengine/internal/research"
	"github.com/kestrelhq/hypoengine/internal/searchgateway"
	"github.com/kestrelhq/hypoengine/internal/selector"
	"github.com/kestrelhq/hypoengine/internal/store"
	"github.com/kestrelhq/hypoengine/internal/treebuilder"
)

// Re-exported domain types, so callers never need to import internal/domain
// directly.
type (
	HypothesisTree   = domain.HypothesisTree
	ValidationReport = domain.ValidationReport
	Matrix           = domain.Matrix
	MatrixType       = domain.MatrixType
	Framework        = domain.Framework
	TreeRecord       = domain.TreeRecord
	MatrixRecord     = domain.MatrixRecord
	VersionMeta      = domain.VersionMeta
	ProjectSnapshot  = domain.ProjectSnapshot
)

// Matrix kind constants, re-exported for callers that want to request
// one of the three non-default matrices via GenerateMatrix.
const (
	MatrixHypothesisPrioritization = domain.MatrixHypothesisPrioritization
	MatrixRiskRegister             = domain.MatrixRiskRegister
	MatrixTaskPrioritization       = domain.MatrixTaskPrioritization
	MatrixMeasurementPriorities    = domain.MatrixMeasurementPriorities
)

// RunResult and ProgressEvent are re-exported from internal/orchestrator
// verbatim; OR already defines the public contract shape.
type (
	RunResult     = orchestrator.RunResult
	ProgressEvent = orchestrator.ProgressEvent
)

// Config is everything needed to construct an Engine. Zero-value fields
// fall back to sensible defaults (see New); only OpenAIAPIKey is
// effectively required for any LLM-backed stage to function.
type Config struct {
	OpenAIAPIKey  string
	OpenAIModel   string // default "gpt-4o-mini"
	OpenAIBaseURL string // optional, for OpenAI-compatible providers

	// SearchAPIKey/SearchBaseURL configure the web Search Gateway. If
	// SearchAPIKey is empty, research falls back to searchgateway.Noop —
	// RS still runs, just without the search-digest half of its context.
	SearchAPIKey  string
	SearchBaseURL string
	HTTPClient    searchgateway.HTTPClient

	StoreRootDir string // default "./data/projects"

	RefinementMaxIterations int           // default 3, clamped to [1,5]
	ResearchStageTimeout    time.Duration // default 60s
	LLMCallTimeout          time.Duration // default 30s
	ResearchConcurrency     int           // default 2
}

func (c Config) withDefaults() Config {
	if c.OpenAIModel == "" {
		c.OpenAIModel = "gpt-4o-mini"
	}
	if c.StoreRootDir == "" {
		c.StoreRootDir = "./data/projects"
	}
	if c.RefinementMaxIterations == 0 {
		c.RefinementMaxIterations = 3
	}
	if c.ResearchStageTimeout == 0 {
		c.ResearchStageTimeout = 60 * time.Second
	}
	if c.LLMCallTimeout == 0 {
		c.LLMCallTimeout = 30 * time.Second
	}
	if c.ResearchConcurrency == 0 {
		c.ResearchConcurrency = 2
	}
	return c
}

// Engine is a fully wired hypothesis tree pipeline: one Framework
// Catalog, one LLM Gateway, one Search Gateway, and the stage chain the
// Orchestrator drives.
type Engine struct {
	orchestrator *orchestrator.Orchestrator
	matrixgen    *matrixgen.Generator
	store        *store.Store
	catalog      *catalog.Catalog
}

// New constructs an Engine from Config, loading the bundled framework
// catalog and wiring every stage. The only failure mode is a malformed
// bundled catalog or an unwritable store root — both ConfigError.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	fc, err := catalog.Load()
	if err != nil {
		return nil, err
	}
	sel := selector.New(fc)

	openaiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		openaiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	openaiClient := openai.NewClientWithConfig(openaiCfg)
	gateway := llmgateway.New(openaiClient, cfg.OpenAIModel, llmgateway.WithCallTimeout(cfg.LLMCallTimeout))

	var search searchgateway.Gateway
	if cfg.SearchAPIKey != "" {
		opts := []searchgateway.Option{}
		if cfg.HTTPClient != nil {
			opts = append(opts, searchgateway.WithHTTPClient(cfg.HTTPClient))
		}
		search = searchgateway.New(cfg.SearchBaseURL, cfg.SearchAPIKey, opts...)
	} else {
		search = searchgateway.Noop{}
	}

	builder := treebuilder.New(gateway)
	validator := mece.New()
	loop := refine.New(builder, validator, cfg.RefinementMaxIterations)
	researchStage := research.New(gateway, search,
		research.WithTimeout(cfg.ResearchStageTimeout),
		research.WithConcurrency(cfg.ResearchConcurrency))
	matrixGen := matrixgen.New(gateway)

	st, err := store.New(cfg.StoreRootDir)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(sel, researchStage, loop, matrixGen, st)

	return &Engine{orchestrator: orch, matrixgen: matrixGen, store: st, catalog: fc}, nil
}

// Run drives the full pipeline for one problem statement: framework
// selection, research, the build-validate refinement loop, the base
// prioritization matrix, and persistence. See orchestrator.Orchestrator.Run
// for the returned channel's semantics.
func (e *Engine) Run(ctx context.Context, problem, frameworkHint, projectID string) (RunResult, <-chan ProgressEvent, error) {
	return e.orchestrator.Run(ctx, problem, frameworkHint, projectID)
}

// GenerateMatrix derives one of the three non-default matrix kinds
// (risk_register, task_prioritization, measurement_priorities) from an
// already-built tree and persists it as a new version. The base
// hypothesis_prioritization matrix is produced automatically by Run; this
// is for the others, which the Orchestrator's fixed sequence never calls.
func (e *Engine) GenerateMatrix(ctx context.Context, kind MatrixType, projectID, problem string, tree HypothesisTree) (MatrixRecord, error) {
	matrix, err := e.matrixgen.Generate(ctx, kind, problem, tree)
	if err != nil {
		return MatrixRecord{}, err
	}
	meta, err := e.store.SaveMatrix(projectID, kind, matrix, "")
	if err != nil {
		return MatrixRecord{}, err
	}
	return MatrixRecord{
		Metadata: domain.RecordMetadata{ProjectID: projectID, Version: meta.Version, Timestamp: meta.Timestamp},
		Content:  matrix,
	}, nil
}

// LoadTree returns the tree at version, or the latest if version is nil.
func (e *Engine) LoadTree(projectID string, version *int) (TreeRecord, error) {
	return e.store.LoadTree(projectID, version)
}

// ListTreeVersions returns every persisted tree version for the project.
func (e *Engine) ListTreeVersions(projectID string) ([]VersionMeta, error) {
	return e.store.ListTreeVersions(projectID)
}

// LoadMatrix returns the matrix of the given kind at version, or the
// latest if version is nil.
func (e *Engine) LoadMatrix(projectID string, kind MatrixType, version *int) (MatrixRecord, error) {
	return e.store.LoadMatrix(projectID, kind, version)
}

// ListProjectMatrices returns every persisted matrix kind's version
// history for the project.
func (e *Engine) ListProjectMatrices(projectID string) (map[MatrixType][]VersionMeta, error) {
	return e.store.ListProjectMatrices(projectID)
}

// GetAll returns the latest tree and latest matrix of each kind for a
// project.
func (e *Engine) GetAll(projectID string) (ProjectSnapshot, error) {
	return e.store.GetAll(projectID)
}

// ListFrameworks returns the description of every bundled framework,
// keyed by name.
func (e *Engine) ListFrameworks() map[string]string {
	return e.catalog.DescribeAll()
}

// Compile-time check that *http.Client satisfies searchgateway.HTTPClient,
// the shape Config.HTTPClient expects.
var _ searchgateway.HTTPClient = (*http.Client)(nil)
