// Package engine orchestrates the full analysis pipeline: scan → parse →
// detect → resolve → boundaries → call graph → aggregate → confidence →
// outliers + conventions → graph intelligence → gold refresh.
package engine

import (
	"path/filepath"

	"drift/internal/boundaries"
	"drift/internal/callgraph"
	"drift/internal/cancel"
	"drift/internal/config"
	"drift/internal/detect"
	"drift/internal/events"
	"drift/internal/logging"
	"drift/internal/parser"
	"drift/internal/reach"
	"drift/internal/scanner"
	"drift/internal/storage"
	"drift/internal/taint"
)

// Engine is the in-process public surface of the analysis core.
type Engine struct {
	cfg      *config.Config
	store    *storage.Store
	logger   *logging.Logger
	scanner  *scanner.Scanner
	parsers  *parser.Manager
	registry *detect.Registry
	detector *detect.Engine
	taintReg *taint.Registry
	graph    *callgraph.Graph
	reach    *reach.Analyzer
	bus      *events.Bus
	token    *cancel.Token
}

// New wires the engine for a project. The store opens (and migrates)
// eagerly; the call graph rehydrates from persisted rows.
func New(cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	opts := storage.DefaultOptions(cfg.DatabasePath())
	opts.ReaderPoolSize = cfg.Storage.ReaderPoolSize
	opts.BusyTimeoutMs = cfg.Storage.BusyTimeoutMs
	opts.BatchSize = cfg.Storage.BatchSize
	opts.ChannelCapacity = cfg.Storage.ChannelCapacity

	store, err := storage.Open(opts, logger)
	if err != nil {
		return nil, err
	}

	registry := detect.DefaultRegistry()
	if err := detect.LoadTOMLPatterns(filepath.Join(cfg.ProjectRoot, cfg.Analysis.PatternsFile), registry); err != nil {
		store.Close()
		return nil, err
	}

	taintReg := taint.DefaultRegistry()
	if err := taintReg.LoadTOML(filepath.Join(cfg.ProjectRoot, cfg.Analysis.TaintRegistryFile)); err != nil {
		store.Close()
		return nil, err
	}

	functions, err := store.LoadFunctions()
	if err != nil {
		store.Close()
		return nil, err
	}
	edges, err := store.LoadCallEdges()
	if err != nil {
		store.Close()
		return nil, err
	}
	graph := callgraph.FromRows(functions, edges)

	e := &Engine{
		cfg:      cfg,
		store:    store,
		logger:   logger.Module("engine"),
		scanner:  scanner.New(cfg.ProjectRoot, &cfg.Scan, logger),
		parsers:  parser.NewManager(0, store, logger),
		registry: registry,
		detector: detect.NewEngine(registry, logger),
		taintReg: taintReg,
		graph:    graph,
		reach:    reach.NewAnalyzer(graph, store, cfg.Analysis.CTEFallbackEdges),
		bus:      events.NewBus(),
		token:    &cancel.Token{},
	}
	return e, nil
}

// Close drains and closes the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Cancel flips the process-level cancellation token. In-flight
// transactions commit; workers drain; the scan returns Cancelled.
func (e *Engine) Cancel() {
	e.token.Cancel()
}

// Bus exposes the event bus for subscribers.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Store exposes read access to derived outputs.
func (e *Engine) Store() *storage.Store {
	return e.store
}

// Graph exposes the in-memory call graph.
func (e *Engine) Graph() *callgraph.Graph {
	return e.graph
}

// Patterns pages the stable patterns output.
func (e *Engine) Patterns(cursor string, limit int) (*storage.Page[storage.PatternListItem], error) {
	return e.store.ListPatterns(cursor, limit)
}

// Violations pages the stable violations output.
func (e *Engine) Violations(cursor string, limit int) (*storage.Page[storage.ViolationListItem], error) {
	return e.store.ListViolations(cursor, limit)
}

// Status reads the materialized status singleton.
func (e *Engine) Status() (*storage.StatusSummary, error) {
	return e.store.Status()
}

// Security reads the materialized security singleton.
func (e *Engine) Security() (*storage.SecuritySummary, error) {
	return e.store.Security()
}

// sensitivityFor recomputes the reachability sensitivity map after the
// boundary phase.
func (e *Engine) sensitivityFor(accessPoints []boundaries.Boundary, fields []boundaries.SensitiveField) {
	e.reach.SetSensitivity(reach.BuildSensitivityMap(e.graph, accessPoints, fields))
}
