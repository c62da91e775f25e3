// db serves as an interface for the database where raw SQL goes in and
// convenient data structures come out. db is intended to be consumed by things
// like a repl (read eval print loop), a program, or a transport protocol.
package db

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
	"github.com/Lava-10/queryCraft/planner"
	"github.com/Lava-10/queryCraft/storage"
	"github.com/Lava-10/queryCraft/vm"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageTokenize Stage = "tokenize"
	StageParse    Stage = "parse"
	StageAnalyze  Stage = "analyze"
	StageOptimize Stage = "optimize"
	StagePrepare  Stage = "prepare"
	StageExecute  Stage = "execute"
)

// PipelineError tags the error of the first failing stage.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

const defaultPlanCacheSize = 128

type DB struct {
	// mu guards the catalog, the store and the plan cache. Reads such as
	// analysis and SELECT execution share the lock. Mutations and Run hold it
	// exclusively.
	mu      sync.RWMutex
	catalog *catalog.Catalog
	store   *storage.Store
	vm      *vm.Machine
	// plans caches prepared statements by their canonical token rendering. It
	// is nil when caching is disabled.
	plans     *lru.Cache
	cacheSize int
	stats     CacheStats
	logger    *slog.Logger
}

// CacheStats counts plan cache lookups made by Run.
type CacheStats struct {
	Hits   int
	Misses int
	// Evictions counts plans dropped because the catalog changed.
	Evictions int
}

type Option func(*DB)

// WithLogger sets the logger for statement and failure logging. Logging is
// discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// WithPlanCacheSize sets how many prepared plans Run keeps. Zero disables the
// cache.
func WithPlanCacheSize(n int) Option {
	return func(db *DB) {
		db.cacheSize = n
	}
}

// New returns an empty in memory database.
func New(opts ...Option) *DB {
	c := catalog.New()
	s := storage.New()
	db := &DB{
		catalog:   c,
		store:     s,
		vm:        vm.New(c, s),
		cacheSize: defaultPlanCacheSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.cacheSize > 0 {
		db.plans = lru.New(db.cacheSize)
	}
	return db
}

// Tokenize is the tokenize stage. It never fails.
func (*DB) Tokenize(sql string) []compiler.Token {
	return compiler.Tokenize(sql)
}

// Parse is the parse stage.
func (*DB) Parse(tokens []compiler.Token) (compiler.Stmt, error) {
	return compiler.Parse(tokens)
}

// Analyze is the analyze stage. It reads the current catalog.
func (db *DB) Analyze(stmt compiler.Stmt) (planner.Statement, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return planner.Analyze(stmt, db.catalog)
}

// Optimize is the optimize stage. It never fails.
func (*DB) Optimize(s planner.Statement) (planner.Statement, []planner.Rewrite) {
	return planner.Optimize(s)
}

// Prepare is the prepare stage. It reads the current catalog.
func (db *DB) Prepare(s planner.Statement) (*vm.Plan, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return planner.Prepare(s, db.catalog)
}

// Execute is the execute stage. SELECT plans share the lock with other
// readers while other plans hold it exclusively.
func (db *DB) Execute(plan *vm.Plan, args ...any) (*vm.Result, error) {
	if _, ok := plan.Command.(*vm.SelectCmd); ok {
		db.mu.RLock()
		defer db.mu.RUnlock()
	} else {
		db.mu.Lock()
		defer db.mu.Unlock()
	}
	return db.vm.Execute(plan, args)
}

// Run is the full pipeline. It returns the result of the statement or a
// *PipelineError naming the first stage that failed. Prepared SELECT and
// INSERT plans are cached, and a cached plan invalidated by a schema change is
// compiled again.
func (db *DB) Run(sql string, args ...any) (*vm.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	tokens := compiler.Tokenize(sql)
	key := compiler.Render(tokens)
	if plan, ok := db.cachedPlan(key); ok {
		res, err := db.vm.Execute(plan, args)
		if !errors.Is(err, vm.ErrVersionChanged) {
			return db.finish(sql, res, err, true)
		}
		db.plans.Remove(key)
		db.stats.Evictions += 1
		db.logger.Debug("evicted stale plan", "sql", sql)
	}
	plan, err := db.compile(tokens)
	if err != nil {
		db.logger.Debug("statement failed", "sql", sql, "err", err)
		return nil, err
	}
	res, err := db.vm.Execute(plan, args)
	if err == nil && db.plans != nil && cacheable(plan) {
		db.plans.Add(key, plan)
	}
	return db.finish(sql, res, err, false)
}

func (db *DB) cachedPlan(key string) (*vm.Plan, bool) {
	if db.plans == nil {
		return nil, false
	}
	v, ok := db.plans.Get(key)
	if !ok {
		db.stats.Misses += 1
		return nil, false
	}
	db.stats.Hits += 1
	return v.(*vm.Plan), true
}

// compile runs the stages from parse to prepare. The caller holds the lock.
func (db *DB) compile(tokens []compiler.Token) (*vm.Plan, error) {
	stmt, err := compiler.Parse(tokens)
	if err != nil {
		return nil, &PipelineError{Stage: StageParse, Err: err}
	}
	analyzed, err := planner.Analyze(stmt, db.catalog)
	if err != nil {
		return nil, &PipelineError{Stage: StageAnalyze, Err: err}
	}
	optimized, rewrites := planner.Optimize(analyzed)
	if len(rewrites) > 0 {
		db.logger.Debug("optimized statement", "rewrites", rewrites)
	}
	plan, err := planner.Prepare(optimized, db.catalog)
	if err != nil {
		return nil, &PipelineError{Stage: StagePrepare, Err: err}
	}
	return plan, nil
}

func (db *DB) finish(sql string, res *vm.Result, err error, cached bool) (*vm.Result, error) {
	if err != nil {
		db.logger.Debug("statement failed", "sql", sql, "stage", StageExecute, "err", err)
		return nil, &PipelineError{Stage: StageExecute, Err: err}
	}
	db.logger.Debug(
		"statement executed",
		"sql", sql,
		"rows", len(res.Rows),
		"rowsAffected", res.RowsAffected,
		"duration", res.Duration,
		"cached", cached,
	)
	return res, nil
}

// cacheable reports plans worth keeping. CREATE and DROP change the catalog
// they were prepared against so they are never reused.
func cacheable(plan *vm.Plan) bool {
	switch plan.Command.(type) {
	case *vm.SelectCmd, *vm.InsertCmd:
		return true
	}
	return false
}

// CacheStats returns the plan cache counters.
func (db *DB) CacheStats() CacheStats {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.stats
}

// TableNames returns the names of the tables in creation order.
func (db *DB) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.catalog.TableNames()
}

// Table returns the definition of a table.
func (db *DB) Table(name string) (*catalog.Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.catalog.GetTable(name)
}
