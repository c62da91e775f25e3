// trace runs a statement through the pipeline one stage at a time and records
// what each stage produced. The trace is a protobuf Struct so it renders to
// JSON for the CLI debug output and the pipeline endpoint.
package trace

import (
	"errors"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Lava-10/queryCraft/catalog"
	"github.com/Lava-10/queryCraft/compiler"
	"github.com/Lava-10/queryCraft/db"
	"github.com/Lava-10/queryCraft/planner"
	"github.com/Lava-10/queryCraft/vm"
)

// Trace keys in stage order. The error and stage keys are only set when a
// stage fails.
const (
	KeyTokens    = "tokens"
	KeyAST       = "ast"
	KeyAnalyzed  = "analyzed"
	KeyOptimized = "optimized"
	KeyPrepared  = "prepared"
	KeyResult    = "result"
	KeyError     = "error"
	KeyStage     = "stage"
)

// Run executes sql against d stage by stage. Stages after a failing stage are
// left out of the trace.
func Run(d *db.DB, sql string, args ...any) *structpb.Struct {
	t := map[string]any{}
	fail := func(stage db.Stage, err error) *structpb.Struct {
		t[KeyStage] = string(stage)
		t[KeyError] = err.Error()
		return build(t)
	}

	tokens := d.Tokenize(sql)
	t[KeyTokens] = tokensValue(tokens)

	stmt, err := d.Parse(tokens)
	if err != nil {
		return fail(db.StageParse, err)
	}
	t[KeyAST] = compiler.Format(stmt)

	analyzed, err := d.Analyze(stmt)
	if err != nil {
		return fail(db.StageAnalyze, err)
	}
	t[KeyAnalyzed] = statementValue(analyzed)

	optimized, rewrites := d.Optimize(analyzed)
	o := statementValue(optimized)
	applied := make([]any, 0, len(rewrites))
	for _, r := range rewrites {
		applied = append(applied, string(r))
	}
	o["rewrites"] = applied
	t[KeyOptimized] = o

	plan, err := d.Prepare(optimized)
	if err != nil {
		return fail(db.StagePrepare, err)
	}
	t[KeyPrepared] = planValue(plan)

	res, err := d.Execute(plan, args...)
	if err != nil {
		return fail(db.StageExecute, err)
	}
	t[KeyResult] = ResultValue(res)
	return build(t)
}

// build converts the trace to a Struct. Text that is not valid UTF-8 cannot be
// represented and is reported in place of the trace.
func build(t map[string]any) *structpb.Struct {
	s, err := structpb.NewStruct(t)
	if err != nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{
			KeyError: structpb.NewStringValue(err.Error()),
		}}
	}
	return s
}

// Marshal renders a trace as indented JSON.
func Marshal(s *structpb.Struct) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}

// Failed returns the stage and error recorded in a trace.
func Failed(s *structpb.Struct) (stage string, err error) {
	msg, ok := s.GetFields()[KeyError]
	if !ok {
		return "", nil
	}
	return s.GetFields()[KeyStage].GetStringValue(), errors.New(msg.GetStringValue())
}

func tokensValue(tokens []compiler.Token) []any {
	ret := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		ret = append(ret, map[string]any{
			"type":   tok.Type.String(),
			"value":  tok.Value,
			"offset": tok.Offset,
		})
	}
	return ret
}

func statementValue(s planner.Statement) map[string]any {
	ret := map[string]any{"version": s.CatalogVersion().String()}
	switch t := s.(type) {
	case *planner.SelectStatement:
		ret["kind"] = "SELECT"
		if t.Table != nil {
			ret["table"] = t.Table.Name
		}
		columns := []any{}
		for _, c := range t.Columns {
			columns = append(columns, map[string]any{
				"name": c.Name,
				"expr": compiler.FormatExpr(c.Expr),
				"type": c.Expr.Type().String(),
			})
		}
		ret["columns"] = columns
		if t.Where != nil {
			ret["where"] = compiler.FormatExpr(t.Where)
		}
		if len(t.OrderBy) > 0 {
			orderBy := []any{}
			for _, o := range t.OrderBy {
				dir := "ASC"
				if o.Desc {
					dir = "DESC"
				}
				orderBy = append(orderBy, compiler.FormatExpr(o.Expr)+" "+dir)
			}
			ret["orderBy"] = orderBy
		}
		if t.Limit != nil {
			ret["limit"] = *t.Limit
		}
		if t.Count {
			ret["count"] = true
		}
		if t.ScanColumns != nil {
			scan := []any{}
			for _, c := range t.ScanColumns {
				scan = append(scan, c)
			}
			ret["scanColumns"] = scan
		}
		ret["params"] = typesValue(t.ParamTypes)
	case *planner.InsertStatement:
		ret["kind"] = "INSERT"
		ret["table"] = t.Table.Name
		rows := []any{}
		for _, r := range t.Rows {
			row := []any{}
			for _, e := range r {
				row = append(row, compiler.FormatExpr(e))
			}
			rows = append(rows, row)
		}
		ret["rows"] = rows
		ret["params"] = typesValue(t.ParamTypes)
	case *planner.CreateStatement:
		ret["kind"] = "CREATE"
		ret["table"] = t.Name
		columns := []any{}
		for _, c := range t.Columns {
			columns = append(columns, map[string]any{
				"name":       c.Name,
				"type":       c.Type.String(),
				"primaryKey": c.PrimaryKey,
				"notNull":    c.NotNull,
			})
		}
		ret["columns"] = columns
		ret["noop"] = t.Noop
	case *planner.DropStatement:
		ret["kind"] = "DROP"
		ret["table"] = t.Name
		ret["noop"] = t.Noop
	}
	return ret
}

func planValue(p *vm.Plan) map[string]any {
	explain := []any{}
	for _, line := range p.Explain() {
		explain = append(explain, line)
	}
	header := []any{}
	for _, h := range p.ResultHeader {
		header = append(header, h)
	}
	return map[string]any{
		"version": p.Version.String(),
		"header":  header,
		"params":  typesValue(p.ParamTypes),
		"explain": explain,
	}
}

// ResultValue converts a result to plain JSON values. Rows hold numbers,
// strings, booleans and nulls.
func ResultValue(res *vm.Result) map[string]any {
	columns := []any{}
	for _, c := range res.Columns {
		columns = append(columns, c)
	}
	rows := []any{}
	for _, r := range res.Rows {
		row := make([]any, 0, len(r))
		for _, v := range r {
			row = append(row, v.Any())
		}
		rows = append(rows, row)
	}
	return map[string]any{
		"columns":         columns,
		"types":           typesValue(res.Types),
		"rows":            rows,
		"rowsAffected":    res.RowsAffected,
		"executionTimeMs": float64(res.Duration.Microseconds()) / 1000,
	}
}

func typesValue(types []catalog.Type) []any {
	ret := make([]any, 0, len(types))
	for _, t := range types {
		ret = append(ret, t.String())
	}
	return ret
}
