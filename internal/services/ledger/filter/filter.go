// Package filter translates AIP-160 campaign filter expressions into SQL
// conditions for the ledger store.
package filter

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/pledgebank/internal/platform/errors"
	"github.com/louisbranch/pledgebank/internal/services/ledger/domain"
	"github.com/louisbranch/pledgebank/internal/services/ledger/storage"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// CampaignDeclarations returns the field declarations for campaign filtering.
func CampaignDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("creator", filtering.TypeString),
		filtering.DeclareIdent("funded", filtering.TypeBool),
		filtering.DeclareIdent("completed", filtering.TypeBool),
		filtering.DeclareIdent("target_amount", filtering.TypeInt),
		filtering.DeclareIdent("raised_amount", filtering.TypeInt),
		filtering.DeclareIdent("deadline", filtering.TypeTimestamp),
		filtering.DeclareIdent("phase", filtering.TypeString),
	)
}

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindAmount
	kindTimestamp
	kindPhase
)

type field struct {
	column string
	kind   valueKind
}

// fields maps filter field names to SQL columns. Phase has no column; it
// expands into a predicate over the stored flags and deadline.
var fields = map[string]field{
	"creator":       {column: "creator", kind: kindString},
	"funded":        {column: "funded", kind: kindBool},
	"completed":     {column: "completed", kind: kindBool},
	"target_amount": {column: "target_amount", kind: kindAmount},
	"raised_amount": {column: "raised_amount", kind: kindAmount},
	"deadline":      {column: "deadline", kind: kindTimestamp},
	"phase":         {kind: kindPhase},
}

// ParseCampaignFilter parses an AIP-160 filter and returns a SQL condition.
// now anchors phase predicates. An empty filter yields an empty condition.
func ParseCampaignFilter(filterStr string, now time.Time) (storage.Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return storage.Condition{}, nil
	}

	decls, err := CampaignDeclarations()
	if err != nil {
		return storage.Condition{}, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return storage.Condition{}, invalid(err)
	}

	t := translator{now: now.UTC()}
	cond, err := t.expr(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return storage.Condition{}, invalid(err)
	}
	return cond, nil
}

func invalid(err error) error {
	return apperrors.Wrap(apperrors.CodeFilterInvalid, "invalid filter: "+err.Error(), err)
}

type translator struct {
	now time.Time
}

func (t translator) expr(e *expr.Expr) (storage.Condition, error) {
	if e == nil {
		return storage.Condition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return t.call(kind.CallExpr)
	case *expr.Expr_IdentExpr:
		// A bare boolean field is shorthand for field = true.
		f, ok := fields[kind.IdentExpr.Name]
		if !ok || f.kind != kindBool {
			return storage.Condition{}, fmt.Errorf("unsupported bare identifier: %s", kind.IdentExpr.Name)
		}
		return storage.Condition{Clause: f.column + " = ?", Params: []any{int64(1)}}, nil
	default:
		return storage.Condition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func (t translator) call(call *expr.Expr_Call) (storage.Condition, error) {
	switch call.Function {
	case filtering.FunctionAnd, "_&&_":
		return t.join(call.Args, "AND")
	case filtering.FunctionOr, "_||_":
		return t.join(call.Args, "OR")
	case filtering.FunctionNot, "!_":
		if len(call.Args) != 1 {
			return storage.Condition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := t.expr(call.Args[0])
		if err != nil {
			return storage.Condition{}, err
		}
		return storage.Condition{Clause: "NOT (" + inner.Clause + ")", Params: inner.Params}, nil
	case filtering.FunctionEquals, "_==_":
		return t.comparison(call.Args, "=")
	case filtering.FunctionNotEquals, "_!=_":
		return t.comparison(call.Args, "!=")
	case filtering.FunctionLessThan, "_<_":
		return t.comparison(call.Args, "<")
	case filtering.FunctionLessEquals, "_<=_":
		return t.comparison(call.Args, "<=")
	case filtering.FunctionGreaterThan, "_>_":
		return t.comparison(call.Args, ">")
	case filtering.FunctionGreaterEquals, "_>=_":
		return t.comparison(call.Args, ">=")
	default:
		return storage.Condition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (t translator) join(args []*expr.Expr, op string) (storage.Condition, error) {
	if len(args) != 2 {
		return storage.Condition{}, fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := t.expr(args[0])
	if err != nil {
		return storage.Condition{}, err
	}
	right, err := t.expr(args[1])
	if err != nil {
		return storage.Condition{}, err
	}
	params := make([]any, 0, len(left.Params)+len(right.Params))
	params = append(params, left.Params...)
	params = append(params, right.Params...)
	return storage.Condition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: params,
	}, nil
}

func (t translator) comparison(args []*expr.Expr, op string) (storage.Condition, error) {
	if len(args) != 2 {
		return storage.Condition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	name, err := extractFieldName(args[0])
	if err != nil {
		return storage.Condition{}, err
	}
	f, ok := fields[name]
	if !ok {
		return storage.Condition{}, fmt.Errorf("unknown field: %s", name)
	}

	switch f.kind {
	case kindPhase:
		return t.phase(args[1], op)
	case kindBool:
		if op != "=" && op != "!=" {
			return storage.Condition{}, fmt.Errorf("%s supports only = and !=", name)
		}
		value, err := extractBool(args[1])
		if err != nil {
			return storage.Condition{}, err
		}
		var flag int64
		if value {
			flag = 1
		}
		return storage.Condition{Clause: fmt.Sprintf("%s %s ?", f.column, op), Params: []any{flag}}, nil
	}

	value, err := extractValue(args[1])
	if err != nil {
		return storage.Condition{}, err
	}
	param, err := convert(name, f.kind, value)
	if err != nil {
		return storage.Condition{}, err
	}
	return storage.Condition{Clause: fmt.Sprintf("%s %s ?", f.column, op), Params: []any{param}}, nil
}

// phase expands a phase comparison using the same precedence as
// domain.Campaign.PhaseAt.
func (t translator) phase(value *expr.Expr, op string) (storage.Condition, error) {
	if op != "=" && op != "!=" {
		return storage.Condition{}, fmt.Errorf("phase supports only = and !=")
	}
	raw, err := extractValue(value)
	if err != nil {
		return storage.Condition{}, err
	}
	label, ok := raw.(string)
	if !ok {
		return storage.Condition{}, fmt.Errorf("phase must be a string")
	}
	phase, ok := domain.ParsePhase(label)
	if !ok {
		return storage.Condition{}, fmt.Errorf("unknown phase: %s", label)
	}

	now := t.now.UnixMilli()
	var cond storage.Condition
	switch phase {
	case domain.PhasePaidOut:
		cond = storage.Condition{Clause: "completed = 1"}
	case domain.PhaseSucceededUnclaimed:
		cond = storage.Condition{Clause: "(completed = 0 AND funded = 1)"}
	case domain.PhaseOngoing:
		cond = storage.Condition{Clause: "(completed = 0 AND funded = 0 AND deadline > ?)", Params: []any{now}}
	case domain.PhaseFailed:
		cond = storage.Condition{Clause: "(completed = 0 AND funded = 0 AND deadline <= ?)", Params: []any{now}}
	}
	if op == "!=" {
		cond.Clause = "NOT " + cond.Clause
	}
	return cond, nil
}

func convert(name string, kind valueKind, value any) (any, error) {
	switch kind {
	case kindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", name)
		}
		return s, nil
	case kindAmount:
		switch v := value.(type) {
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("%s must not be negative", name)
			}
			return storage.EncodeAmount(uint64(v)), nil
		case uint64:
			return storage.EncodeAmount(v), nil
		default:
			return nil, fmt.Errorf("%s must be an integer", name)
		}
	case kindTimestamp:
		ts, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("%s must be a timestamp", name)
		}
		return ts.UTC().UnixMilli(), nil
	default:
		return nil, fmt.Errorf("unsupported field: %s", name)
	}
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractBool(e *expr.Expr) (bool, error) {
	if e == nil {
		return false, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		switch kind.IdentExpr.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, fmt.Errorf("expected boolean, got %s", kind.IdentExpr.Name)
	case *expr.Expr_ConstExpr:
		if v, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_BoolValue); ok {
			return v.BoolValue, nil
		}
		return false, fmt.Errorf("expected boolean constant")
	default:
		return false, fmt.Errorf("expected boolean, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == filtering.FunctionTimestamp && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}
	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func extractTimestampValue(e *expr.Expr) (time.Time, error) {
	if e == nil {
		return time.Time{}, fmt.Errorf("nil timestamp argument")
	}
	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	value, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}
	ts, err := time.Parse(time.RFC3339Nano, value.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", value.StringValue)
	}
	return ts.UTC(), nil
}
