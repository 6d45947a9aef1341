package sandbox

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxExpressionLength and maxIdentDepth bound the sandbox's input so a
// malformed or hostile guard/template cannot force unbounded parsing or
// evaluation work (§4.1).
const (
	maxExpressionLength = 2048
	maxIdentDepth       = 8
)

// EvaluateGuard evaluates a boolean guard expression against env. Any
// failure — a parse error, an evaluation error, or a non-boolean result
// — is fail-closed: the guard is treated as not satisfied. Callers that
// want the underlying error should use Evaluate directly.
func EvaluateGuard(expression string, env map[string]any) bool {
	v, err := Evaluate(expression, env)
	if err != nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Evaluate parses and evaluates a single sandbox expression against env.
func Evaluate(expression string, env map[string]any) (any, error) {
	if len(expression) > maxExpressionLength {
		return nil, fmt.Errorf("sandbox: expression exceeds maximum length")
	}
	e, err := parseExpression(expression)
	if err != nil {
		return nil, err
	}
	return evalNode(e, env, 0)
}

func evalNode(e expr, env map[string]any, depth int) (any, error) {
	if depth > 64 {
		return nil, fmt.Errorf("sandbox: expression too deeply nested")
	}
	switch n := e.(type) {
	case litExpr:
		return n.value, nil
	case identExpr:
		return resolveIdent(n.parts, env)
	case unaryExpr:
		return evalUnary(n, env, depth)
	case binaryExpr:
		return evalBinary(n, env, depth)
	default:
		return nil, fmt.Errorf("sandbox: unknown expression node")
	}
}

// resolveIdent looks up a dotted identifier path against the flat
// binding environment (§4.1, §9 open question): first it tries the
// whole dotted path as a single flat key (matching how attribute keys
// are stored, "node.attr"), then falls back to nested map/struct-field
// traversal one segment at a time.
func resolveIdent(parts []string, env map[string]any) (any, error) {
	if len(parts) > maxIdentDepth {
		return nil, fmt.Errorf("sandbox: identifier path too deep")
	}
	flat := strings.Join(parts, ".")
	if v, ok := env[flat]; ok {
		return v, nil
	}

	cur, ok := env[parts[0]]
	if !ok {
		return nil, fmt.Errorf("sandbox: unbound identifier %q", flat)
	}
	for _, seg := range parts[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sandbox: cannot access %q on non-object value", seg)
		}
		cur, ok = m[seg]
		if !ok {
			return nil, fmt.Errorf("sandbox: unbound identifier %q", flat)
		}
	}
	return cur, nil
}

func evalUnary(n unaryExpr, env map[string]any, depth int) (any, error) {
	v, err := evalNode(n.operand, env, depth+1)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokNot:
		b, err := asBool(v)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case tokMinus:
		f, err := asNumber(v)
		if err != nil {
			return nil, err
		}
		return -f, nil
	default:
		return nil, fmt.Errorf("sandbox: unsupported unary operator")
	}
}

func evalBinary(n binaryExpr, env map[string]any, depth int) (any, error) {
	// Short-circuit && and || before evaluating the right operand.
	if n.op == tokAnd || n.op == tokOr {
		left, err := evalNode(n.left, env, depth+1)
		if err != nil {
			return nil, err
		}
		lb, err := asBool(left)
		if err != nil {
			return nil, err
		}
		if n.op == tokAnd && !lb {
			return false, nil
		}
		if n.op == tokOr && lb {
			return true, nil
		}
		right, err := evalNode(n.right, env, depth+1)
		if err != nil {
			return nil, err
		}
		return asBool(right)
	}

	left, err := evalNode(n.left, env, depth+1)
	if err != nil {
		return nil, err
	}
	right, err := evalNode(n.right, env, depth+1)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokEq:
		return looseEqual(left, right), nil
	case tokNeq:
		return !looseEqual(left, right), nil
	case tokLt, tokLte, tokGt, tokGte:
		return compareNumeric(n.op, left, right)
	case tokPlus:
		return arithOrConcat(left, right)
	case tokMinus, tokStar, tokSlash, tokPercent:
		return arith(n.op, left, right)
	default:
		return nil, fmt.Errorf("sandbox: unsupported binary operator")
	}
}

func asBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("sandbox: expected boolean, got %T", v)
	}
	return b, nil
}

func asNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("sandbox: expected number, got %T", v)
	}
}

func looseEqual(a, b any) bool {
	af, aerr := asNumber(a)
	bf, berr := asNumber(b)
	if aerr == nil && berr == nil {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareNumeric(op tokenKind, a, b any) (any, error) {
	af, err := asNumber(a)
	if err != nil {
		return nil, err
	}
	bf, err := asNumber(b)
	if err != nil {
		return nil, err
	}
	switch op {
	case tokLt:
		return af < bf, nil
	case tokLte:
		return af <= bf, nil
	case tokGt:
		return af > bf, nil
	case tokGte:
		return af >= bf, nil
	default:
		return nil, fmt.Errorf("sandbox: unsupported comparison")
	}
}

func arithOrConcat(a, b any) (any, error) {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr || bIsStr {
		if !aIsStr {
			as = stringify(a)
		}
		if !bIsStr {
			bs = stringify(b)
		}
		return as + bs, nil
	}
	return arith(tokPlus, a, b)
}

func arith(op tokenKind, a, b any) (any, error) {
	af, err := asNumber(a)
	if err != nil {
		return nil, err
	}
	bf, err := asNumber(b)
	if err != nil {
		return nil, err
	}
	switch op {
	case tokPlus:
		return af + bf, nil
	case tokMinus:
		return af - bf, nil
	case tokStar:
		return af * bf, nil
	case tokSlash:
		if bf == 0 {
			return nil, fmt.Errorf("sandbox: division by zero")
		}
		return af / bf, nil
	case tokPercent:
		if bf == 0 {
			return nil, fmt.Errorf("sandbox: modulo by zero")
		}
		return math.Mod(af, bf), nil
	default:
		return nil, fmt.Errorf("sandbox: unsupported arithmetic operator")
	}
}

func stringify(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case map[string]any, []any:
		if data, err := json.Marshal(n); err == nil {
			return string(data)
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}
