package zeta

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/chosenoffset/zeta/pkg/zeta/parser"
)

var incrementShorthand = regexp.MustCompile(`^\s*([A-Za-z_$][A-Za-z0-9_$]*)(\+\+|--)\s*$`)

// Evaluate returns the value of expr against the current namespace. The
// parsed form is cached by exact text. Failures are reported and yield nil.
func (e *Engine) Evaluate(expr string) any {
	v, err := e.evaluate(expr)
	if err != nil {
		e.Report(err)
		return nil
	}
	return v
}

// Execute runs an imperative directive body. Three shapes are recognized, in
// order: `name++` / `name--`, a single top-level `name = expr`, and any
// statement sequence. It returns the written value for the first two shapes
// and the last expression statement's value otherwise. Failures are
// reported and yield nil.
func (e *Engine) Execute(code string) any {
	if !e.ready("execute") {
		return nil
	}
	e.metrics.RecordEvaluation()

	if m := incrementShorthand.FindStringSubmatch(code); m != nil {
		return e.executeIncrement(code, m[1], m[2])
	}

	if target, rhs, ok := splitAssignment(code); ok {
		value, err := e.evaluate(rhs)
		if err != nil {
			e.Report(err)
			return nil
		}
		e.Write(target, value)
		return value
	}

	program, err := e.compileProgram(code)
	if err != nil {
		e.Report(err)
		return nil
	}
	result, runErr := e.run(func(ev *evaluator) (any, error) {
		return ev.evalProgram(program)
	})
	if runErr != nil {
		e.Report(&Error{Kind: EvaluationError, Source: code, Err: runErr})
		return nil
	}
	return result
}

func (e *Engine) executeIncrement(code, name, op string) any {
	current, err := e.evaluate(name)
	if err != nil {
		e.Report(err)
		return nil
	}
	n, ok := toNumeric(current)
	if !ok {
		e.Report(newError(EvaluationError, code, "cannot apply %s to %s", op, typeName(current)))
		return nil
	}
	next := applyStep(n, op)
	e.Write(name, next)
	return next
}

// splitAssignment recognizes `identifier = expression` with exactly one
// top-level assignment token and no top-level semicolon.
func splitAssignment(code string) (target, rhs string, ok bool) {
	l := parser.NewLexer(code)
	var before []parser.Token
	assignAt := -1
	depth := 0
	for tok := l.NextToken(); tok.Type != parser.EOF; tok = l.NextToken() {
		switch tok.Type {
		case parser.LPAREN, parser.LBRACKET:
			depth++
		case parser.RPAREN, parser.RBRACKET:
			depth--
		case parser.SEMICOLON:
			if depth == 0 {
				return "", "", false
			}
		case parser.ASSIGN:
			if depth == 0 {
				if assignAt >= 0 {
					return "", "", false
				}
				assignAt = tok.Position
				continue
			}
		}
		if assignAt < 0 {
			before = append(before, tok)
		}
	}
	if assignAt < 0 || len(before) != 1 || before[0].Type != parser.IDENT {
		return "", "", false
	}
	return before[0].Literal, strings.TrimSpace(code[assignAt+1:]), true
}

// evaluate compiles (or fetches) and runs expr without reporting.
func (e *Engine) evaluate(expr string) (any, *Error) {
	if !e.ready("evaluate") {
		return nil, &Error{Kind: EvaluationError, Source: expr, Err: ErrNotInitialized}
	}
	e.metrics.RecordEvaluation()

	node, err := e.compile(expr)
	if err != nil {
		return nil, err
	}
	v, runErr := e.run(func(ev *evaluator) (any, error) {
		return ev.eval(node)
	})
	if runErr != nil {
		return nil, &Error{Kind: EvaluationError, Source: expr, Err: runErr}
	}
	return v, nil
}

func (e *Engine) compile(expr string) (parser.Expression, *Error) {
	if node, ok := e.exprCache[expr]; ok {
		e.metrics.RecordCache(true)
		return node, nil
	}
	e.metrics.RecordCache(false)

	node, err := parser.ParseExpression(expr)
	if err != nil {
		return nil, &Error{Kind: CompileError, Source: expr, Err: err}
	}
	if n, limit := parser.CountNodes(node), e.limits.MaxExpressionNodes; limit > 0 && n > limit {
		return nil, newError(CompileError, expr, "expression complexity (%d nodes) exceeds limit (%d)", n, limit)
	}
	e.exprCache[expr] = node
	return node, nil
}

func (e *Engine) compileProgram(code string) (*parser.Program, *Error) {
	if program, ok := e.programCache[code]; ok {
		e.metrics.RecordCache(true)
		return program, nil
	}
	e.metrics.RecordCache(false)

	program, err := parser.ParseStatements(code)
	if err != nil {
		return nil, &Error{Kind: CompileError, Source: code, Err: err}
	}
	if n, limit := program.CountNodes(), e.limits.MaxExpressionNodes; limit > 0 && n > limit {
		return nil, newError(CompileError, code, "statement complexity (%d nodes) exceeds limit (%d)", n, limit)
	}
	e.programCache[code] = program
	return program, nil
}

// run executes fn, turning a panic from a helper into an error.
func (e *Engine) run(fn func(ev *evaluator) (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, panicError(r)
		}
	}()
	return fn(&evaluator{engine: e})
}

// evaluator walks an AST against the engine's live namespace. Assignments
// go through Engine.Write.
type evaluator struct {
	engine *Engine
}

func (ev *evaluator) evalProgram(program *parser.Program) (any, error) {
	var result any
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *parser.AssignStatement:
			v, err := ev.evalAssign(s)
			if err != nil {
				return nil, err
			}
			result = v
		case *parser.ExpressionStatement:
			v, err := ev.eval(s.Expression)
			if err != nil {
				return nil, err
			}
			result = v
		default:
			return nil, fmt.Errorf("unknown statement type: %T", stmt)
		}
	}
	return result, nil
}

func (ev *evaluator) evalAssign(s *parser.AssignStatement) (any, error) {
	value, err := ev.eval(s.Value)
	if err != nil {
		return nil, err
	}
	if s.Operator != "=" {
		current, err := ev.lookup(s.Name.Value)
		if err != nil {
			return nil, err
		}
		value, err = evalInfix(strings.TrimSuffix(s.Operator, "="), current, value)
		if err != nil {
			return nil, err
		}
	}
	ev.engine.Write(s.Name.Value, value)
	return value, nil
}

func (ev *evaluator) eval(node parser.Expression) (any, error) {
	switch node := node.(type) {
	case *parser.Identifier:
		return ev.lookup(node.Value)

	case *parser.ThisExpression:
		return ev.engine.namespace, nil

	case *parser.IntegerLiteral:
		return node.Value, nil

	case *parser.FloatLiteral:
		return node.Value, nil

	case *parser.StringLiteral:
		return node.Value, nil

	case *parser.BooleanLiteral:
		return node.Value, nil

	case *parser.NullLiteral:
		return nil, nil

	case *parser.ArrayLiteral:
		elems := make([]any, 0, len(node.Elements))
		for _, el := range node.Elements {
			v, err := ev.eval(el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return elems, nil

	case *parser.PrefixExpression:
		right, err := ev.eval(node.Right)
		if err != nil {
			return nil, err
		}
		return evalPrefix(node.Operator, right)

	case *parser.UpdateExpression:
		return ev.evalUpdate(node)

	case *parser.InfixExpression:
		return ev.evalInfixExpression(node)

	case *parser.ConditionalExpression:
		cond, err := ev.eval(node.Condition)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return ev.eval(node.Consequence)
		}
		return ev.eval(node.Alternative)

	case *parser.DotExpression:
		left, err := ev.eval(node.Left)
		if err != nil {
			return nil, err
		}
		return property(left, node.Property.Value)

	case *parser.IndexExpression:
		left, err := ev.eval(node.Left)
		if err != nil {
			return nil, err
		}
		index, err := ev.eval(node.Index)
		if err != nil {
			return nil, err
		}
		return indexValue(left, index)

	case *parser.CallExpression:
		return ev.evalCall(node)

	case nil:
		return nil, errors.New("empty expression")

	default:
		return nil, fmt.Errorf("unknown node type: %T", node)
	}
}

func (ev *evaluator) lookup(name string) (any, error) {
	v, ok := ev.engine.namespace.Get(name)
	if !ok {
		return nil, fmt.Errorf("%s is not defined", name)
	}
	return v, nil
}

// evalInfixExpression short-circuits && and || and returns the deciding
// operand, as scripts expect from `name || "anonymous"`.
func (ev *evaluator) evalInfixExpression(node *parser.InfixExpression) (any, error) {
	left, err := ev.eval(node.Left)
	if err != nil {
		return nil, err
	}
	switch node.Operator {
	case "&&":
		if !Truthy(left) {
			return left, nil
		}
		return ev.eval(node.Right)
	case "||":
		if Truthy(left) {
			return left, nil
		}
		return ev.eval(node.Right)
	}
	right, err := ev.eval(node.Right)
	if err != nil {
		return nil, err
	}
	return evalInfix(node.Operator, left, right)
}

func (ev *evaluator) evalUpdate(node *parser.UpdateExpression) (any, error) {
	ident, ok := node.Target.(*parser.Identifier)
	if !ok {
		return nil, fmt.Errorf("invalid %s target: %s", node.Operator, node.Target)
	}
	current, err := ev.lookup(ident.Value)
	if err != nil {
		return nil, err
	}
	n, ok := toNumeric(current)
	if !ok {
		return nil, fmt.Errorf("cannot apply %s to %s", node.Operator, typeName(current))
	}
	next := applyStep(n, node.Operator)
	ev.engine.Write(ident.Value, next)
	if node.Prefix {
		return next, nil
	}
	return n.value(), nil
}

func (ev *evaluator) evalCall(node *parser.CallExpression) (any, error) {
	fnValue, err := ev.eval(node.Function)
	if err != nil {
		return nil, err
	}
	fn, ok := fnValue.(Helper)
	if !ok {
		if raw, isFunc := fnValue.(func(...any) (any, error)); isFunc {
			fn = raw
		} else {
			return nil, fmt.Errorf("%s is not a function", node.Function)
		}
	}

	args := make([]any, 0, len(node.Arguments))
	for _, a := range node.Arguments {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn(args...)
}

func applyStep(n numeric, op string) any {
	if n.isInt {
		if op == "++" {
			return n.i + 1
		}
		return n.i - 1
	}
	if op == "++" {
		return n.f + 1
	}
	return n.f - 1
}

func evalPrefix(operator string, right any) (any, error) {
	switch operator {
	case "!":
		return !Truthy(right), nil
	case "-":
		n, ok := toNumeric(right)
		if !ok {
			return math.NaN(), nil
		}
		if n.isInt {
			return -n.i, nil
		}
		return -n.f, nil
	case "+":
		n, ok := toNumeric(right)
		if !ok {
			return math.NaN(), nil
		}
		return n.value(), nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", operator)
	}
}

func evalInfix(operator string, left, right any) (any, error) {
	switch operator {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "===":
		return SameValue(left, right), nil
	case "!==":
		return !SameValue(left, right), nil
	case "&&":
		if !Truthy(left) {
			return left, nil
		}
		return right, nil
	case "||":
		if Truthy(left) {
			return left, nil
		}
		return right, nil
	}

	ls, lIsString := left.(string)
	rs, rIsString := right.(string)

	switch {
	case operator == "+" && (lIsString || rIsString):
		return ToString(left) + ToString(right), nil
	case lIsString && rIsString:
		return evalStringInfix(operator, ls, rs)
	}

	l, lok := toNumeric(left)
	r, rok := toNumeric(right)
	if !lok || !rok {
		if isComparison(operator) {
			return false, nil
		}
		return nil, fmt.Errorf("invalid operands for %s: %s and %s", operator, typeName(left), typeName(right))
	}
	if l.isInt && r.isInt {
		return evalIntegerInfix(operator, l.i, r.i)
	}
	return evalFloatInfix(operator, l.float(), r.float())
}

func isComparison(operator string) bool {
	switch operator {
	case "<", ">", "<=", ">=":
		return true
	}
	return false
}

func evalStringInfix(operator string, left, right string) (any, error) {
	switch operator {
	case "<":
		return left < right, nil
	case ">":
		return left > right, nil
	case "<=":
		return left <= right, nil
	case ">=":
		return left >= right, nil
	}
	l, lok := toNumeric(left)
	r, rok := toNumeric(right)
	if !lok || !rok {
		return math.NaN(), nil
	}
	if l.isInt && r.isInt {
		return evalIntegerInfix(operator, l.i, r.i)
	}
	return evalFloatInfix(operator, l.float(), r.float())
}

func evalIntegerInfix(operator string, left, right int64) (any, error) {
	switch operator {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		if right == 0 {
			return nil, errors.New("division by zero")
		}
		if left%right == 0 {
			return left / right, nil
		}
		return float64(left) / float64(right), nil
	case "%":
		if right == 0 {
			return nil, errors.New("division by zero")
		}
		return left % right, nil
	case "<":
		return left < right, nil
	case ">":
		return left > right, nil
	case "<=":
		return left <= right, nil
	case ">=":
		return left >= right, nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", operator)
	}
}

func evalFloatInfix(operator string, left, right float64) (any, error) {
	switch operator {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		if right == 0 {
			return nil, errors.New("division by zero")
		}
		return left / right, nil
	case "%":
		if right == 0 {
			return nil, errors.New("division by zero")
		}
		return math.Mod(left, right), nil
	case "<":
		return left < right, nil
	case ">":
		return left > right, nil
	case "<=":
		return left <= right, nil
	case ">=":
		return left >= right, nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", operator)
	}
}

// property reads obj.name. Missing keys yield nil; reading from nil fails.
func property(obj any, name string) (any, error) {
	switch o := obj.(type) {
	case nil:
		return nil, fmt.Errorf("cannot read property %q of null", name)
	case map[string]any:
		return o[name], nil
	case Namespace:
		return o[name], nil
	case string:
		if name == "length" {
			return int64(len([]rune(o))), nil
		}
		return nil, nil
	}

	if items, ok := AsSlice(obj); ok {
		if name == "length" {
			return int64(len(items)), nil
		}
		return nil, nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot read property %q of null", name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, nil
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Struct:
		f := rv.FieldByName(name)
		if !f.IsValid() || !f.CanInterface() {
			return nil, nil
		}
		return f.Interface(), nil
	}
	return nil, nil
}

func indexValue(obj any, index any) (any, error) {
	if obj == nil {
		return nil, fmt.Errorf("cannot read index %s of null", ToString(index))
	}
	if s, ok := obj.(string); ok {
		i, ok := toInt(index)
		runes := []rune(s)
		if !ok || i < 0 || int(i) >= len(runes) {
			return nil, nil
		}
		return string(runes[i]), nil
	}
	if items, ok := AsSlice(obj); ok {
		i, ok := toInt(index)
		if !ok {
			if f, isFloat := index.(float64); isFloat && f == math.Trunc(f) {
				i, ok = int64(f), true
			}
		}
		if !ok || i < 0 || int(i) >= len(items) {
			return nil, nil
		}
		return items[i], nil
	}
	return property(obj, ToString(index))
}
