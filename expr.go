package pulsive

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EvalContext binds the data an Expr reads from: an optional target
// entity, the full entity store, globals, the current message's
// params, and the RNG draws land against (§4.1).
type EvalContext struct {
	Target   *Entity
	Entities *EntityStore
	Globals  *ValueMap
	Params   *ValueMap
	Rng      *Rng
}

// WithTarget returns a copy of ctx bound to target.
func (c EvalContext) WithTarget(target *Entity) EvalContext {
	c.Target = target
	return c
}

// ExprKind discriminates the node types of Expr.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprProperty
	ExprEntityProperty
	ExprGlobal
	ExprParam
	ExprAdd
	ExprSub
	ExprMul
	ExprDiv
	ExprMod
	ExprNeg
	ExprAbs
	ExprMin
	ExprMax
	ExprClamp
	ExprFloor
	ExprCeil
	ExprRound
	ExprEq
	ExprNe
	ExprLt
	ExprLe
	ExprGt
	ExprGe
	ExprAnd
	ExprOr
	ExprNot
	ExprIf
	ExprHasFlag
	ExprEntityExists
	ExprCountEntities
	ExprRandom
	ExprRandomRange
	ExprRandomInt
	ExprWeightedRandom
	ExprConcat
	ExprFormat
)

// Expr is the total AST for reads and pure computation (§3, §4.1). It
// is built with the constructor functions below rather than composite
// literals so every node carries only the fields its kind needs.
type Expr struct {
	kind ExprKind

	lit Value

	name string // Property/Global/Param name, or EntityProperty's property name
	ref  EntityRef

	a, b, c *Expr
	list    []Expr

	flag DefId
	kind_ DefId // CountEntities target kind

	template string
}

func Lit(v Value) Expr                         { return Expr{kind: ExprLiteral, lit: v} }
func LitInt(i int64) Expr                      { return Lit(IntValue(i)) }
func LitFloat(f float64) Expr                  { return Lit(FloatValue(f)) }
func LitString(s string) Expr                  { return Lit(StringValue(s)) }
func Property(name string) Expr                { return Expr{kind: ExprProperty, name: name} }
func EntityProperty(ref EntityRef, name string) Expr {
	return Expr{kind: ExprEntityProperty, ref: ref, name: name}
}
func Global(name string) Expr { return Expr{kind: ExprGlobal, name: name} }
func Param(name string) Expr  { return Expr{kind: ExprParam, name: name} }

func bin(k ExprKind, a, b Expr) Expr   { return Expr{kind: k, a: &a, b: &b} }
func un(k ExprKind, a Expr) Expr       { return Expr{kind: k, a: &a} }

func Add(a, b Expr) Expr { return bin(ExprAdd, a, b) }
func Sub(a, b Expr) Expr { return bin(ExprSub, a, b) }
func Mul(a, b Expr) Expr { return bin(ExprMul, a, b) }
func Div(a, b Expr) Expr { return bin(ExprDiv, a, b) }
func Mod(a, b Expr) Expr { return bin(ExprMod, a, b) }
func Neg(a Expr) Expr    { return un(ExprNeg, a) }
func Abs(a Expr) Expr    { return un(ExprAbs, a) }
func Min(a, b Expr) Expr { return bin(ExprMin, a, b) }
func Max(a, b Expr) Expr { return bin(ExprMax, a, b) }
func Clamp(v, min, max Expr) Expr {
	return Expr{kind: ExprClamp, a: &v, b: &min, c: &max}
}
func Floor(a Expr) Expr { return un(ExprFloor, a) }
func Ceil(a Expr) Expr  { return un(ExprCeil, a) }
func Round(a Expr) Expr { return un(ExprRound, a) }

func Eq(a, b Expr) Expr { return bin(ExprEq, a, b) }
func Ne(a, b Expr) Expr { return bin(ExprNe, a, b) }
func Lt(a, b Expr) Expr { return bin(ExprLt, a, b) }
func Le(a, b Expr) Expr { return bin(ExprLe, a, b) }
func Gt(a, b Expr) Expr { return bin(ExprGt, a, b) }
func Ge(a, b Expr) Expr { return bin(ExprGe, a, b) }

func And(exprs ...Expr) Expr { return Expr{kind: ExprAnd, list: exprs} }
func Or(exprs ...Expr) Expr  { return Expr{kind: ExprOr, list: exprs} }
func Not(a Expr) Expr        { return un(ExprNot, a) }

func If(cond, then, els Expr) Expr { return Expr{kind: ExprIf, a: &cond, b: &then, c: &els} }

func HasFlag(flag DefId) Expr      { return Expr{kind: ExprHasFlag, flag: flag} }
func EntityExists(ref EntityRef) Expr { return Expr{kind: ExprEntityExists, ref: ref} }
func CountEntities(kind DefId) Expr { return Expr{kind: ExprCountEntities, kind_: kind} }

func Random() Expr               { return Expr{kind: ExprRandom} }
func RandomRange(min, max Expr) Expr { return bin(ExprRandomRange, min, max) }
func RandomInt(min, max Expr) Expr   { return bin(ExprRandomInt, min, max) }
func WeightedRandom(weights ...Expr) Expr {
	return Expr{kind: ExprWeightedRandom, list: weights}
}

func Concat(exprs ...Expr) Expr { return Expr{kind: ExprConcat, list: exprs} }
func Format(template string, args ...Expr) Expr {
	return Expr{kind: ExprFormat, template: template, list: args}
}

func numberOrErr(v Value) (float64, error) {
	f, ok := v.AsNumber()
	if !ok {
		return 0, &TypeError{Expected: "number", Got: kindName(v.Kind())}
	}
	return f, nil
}

func kindName(k ValueKind) string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindEntityRef:
		return "entity_ref"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Eval evaluates e against ctx. Evaluation is left-to-right; And/Or
// short-circuit; If evaluates only its chosen branch (§4.1).
func (e Expr) Eval(ctx *EvalContext) (Value, error) {
	switch e.kind {
	case ExprLiteral:
		return e.lit, nil

	case ExprProperty:
		if ctx.Target == nil {
			return Null(), &EvaluationError{Reason: "no target entity for Property access"}
		}
		return ctx.Target.Get(e.name), nil

	case ExprEntityProperty:
		if ctx.Entities == nil {
			return Null(), nil
		}
		ent, ok := ctx.Entities.ResolveEntity(e.ref)
		if !ok {
			return Null(), nil
		}
		return ent.Get(e.name), nil

	case ExprGlobal:
		if ctx.Globals == nil {
			return Null(), nil
		}
		if v, ok := ctx.Globals.Get(e.name); ok {
			return v, nil
		}
		return Null(), nil

	case ExprParam:
		if ctx.Params == nil {
			return Null(), nil
		}
		if v, ok := ctx.Params.Get(e.name); ok {
			return v, nil
		}
		return Null(), nil

	case ExprAdd, ExprSub, ExprMul, ExprMod:
		va, err := e.a.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		vb, err := e.b.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		fa, err := numberOrErr(va)
		if err != nil {
			return Null(), err
		}
		fb, err := numberOrErr(vb)
		if err != nil {
			return Null(), err
		}
		switch e.kind {
		case ExprAdd:
			return FloatValue(fa + fb), nil
		case ExprSub:
			return FloatValue(fa - fb), nil
		case ExprMul:
			return FloatValue(fa * fb), nil
		default:
			return FloatValue(math.Mod(fa, fb)), nil
		}

	case ExprDiv:
		va, err := e.a.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		vb, err := e.b.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		fa, err := numberOrErr(va)
		if err != nil {
			return Null(), err
		}
		fb, err := numberOrErr(vb)
		if err != nil {
			return Null(), err
		}
		if fb == 0 {
			return Null(), ErrDivisionByZero
		}
		return FloatValue(fa / fb), nil

	case ExprNeg:
		f, err := e.unaryNumber(ctx)
		if err != nil {
			return Null(), err
		}
		return FloatValue(-f), nil

	case ExprAbs:
		f, err := e.unaryNumber(ctx)
		if err != nil {
			return Null(), err
		}
		return FloatValue(math.Abs(f)), nil

	case ExprMin, ExprMax:
		fa, fb, err := e.binaryNumbers(ctx)
		if err != nil {
			return Null(), err
		}
		if e.kind == ExprMin {
			return FloatValue(math.Min(fa, fb)), nil
		}
		return FloatValue(math.Max(fa, fb)), nil

	case ExprClamp:
		v, err := e.a.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		mn, err := e.b.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		mx, err := e.c.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		fv, err := numberOrErr(v)
		if err != nil {
			return Null(), err
		}
		fmn, err := numberOrErr(mn)
		if err != nil {
			return Null(), err
		}
		fmx, err := numberOrErr(mx)
		if err != nil {
			return Null(), err
		}
		return FloatValue(math.Min(math.Max(fv, fmn), fmx)), nil

	case ExprFloor, ExprCeil, ExprRound:
		f, err := e.unaryNumber(ctx)
		if err != nil {
			return Null(), err
		}
		switch e.kind {
		case ExprFloor:
			return IntValue(int64(math.Floor(f))), nil
		case ExprCeil:
			return IntValue(int64(math.Ceil(f))), nil
		default:
			return IntValue(int64(math.Round(f))), nil
		}

	case ExprEq, ExprNe:
		va, err := e.a.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		vb, err := e.b.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		eq := va.Equal(vb)
		if e.kind == ExprNe {
			eq = !eq
		}
		return BoolValue(eq), nil

	case ExprLt, ExprLe, ExprGt, ExprGe:
		fa, fb, err := e.binaryNumbers(ctx)
		if err != nil {
			return Null(), err
		}
		var result bool
		switch e.kind {
		case ExprLt:
			result = fa < fb
		case ExprLe:
			result = fa <= fb
		case ExprGt:
			result = fa > fb
		default:
			result = fa >= fb
		}
		return BoolValue(result), nil

	case ExprAnd:
		for _, item := range e.list {
			v, err := item.Eval(ctx)
			if err != nil {
				return Null(), err
			}
			if !v.Truthy() {
				return BoolValue(false), nil
			}
		}
		return BoolValue(true), nil

	case ExprOr:
		for _, item := range e.list {
			v, err := item.Eval(ctx)
			if err != nil {
				return Null(), err
			}
			if v.Truthy() {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil

	case ExprNot:
		v, err := e.a.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		return BoolValue(!v.Truthy()), nil

	case ExprIf:
		cond, err := e.a.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		if cond.Truthy() {
			return e.b.Eval(ctx)
		}
		return e.c.Eval(ctx)

	case ExprHasFlag:
		if ctx.Target == nil {
			return Null(), &EvaluationError{Reason: "no target entity for HasFlag"}
		}
		return BoolValue(ctx.Target.Flags.Has(e.flag)), nil

	case ExprEntityExists:
		if ctx.Entities == nil {
			return BoolValue(false), nil
		}
		_, ok := ctx.Entities.Resolve(e.ref)
		return BoolValue(ok), nil

	case ExprCountEntities:
		if ctx.Entities == nil {
			return IntValue(0), nil
		}
		return IntValue(int64(len(ctx.Entities.ByKind(e.kind_)))), nil

	case ExprRandom:
		return FloatValue(ctx.Rng.NextF64()), nil

	case ExprRandomRange:
		fa, fb, err := e.binaryNumbers(ctx)
		if err != nil {
			return Null(), err
		}
		return FloatValue(ctx.Rng.RangeF64(fa, fb)), nil

	case ExprRandomInt:
		va, err := e.a.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		vb, err := e.b.Eval(ctx)
		if err != nil {
			return Null(), err
		}
		ia, ok := va.AsInt()
		if !ok {
			return Null(), &TypeError{Expected: "int", Got: kindName(va.Kind())}
		}
		ib, ok := vb.AsInt()
		if !ok {
			return Null(), &TypeError{Expected: "int", Got: kindName(vb.Kind())}
		}
		return IntValue(ctx.Rng.RangeI64(ia, ib)), nil

	case ExprWeightedRandom:
		weights := make([]float64, len(e.list))
		for i, item := range e.list {
			v, err := item.Eval(ctx)
			if err != nil {
				return Null(), err
			}
			f, err := numberOrErr(v)
			if err != nil {
				return Null(), err
			}
			weights[i] = f
		}
		idx, ok := ctx.Rng.WeightedIndex(weights)
		if !ok {
			return Null(), nil
		}
		return IntValue(int64(idx)), nil

	case ExprConcat:
		var sb strings.Builder
		for _, item := range e.list {
			v, err := item.Eval(ctx)
			if err != nil {
				return Null(), err
			}
			sb.WriteString(v.Text())
		}
		return StringValue(sb.String()), nil

	case ExprFormat:
		result := e.template
		for i, item := range e.list {
			v, err := item.Eval(ctx)
			if err != nil {
				return Null(), err
			}
			placeholder := "{" + strconv.Itoa(i) + "}"
			result = strings.Replace(result, placeholder, v.Text(), 1)
		}
		return StringValue(result), nil

	default:
		return Null(), &EvaluationError{Reason: fmt.Sprintf("unknown expr kind %d", e.kind)}
	}
}

func (e Expr) unaryNumber(ctx *EvalContext) (float64, error) {
	v, err := e.a.Eval(ctx)
	if err != nil {
		return 0, err
	}
	return numberOrErr(v)
}

func (e Expr) binaryNumbers(ctx *EvalContext) (float64, float64, error) {
	va, err := e.a.Eval(ctx)
	if err != nil {
		return 0, 0, err
	}
	vb, err := e.b.Eval(ctx)
	if err != nil {
		return 0, 0, err
	}
	fa, err := numberOrErr(va)
	if err != nil {
		return 0, 0, err
	}
	fb, err := numberOrErr(vb)
	if err != nil {
		return 0, 0, err
	}
	return fa, fb, nil
}
