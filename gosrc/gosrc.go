// package gosrc generates Go source code from instruction graphs.
package gosrc

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"

	"elementlang.org/numc/diag"
	"elementlang.org/numc/instr"
	"elementlang.org/numc/opt"
	"elementlang.org/numc/spec"
)

// Generate writes a Go function declaration computing outputs from inputs arguments.
// The generated code only depends on the math package.
// Loops and persisted state are not supported.
func Generate(w io.Writer, name string, inputs int, outputs []instr.Node) error {
	if !token.IsIdentifier(name) {
		return diag.Errorf(diag.InvalidCompileTarget, "gosrc: %q is not a valid identifier", name)
	}
	cse := opt.NewCSE()
	roots := opt.Optimize(cse, outputs)
	g := &generator{inputs: inputs, helpers: make(map[string]bool)}

	var body bytes.Buffer
	for _, c := range cse.Instructions() {
		x, err := g.expr(c.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(&body, "%s := %s\n", local(c.Ordinal), x)
	}
	rets := make([]string, len(roots))
	for i, root := range roots {
		x, err := g.operand(root)
		if err != nil {
			return err
		}
		rets[i] = x
	}
	fmt.Fprintf(&body, "return %s\n", strings.Join(rets, ", "))

	params := make([]string, inputs)
	for i := range params {
		params[i] = fmt.Sprintf("in%d", i)
	}
	var results string
	switch len(roots) {
	case 0:
	case 1:
		results = "float32"
	default:
		results = "(" + strings.TrimSuffix(strings.Repeat("float32, ", len(roots)), ", ") + ")"
	}
	if len(params) > 0 {
		params[len(params)-1] += " float32"
	}

	var src bytes.Buffer
	fmt.Fprintf(&src, "// %s is generated by numc. DO NOT EDIT.\n", name)
	fmt.Fprintf(&src, "func %s(%s) %s {\n", name, strings.Join(params, ", "), results)
	helpers := maps.Keys(g.helpers)
	slices.Sort(helpers)
	for _, h := range helpers {
		src.WriteString(helperSrc[h])
		src.WriteString("\n")
	}
	src.Write(body.Bytes())
	src.WriteString("}\n")

	out, err := format.Source(src.Bytes())
	if err != nil {
		// this would be a bug in the generator
		panic(fmt.Sprintf("generated invalid source: %v\n%s", err, src.String()))
	}
	_, err = w.Write(out)
	return err
}

type generator struct {
	inputs  int
	helpers map[string]bool
}

func local(ordinal int) string {
	return "v" + strconv.Itoa(ordinal)
}

// operand returns an expression for a leaf or cached instruction
func (g *generator) operand(x instr.Node) (string, error) {
	switch x := x.(type) {
	case *instr.Input:
		if x.Slot < 0 || x.Slot >= g.inputs {
			return "", diag.Errorf(diag.ArgumentCountMismatch, "gosrc: %v refers to input %d, function has %d inputs", x, x.Slot, g.inputs)
		}
		return fmt.Sprintf("in%d", x.Slot), nil
	case *instr.Constant:
		return constant(x.Value), nil
	case *instr.Cached:
		return local(x.Ordinal), nil
	default:
		return "", diag.Errorf(diag.InvalidCompileTarget, "gosrc: unsupported instruction %v", x)
	}
}

func (g *generator) use(helper string) string {
	g.helpers[helper] = true
	return helper
}

// expr returns an expression for the value of a cached instruction
func (g *generator) expr(x instr.Node) (string, error) {
	switch x := x.(type) {
	case *instr.Unary:
		a, err := g.operand(x.X)
		if err != nil {
			return "", err
		}
		return g.unary(x.Op, a), nil
	case *instr.Binary:
		a, err := g.operand(x.A)
		if err != nil {
			return "", err
		}
		b, err := g.operand(x.B)
		if err != nil {
			return "", err
		}
		return g.binary(x.Op, a, b), nil
	case *instr.Mux:
		sel, err := g.operand(x.Selector)
		if err != nil {
			return "", err
		}
		ops := make([]string, len(x.Operands))
		for i := range x.Operands {
			if ops[i], err = g.operand(x.Operands[i]); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("[]float32{%s}[%s(%s, %d)]", strings.Join(ops, ", "), g.use("pick"), sel, len(ops)), nil
	default:
		return "", diag.Errorf(diag.InvalidCompileTarget, "gosrc: unsupported instruction %v", x)
	}
}

func math1(fn, a string) string {
	return fmt.Sprintf("float32(math.%s(float64(%s)))", fn, a)
}

func math2(fn, a, b string) string {
	return fmt.Sprintf("float32(math.%s(float64(%s), float64(%s)))", fn, a, b)
}

func (g *generator) binary(op spec.BinaryOp, a, b string) string {
	b2f := func(cond string) string {
		return fmt.Sprintf("%s(%s)", g.use("b2f"), cond)
	}
	switch op {
	case spec.Add:
		return a + " + " + b
	case spec.Sub:
		return a + " - " + b
	case spec.Mul:
		return a + " * " + b
	case spec.Div:
		return a + " / " + b
	case spec.Rem:
		return math2("Mod", a, b)
	case spec.Pow:
		return math2("Pow", a, b)
	case spec.Min:
		return math2("Min", a, b)
	case spec.Max:
		return math2("Max", a, b)
	case spec.Atan2:
		return math2("Atan2", a, b)
	case spec.Log:
		return fmt.Sprintf("%s(%s, %s)", g.use("logb"), a, b)
	case spec.And:
		return b2f(fmt.Sprintf("%s*%s > 0", a, b))
	case spec.Or:
		return b2f(fmt.Sprintf("(%s+%s)-(%s*%s) > 0", a, b, a, b))
	case spec.NEq:
		return b2f(fmt.Sprintf("math.Abs(float64(%s-%s)) > 0", a, b))
	case spec.Eq:
		return b2f(fmt.Sprintf("!(math.Abs(float64(%s-%s)) > 0)", a, b))
	case spec.Lt:
		return b2f(fmt.Sprintf("%s-%s > 0", b, a))
	case spec.GEq:
		return b2f(fmt.Sprintf("!(%s-%s > 0)", b, a))
	case spec.Gt:
		return b2f(fmt.Sprintf("%s-%s > 0", a, b))
	case spec.LEq:
		return b2f(fmt.Sprintf("!(%s-%s > 0)", a, b))
	default:
		panic(fmt.Sprintf("unknown binary op %v", op))
	}
}

func (g *generator) unary(op spec.UnaryOp, a string) string {
	switch op {
	case spec.Not:
		return fmt.Sprintf("%s(%s)", g.use("not"), a)
	case spec.Sin:
		return math1("Sin", a)
	case spec.Cos:
		return math1("Cos", a)
	case spec.Tan:
		return math1("Tan", a)
	case spec.ASin:
		return math1("Asin", a)
	case spec.ACos:
		return math1("Acos", a)
	case spec.ATan:
		return math1("Atan", a)
	case spec.Ln:
		return math1("Log", a)
	case spec.Abs:
		return math1("Abs", a)
	case spec.Ceil:
		return math1("Ceil", a)
	case spec.Floor:
		return math1("Floor", a)
	default:
		panic(fmt.Sprintf("unknown unary op %v", op))
	}
}

func constant(x float32) string {
	switch {
	case math.IsNaN(float64(x)):
		return "float32(math.NaN())"
	case math.IsInf(float64(x), 1):
		return "float32(math.Inf(1))"
	case math.IsInf(float64(x), -1):
		return "float32(math.Inf(-1))"
	case x == 0 && math.Signbit(float64(x)):
		return "float32(math.Copysign(0, -1))"
	}
	return "float32(" + strconv.FormatFloat(float64(x), 'g', -1, 32) + ")"
}

var helperSrc = map[string]string{
	"b2f": `b2f := func(x bool) float32 {
	if x {
		return 1
	}
	return 0
}`,
	"not": `not := func(x float32) float32 {
	if x != x {
		return x
	}
	if x > 0 {
		return 0
	}
	return 1
}`,
	"logb": `logb := func(a, b float32) float32 {
	if a < 0 {
		return float32(math.NaN())
	}
	return float32(math.Log(float64(a)) / math.Log(float64(b)))
}`,
	"pick": `pick := func(sel float32, n int) int {
	switch {
	case sel != sel || sel < 0:
		return 0
	case sel >= float32(n):
		return n - 1
	default:
		return int(math.Floor(float64(sel)))
	}
}`,
}
