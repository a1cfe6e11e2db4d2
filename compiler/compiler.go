// package compiler lowers Functions to scalar instructions and compiles them for each target.
package compiler

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"elementlang.org/numc"
	"elementlang.org/numc/delegate"
	"elementlang.org/numc/diag"
	"elementlang.org/numc/gosrc"
	"elementlang.org/numc/instr"
	"elementlang.org/numc/lmnt"
	"elementlang.org/numc/opt"
)

const DefaultCacheSize = 256

type Option func(*Compiler)

// WithStore causes compiled modules to be posted to s.
func WithStore(s numc.Store) Option {
	return func(c *Compiler) {
		c.store = s
	}
}

// WithTrace sets the sink for diagnostics. The default logs them.
func WithTrace(t diag.Trace) Option {
	return func(c *Compiler) {
		c.trace = t
	}
}

// WithCacheSize sets the number of compiled modules to keep in memory.
func WithCacheSize(n int) Option {
	return func(c *Compiler) {
		c.cacheSize = n
	}
}

// WithMaxIterations limits the number of iterations of each loop in delegates.
func WithMaxIterations(n int) Option {
	return func(c *Compiler) {
		c.maxIterations = n
	}
}

// Compiler compiles Functions.
// It is safe for concurrent use.
type Compiler struct {
	store         numc.Store
	trace         diag.Trace
	cacheSize     int
	maxIterations int

	mu    sync.Mutex
	cache *simplelru.LRU[cacheKey, *Module]
}

func New(opts ...Option) *Compiler {
	c := &Compiler{
		trace:         diag.LogTrace{},
		cacheSize:     DefaultCacheSize,
		maxIterations: delegate.DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(c)
	}
	cache, err := simplelru.NewLRU[cacheKey, *Module](c.cacheSize, nil)
	if err != nil {
		panic(err)
	}
	c.cache = cache
	return c
}

// Lowered is a Function serialized to scalar instructions.
type Lowered struct {
	Name    string
	Inputs  int
	Outputs []instr.Node
}

func (l *Lowered) key() cacheKey {
	return cacheKey{
		name:   l.Name,
		inputs: l.Inputs,
		fp:     instr.NewBasicGroup(l.Outputs...).Fingerprint(),
	}
}

// Lower calls fn with arguments made from inputs, and serializes its outputs.
func Lower(ctx context.Context, fn Function) (*Lowered, error) {
	var args []Value
	var slot int
	for _, p := range fn.Inputs() {
		size, base := p.Type.Size(), slot
		v, err := p.Type.Deserialize(func() instr.Node {
			name := p.Name
			if size > 1 {
				name = fmt.Sprintf("%s[%d]", p.Name, slot-base)
			}
			in := instr.NewInput(slot, name)
			slot++
			return in
		})
		if err != nil {
			return nil, fmt.Errorf("%s: input %s: %w", fn.Name(), p.Name, err)
		}
		args = append(args, v)
	}
	var outs []instr.Node
	for _, p := range fn.Outputs() {
		v, err := fn.Call(ctx, args, p.Name)
		if err != nil {
			return nil, err
		}
		before := len(outs)
		if outs, err = v.Serialize(outs); err != nil {
			return nil, fmt.Errorf("%s: output %s: %w", fn.Name(), p.Name, err)
		}
		if n := len(outs) - before; n != p.Type.Size() {
			return nil, diag.Errorf(diag.SerializationError, "%s: output %s is %v, which has %d scalars, value has %d",
				fn.Name(), p.Name, p.Type, p.Type.Size(), n)
		}
	}
	return &Lowered{Name: fn.Name(), Inputs: slot, Outputs: outs}, nil
}

// Module is a compiled LMNT module
type Module struct {
	Name    string
	Inputs  int
	Outputs int
	Data    []byte
	// CID is the ID of the module in the store, it is zero if there is no store.
	CID numc.CID
}

type cacheKey struct {
	name   string
	inputs int
	fp     instr.Fingerprint
}

// CompileLMNT compiles fn to an LMNT module.
func (c *Compiler) CompileLMNT(ctx context.Context, fn Function) (*Module, error) {
	m, err := c.compileLMNT(ctx, fn)
	return m, diag.Report(ctx, c.trace, err)
}

func (c *Compiler) compileLMNT(ctx context.Context, fn Function) (*Module, error) {
	low, err := Lower(ctx, fn)
	if err != nil {
		return nil, err
	}
	key := low.key()
	c.mu.Lock()
	m, exists := c.cache.Get(key)
	c.mu.Unlock()
	if exists {
		logctx.Debug(ctx, "module cache hit", zap.String("name", low.Name))
		return m, nil
	}
	data, err := lmnt.Compile(low.Name, low.Inputs, low.Outputs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", low.Name, err)
	}
	m = &Module{
		Name:    low.Name,
		Inputs:  low.Inputs,
		Outputs: len(low.Outputs),
		Data:    data,
	}
	if c.store != nil {
		if m.CID, err = c.store.Post(ctx, data); err != nil {
			return nil, err
		}
	}
	logctx.Info(ctx, "compiled module",
		zap.String("name", m.Name),
		zap.Int("bytes", len(m.Data)),
		zap.Stringer("cid", m.CID),
	)
	c.mu.Lock()
	c.cache.Add(key, m)
	c.mu.Unlock()
	return m, nil
}

// CompileDelegate compiles fn to a Go closure.
func (c *Compiler) CompileDelegate(ctx context.Context, fn Function) (*delegate.Func, error) {
	f, err := c.compileDelegate(ctx, fn)
	return f, diag.Report(ctx, c.trace, err)
}

func (c *Compiler) compileDelegate(ctx context.Context, fn Function) (*delegate.Func, error) {
	low, err := Lower(ctx, fn)
	if err != nil {
		return nil, err
	}
	roots := opt.Optimize(opt.NewCSE(), low.Outputs)
	f, err := delegate.Compile(low.Inputs, roots, delegate.WithMaxIterations(c.maxIterations))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", low.Name, err)
	}
	return f, nil
}

// CompileSource writes Go source code for fn to w.
func (c *Compiler) CompileSource(ctx context.Context, w io.Writer, fn Function) error {
	err := c.compileSource(ctx, w, fn)
	return diag.Report(ctx, c.trace, err)
}

func (c *Compiler) compileSource(ctx context.Context, w io.Writer, fn Function) error {
	low, err := Lower(ctx, fn)
	if err != nil {
		return err
	}
	if err := gosrc.Generate(w, low.Name, low.Inputs, low.Outputs); err != nil {
		return fmt.Errorf("%s: %w", low.Name, err)
	}
	return nil
}

// Result is the outcome of compiling one function with CompileAll
type Result struct {
	Module *Module
	Err    error
}

// CompileAll compiles each of fns to an LMNT module concurrently.
// The compilation of each function succeeds or fails independently.
// The only error returned is from the context.
func (c *Compiler) CompileAll(ctx context.Context, fns []Function) ([]Result, error) {
	results := make([]Result, len(fns))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, fn := range fns {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := c.CompileLMNT(ctx, fn)
			results[i] = Result{Module: m, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logctx.Infof(ctx, "compiled %d functions, %d failed", len(fns), failed)
	return results, nil
}
