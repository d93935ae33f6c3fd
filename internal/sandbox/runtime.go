package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime executes preview documents, one fresh interpreter per run.
type Runtime struct {
	config Config
	mu     sync.Mutex
	closed bool
}

// New creates a runtime. Zero limits fall back to DefaultConfig values.
func New(config Config) (*Runtime, error) {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxCallStackSize <= 0 {
		config.MaxCallStackSize = def.MaxCallStackSize
	}
	if config.MaxTimers < 0 {
		return nil, fmt.Errorf("invalid MaxTimers %d", config.MaxTimers)
	}
	return &Runtime{config: config}, nil
}

// Run parses document, executes its scripts and drains its timers. Messages
// the document posts to its parent are passed to post as they happen. A
// non-nil Result is returned even when the run was interrupted.
func (r *Runtime) Run(ctx context.Context, document string, post PostFunc) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
	}

	start := time.Now()
	p, err := parsePage(document)
	if err != nil {
		return nil, err
	}

	inc, err := newIncarnation(r.config, p, post)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			inc.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			inc.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	runErr := inc.execute()
	result := inc.finish()
	result.Duration = time.Since(start)

	return result, runErr
}

// Reset prepares the runtime for another run. Runs never share interpreter
// state, so there is nothing to clear besides checking it is still open.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return nil
}

// Close releases the runtime.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// incarnation is the state of a single run.
type incarnation struct {
	vm        *goja.Runtime
	config    Config
	page      *page
	dom       *dom
	post      PostFunc
	stringify goja.Callable
	listeners map[string][]goja.Value
	timers    *timerQueue
	result    *Result
}

func newIncarnation(config Config, p *page, post PostFunc) (*incarnation, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(config.MaxCallStackSize)

	inc := &incarnation{
		vm:        vm,
		config:    config,
		page:      p,
		post:      post,
		listeners: make(map[string][]goja.Value),
		timers:    newTimerQueue(),
		result:    &Result{Styles: p.styles},
	}

	if err := inc.setupGlobals(); err != nil {
		return nil, fmt.Errorf("failed to set up globals: %w", err)
	}
	return inc, nil
}

// setupGlobals builds the browser-shaped environment.
func (inc *incarnation) setupGlobals() error {
	vm := inc.vm

	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return errors.New("JSON.stringify unavailable")
	}
	inc.stringify = stringify

	global := vm.GlobalObject()
	_ = vm.Set("window", global)
	_ = vm.Set("self", global)

	parent := vm.NewObject()
	_ = parent.Set("postMessage", inc.postMessage)
	_ = vm.Set("parent", parent)
	_ = vm.Set("top", parent)

	location := vm.NewObject()
	_ = location.Set("href", SourceURL)
	_ = vm.Set("location", location)

	console := vm.NewObject()
	for _, level := range []string{"log", "warn", "error", "info", "debug"} {
		_ = console.Set(level, inc.consoleFunc(level))
	}
	_ = vm.Set("console", console)

	_ = vm.Set("addEventListener", inc.addEventListener)
	_ = vm.Set("removeEventListener", inc.removeEventListener)

	_ = vm.Set("setTimeout", inc.setTimer(false))
	_ = vm.Set("setInterval", inc.setTimer(true))
	_ = vm.Set("clearTimeout", inc.clearTimer)
	_ = vm.Set("clearInterval", inc.clearTimer)

	if inc.config.EnableDOM {
		inc.dom = newDOM(vm, inc.page)
		if err := inc.dom.install(); err != nil {
			return err
		}
	}
	return nil
}

// execute runs every script block, then fires due timers.
func (inc *incarnation) execute() error {
	for _, block := range inc.page.scripts {
		if err := inc.runScript(block); err != nil {
			return err
		}
		inc.result.Scripts++
	}

	for inc.result.Timers < inc.config.MaxTimers {
		t := inc.timers.next()
		if t == nil {
			break
		}
		inc.timers.current = t
		err := inc.fire(t)
		inc.timers.current = nil
		inc.result.Timers++
		if err != nil {
			return err
		}
		if t.interval > 0 {
			inc.timers.reschedule(t)
		}
	}
	return nil
}

// runScript executes one block. Uncaught exceptions go to the window error
// listeners; only interruption is returned.
func (inc *incarnation) runScript(block scriptBlock) error {
	line := block.Line
	if line < 1 {
		line = 1
	}
	src := strings.Repeat("\n", line-1) + block.Source

	prog, err := goja.Compile(SourceURL, src, false)
	if err != nil {
		msg := err.Error()
		var syntaxErr *goja.CompilerSyntaxError
		if errors.As(err, &syntaxErr) {
			msg = syntaxErr.Message
		}
		return inc.dispatchError(ScriptError{
			Message:  "Uncaught SyntaxError: " + msg,
			Filename: SourceURL,
			Line:     line,
		}, goja.Undefined())
	}

	_, err = inc.vm.RunProgram(prog)
	return inc.uncaught(err)
}

// fire runs one timer callback.
func (inc *incarnation) fire(t *timer) error {
	if t.fn != nil {
		_, err := t.fn(goja.Undefined(), t.args...)
		return inc.uncaught(err)
	}
	_, err := inc.vm.RunString(t.code)
	return inc.uncaught(err)
}

// uncaught turns an escaped exception into a window error event.
func (inc *incarnation) uncaught(err error) error {
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
	}

	se := ScriptError{Message: "Uncaught " + err.Error(), Filename: SourceURL}
	errVal := goja.Undefined()

	var ex *goja.Exception
	if errors.As(err, &ex) {
		errVal = ex.Value()
		se.Message = "Uncaught " + describe(errVal)
		for _, frame := range ex.Stack() {
			pos := frame.Position()
			if pos.Line > 0 {
				se.Line = pos.Line
				se.Column = pos.Column
				if pos.Filename != "" {
					se.Filename = pos.Filename
				}
				break
			}
		}
	}

	return inc.dispatchError(se, errVal)
}

// dispatchError records se and calls every window error listener.
func (inc *incarnation) dispatchError(se ScriptError, errVal goja.Value) error {
	inc.result.Errors = append(inc.result.Errors, se)

	vm := inc.vm
	event := vm.NewObject()
	_ = event.Set("type", "error")
	_ = event.Set("message", se.Message)
	_ = event.Set("filename", se.Filename)
	_ = event.Set("lineno", se.Line)
	_ = event.Set("colno", se.Column)
	_ = event.Set("error", errVal)
	_ = event.Set("preventDefault", func(goja.FunctionCall) goja.Value { return goja.Undefined() })

	listeners := append([]goja.Value(nil), inc.listeners["error"]...)
	for _, l := range listeners {
		fn, ok := goja.AssertFunction(l)
		if !ok {
			continue
		}
		if _, err := fn(vm.GlobalObject(), event); err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				return fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
			}
			// A throwing error listener is not reported again.
		}
	}
	return nil
}

func (inc *incarnation) postMessage(call goja.FunctionCall) goja.Value {
	data := call.Argument(0)
	if goja.IsUndefined(data) {
		return goja.Undefined()
	}
	out, err := inc.stringify(goja.Undefined(), data)
	if err != nil {
		panic(inc.vm.NewTypeError("DataCloneError: " + err.Error()))
	}
	if goja.IsUndefined(out) {
		return goja.Undefined()
	}
	inc.deliver([]byte(out.String()))
	return goja.Undefined()
}

// deliver hands raw to the host. A failing host never breaks the preview.
func (inc *incarnation) deliver(raw []byte) {
	if inc.post == nil {
		return
	}
	defer func() { _ = recover() }()
	inc.post(raw)
}

func (inc *incarnation) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, inc.inspect(arg))
		}
		inc.result.Console = append(inc.result.Console, ConsoleEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		return goja.Undefined()
	}
}

// inspect renders a console argument the way a devtools console line would
// show it in plain text.
func (inc *incarnation) inspect(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if _, isFn := goja.AssertFunction(obj); !isFn {
			if out, err := inc.stringify(goja.Undefined(), obj); err == nil && !goja.IsUndefined(out) {
				return out.String()
			}
		}
	}
	return describe(v)
}

func (inc *incarnation) addEventListener(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0).String()
	fn := call.Argument(1)
	if _, ok := goja.AssertFunction(fn); !ok {
		return goja.Undefined()
	}
	for _, existing := range inc.listeners[typ] {
		if existing.SameAs(fn) {
			return goja.Undefined()
		}
	}
	inc.listeners[typ] = append(inc.listeners[typ], fn)
	return goja.Undefined()
}

func (inc *incarnation) removeEventListener(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0).String()
	fn := call.Argument(1)
	kept := inc.listeners[typ][:0]
	for _, existing := range inc.listeners[typ] {
		if !existing.SameAs(fn) {
			kept = append(kept, existing)
		}
	}
	inc.listeners[typ] = kept
	return goja.Undefined()
}

func (inc *incarnation) setTimer(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		t := &timer{}
		if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
			t.fn = fn
		} else {
			t.code = call.Argument(0).String()
		}
		if len(call.Arguments) > 2 {
			t.args = append([]goja.Value(nil), call.Arguments[2:]...)
		}
		delay := call.Argument(1).ToInteger()
		return inc.vm.ToValue(inc.timers.add(t, delay, repeat))
	}
}

func (inc *incarnation) clearTimer(call goja.FunctionCall) goja.Value {
	inc.timers.clear(call.Argument(0).ToInteger())
	return goja.Undefined()
}

// finish snapshots the document after execution.
func (inc *incarnation) finish() *Result {
	res := inc.result
	if inc.dom != nil {
		res.Title = inc.dom.title
	} else {
		res.Title = inc.page.title()
	}
	body := inc.page.body()
	res.BodyText = strings.TrimSpace(body.Text())
	res.BodyHTML, _ = body.Html()
	res.BodyHTML = strings.TrimSpace(res.BodyHTML)
	return res
}

// describe converts a value to its JavaScript string form.
func describe(v goja.Value) (s string) {
	if v == nil {
		return "undefined"
	}
	defer func() {
		if recover() != nil {
			s = "[object]"
		}
	}()
	return v.String()
}
