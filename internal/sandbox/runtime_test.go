package sandbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajsharma/neon_playground/internal/bridge"
	"github.com/ajsharma/neon_playground/internal/compose"
)

type collector struct {
	mu  sync.Mutex
	raw [][]byte
}

func (c *collector) post(raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw = append(c.raw, append([]byte(nil), raw...))
}

func (c *collector) messages(t *testing.T) []*bridge.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*bridge.Message
	for _, raw := range c.raw {
		msg, ok := bridge.Decode(raw)
		require.True(t, ok, "unexpected foreign message %s", raw)
		out = append(out, msg)
	}
	return out
}

func run(t *testing.T, set compose.SourceSet) (*Result, []*bridge.Message) {
	t.Helper()
	rt, err := New(DefaultConfig())
	require.NoError(t, err)
	defer rt.Close()

	c := &collector{}
	result, err := rt.Run(context.Background(), set.Compose(), c.post)
	require.NoError(t, err)
	return result, c.messages(t)
}

func TestRunScenario(t *testing.T) {
	result, msgs := run(t, compose.SourceSet{
		Markup: "<h1>Hi</h1>",
		Styles: "h1{color:red}",
		Script: "console.log('a'); throw new Error('boom');",
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, bridge.SeverityLog, msgs[0].Type)
	assert.Equal(t, []string{"a"}, msgs[0].Args)
	assert.Equal(t, bridge.SeverityError, msgs[1].Type)
	assert.Contains(t, strings.Join(msgs[1].Args, " "), "boom")

	assert.Equal(t, "Hi", result.BodyText)
	require.NotEmpty(t, result.Styles)
	assert.Contains(t, result.Styles[0], "h1{color:red}")
	assert.Empty(t, result.Errors, "guarded throw must not reach the window handler")
}

func TestRunNonDestructiveInterception(t *testing.T) {
	result, msgs := run(t, compose.SourceSet{Script: "console.log('x', 2); console.info({a: 1});"})

	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"x", "2"}, msgs[0].Args)
	assert.Equal(t, []string{`{"a":1}`}, msgs[1].Args)

	require.Len(t, result.Console, 2)
	assert.Equal(t, "log", result.Console[0].Level)
	assert.Equal(t, "x 2", result.Console[0].Message)
	assert.Equal(t, "info", result.Console[1].Level)
}

func TestRunAllSeverities(t *testing.T) {
	_, msgs := run(t, compose.SourceSet{Script: `
console.log('l'); console.warn('w'); console.error('e'); console.info('i'); console.debug('d');`})

	require.Len(t, msgs, 5)
	for i, sev := range bridge.Severities {
		assert.Equal(t, sev, msgs[i].Type)
	}
}

func TestRunGuardedThrowSingleError(t *testing.T) {
	result, msgs := run(t, compose.SourceSet{
		Markup: "<p>still here</p>",
		Script: "null.boom;",
	})

	require.Len(t, msgs, 1)
	assert.Equal(t, bridge.SeverityError, msgs[0].Type)
	assert.True(t, strings.HasPrefix(msgs[0].Args[0], compose.GuardErrorPrefix))
	assert.Equal(t, "still here", result.BodyText)
}

func TestRunDeferredErrorUsesGlobalHandler(t *testing.T) {
	result, msgs := run(t, compose.SourceSet{
		Script: "setTimeout(function(){ throw new Error('later'); }, 10);",
	})

	require.Len(t, msgs, 1)
	assert.Equal(t, bridge.SeverityError, msgs[0].Type)
	text := msgs[0].Args[0]
	assert.Contains(t, text, "Uncaught Error: later")
	assert.Contains(t, text, "("+SourceURL+":")

	require.Len(t, result.Errors, 1)
	assert.Greater(t, result.Errors[0].Line, 1)
	assert.Equal(t, 1, result.Timers)
}

func TestRunSyntaxErrorReported(t *testing.T) {
	_, msgs := run(t, compose.SourceSet{Script: "function ("})

	require.Len(t, msgs, 1)
	assert.Equal(t, bridge.SeverityError, msgs[0].Type)
	assert.Contains(t, msgs[0].Args[0], "SyntaxError")
}

func TestRunTimersInOrder(t *testing.T) {
	_, msgs := run(t, compose.SourceSet{Script: `
setTimeout(() => console.log('b'), 20);
setTimeout(() => console.log('a'), 10);
setTimeout((x) => console.log(x), 20, 'c');
console.log('sync');`})

	var got []string
	for _, m := range msgs {
		got = append(got, m.Args[0])
	}
	assert.Equal(t, []string{"sync", "a", "b", "c"}, got)
}

func TestRunIntervalBounded(t *testing.T) {
	rt, err := New(Config{Timeout: time.Second, MaxTimers: 5, EnableDOM: true})
	require.NoError(t, err)

	c := &collector{}
	result, err := rt.Run(context.Background(),
		compose.Compose("", "", "setInterval(() => console.log('tick'), 100);"), c.post)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Timers)
	assert.Len(t, c.messages(t), 5)
}

func TestRunClearIntervalFromCallback(t *testing.T) {
	_, msgs := run(t, compose.SourceSet{Script: `
let n = 0;
const id = setInterval(() => { n++; console.log('n=' + n); if (n === 3) clearInterval(id); }, 5);`})

	assert.Len(t, msgs, 3)
}

func TestRunTimeoutInterrupts(t *testing.T) {
	rt, err := New(Config{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	c := &collector{}
	doc := compose.Compose("", "", "console.log('before'); while (true) {}")
	result, err := rt.Run(context.Background(), doc, c.post)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterrupted))
	require.NotNil(t, result)

	msgs := c.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"before"}, msgs[0].Args)
}

func TestRunCancelledContext(t *testing.T) {
	rt, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = rt.Run(ctx, compose.Compose("", "", ""), nil)
	assert.True(t, errors.Is(err, ErrInterrupted))
}

func TestRunPanickingHostDoesNotBreakPreview(t *testing.T) {
	rt, err := New(DefaultConfig())
	require.NoError(t, err)

	calls := 0
	result, err := rt.Run(context.Background(),
		compose.Compose("", "", "console.log(1); console.log(2);"),
		func([]byte) {
			calls++
			panic("host failure")
		})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, result.Console, 2)
}

func TestRunDangerousGlobalsUndefined(t *testing.T) {
	_, msgs := run(t, compose.SourceSet{Script: `
console.log(typeof require, typeof process, typeof module, typeof exports);`})

	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"undefined", "undefined", "undefined", "undefined"}, msgs[0].Args)
}

func TestRunIncarnationsIsolated(t *testing.T) {
	rt, err := New(DefaultConfig())
	require.NoError(t, err)

	first := &collector{}
	_, err = rt.Run(context.Background(), compose.Compose("", "", "window.leaked = 42;"), first.post)
	require.NoError(t, err)

	second := &collector{}
	_, err = rt.Run(context.Background(), compose.Compose("", "", "console.log(typeof leaked);"), second.post)
	require.NoError(t, err)

	msgs := second.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "undefined", msgs[0].Args[0])
}

func TestRunDOM(t *testing.T) {
	result, msgs := run(t, compose.SourceSet{
		Markup: `<div id="out">old</div><ul class="items"><li>a</li><li>b</li></ul>`,
		Script: `
document.getElementById('out').textContent = 'new';
console.log(document.querySelectorAll('li').length);
const p = document.createElement('p');
p.textContent = 'added';
document.body.appendChild(p);
document.title = 'T';
console.log(document.getElementById('missing'));`,
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, "2", msgs[0].Args[0])
	assert.Equal(t, "null", msgs[1].Args[0])
	assert.Contains(t, result.BodyText, "new")
	assert.Contains(t, result.BodyText, "added")
	assert.NotContains(t, result.BodyText, "old")
	assert.Equal(t, "T", result.Title)
}

func TestRunForeignMessagesPassThrough(t *testing.T) {
	rt, err := New(DefaultConfig())
	require.NoError(t, err)

	var raws []string
	_, err = rt.Run(context.Background(),
		compose.Compose("", "", "parent.postMessage({hello: 'world'}, '*');"),
		func(raw []byte) { raws = append(raws, string(raw)) })
	require.NoError(t, err)

	require.Len(t, raws, 1)
	assert.JSONEq(t, `{"hello":"world"}`, raws[0])

	r := bridge.NewReceiver(nil)
	_, ok := r.Receive([]byte(raws[0]))
	assert.False(t, ok)
}

func TestRunClosedRuntime(t *testing.T) {
	rt, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	_, err = rt.Run(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, rt.Reset(), ErrClosed)
}
