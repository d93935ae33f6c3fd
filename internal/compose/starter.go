package compose

// Starter is the project a fresh playground opens with. It exercises every
// console severity so the log panel shows something on first render.
var Starter = SourceSet{
	Markup: `<div class="card">
  <h1>Neon Playground</h1>
  <p>Edit the HTML, CSS and JS panes. The preview updates as you type.</p>
  <button id="hello">Say hello</button>
</div>`,
	Styles: `body { display: grid; place-items: center; background: #0f1020; color: #e6f7ff; }
.card { padding: 24px 32px; border-radius: 12px; background: rgba(255,255,255,0.06); }
h1 { color: #00e5ff; margin-top: 0; }
button { background: #00e5ff; border: 0; border-radius: 6px; padding: 8px 14px; cursor: pointer; }`,
	Script: `console.log('Playground ready');
console.info('info messages are light blue');
console.warn('warnings are yellow');
console.debug({ debug: true, tags: ['purple'] });

const btn = document.getElementById('hello');
if (btn) {
  btn.addEventListener('click', () => console.log('hello from the preview'));
}`,
}
