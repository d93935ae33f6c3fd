package sandbox

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// dom exposes the parsed markup to scripts as a small document API. Element
// proxies are cached per node so identity comparisons hold.
type dom struct {
	vm      *goja.Runtime
	page    *page
	title   string
	proxies map[*html.Node]*goja.Object
}

func newDOM(vm *goja.Runtime, p *page) *dom {
	return &dom{
		vm:      vm,
		page:    p,
		title:   p.title(),
		proxies: make(map[*html.Node]*goja.Object),
	}
}

// install sets the document global.
func (d *dom) install() error {
	document := d.vm.NewObject()

	_ = document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		sel := d.page.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr("id")
			return v == id
		})
		return d.first(sel)
	})
	_ = document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return d.first(d.find(call.Argument(0).String()))
	})
	_ = document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return d.all(d.find(call.Argument(0).String()))
	})
	_ = document.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return d.all(d.find(call.Argument(0).String()))
	})
	_ = document.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		return d.all(d.find("." + call.Argument(0).String()))
	})
	_ = document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(call.Argument(0).String())
		node := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
		return d.proxy(node)
	})
	_ = document.Set("addEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })

	_ = document.DefineAccessorProperty("title",
		d.vm.ToValue(func(goja.FunctionCall) goja.Value { return d.vm.ToValue(d.title) }),
		d.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			d.title = call.Argument(0).String()
			return goja.Undefined()
		}),
		goja.FLAG_TRUE, goja.FLAG_TRUE)

	if body := d.page.doc.Find("body").First(); body.Length() > 0 {
		_ = document.Set("body", d.proxy(body.Get(0)))
	}
	if head := d.page.doc.Find("head").First(); head.Length() > 0 {
		_ = document.Set("head", d.proxy(head.Get(0)))
	}

	return d.vm.Set("document", document)
}

// find runs a CSS selector; an invalid selector matches nothing.
func (d *dom) find(selector string) (sel *goquery.Selection) {
	defer func() {
		if recover() != nil {
			sel = d.page.doc.Find("__none__")
		}
	}()
	return d.page.doc.Find(selector)
}

func (d *dom) first(sel *goquery.Selection) goja.Value {
	if sel.Length() == 0 {
		return goja.Null()
	}
	return d.proxy(sel.Get(0))
}

func (d *dom) all(sel *goquery.Selection) goja.Value {
	out := make([]interface{}, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, d.proxy(n))
	}
	return d.vm.NewArray(out...)
}

// proxy returns the script-facing object for node.
func (d *dom) proxy(node *html.Node) *goja.Object {
	if obj, ok := d.proxies[node]; ok {
		return obj
	}

	vm := d.vm
	sel := goquery.NewDocumentFromNode(node).Selection
	obj := vm.NewObject()
	d.proxies[node] = obj

	accessor := func(name string, get func() goja.Value, set func(goja.Value)) {
		getter := vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
		var setter goja.Value
		if set != nil {
			setter = vm.ToValue(func(call goja.FunctionCall) goja.Value {
				set(call.Argument(0))
				return goja.Undefined()
			})
		}
		_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
	}

	accessor("tagName", func() goja.Value { return vm.ToValue(strings.ToUpper(node.Data)) }, nil)
	accessor("id", func() goja.Value {
		v, _ := sel.Attr("id")
		return vm.ToValue(v)
	}, func(v goja.Value) { sel.SetAttr("id", v.String()) })
	accessor("className", func() goja.Value {
		v, _ := sel.Attr("class")
		return vm.ToValue(v)
	}, func(v goja.Value) { sel.SetAttr("class", v.String()) })
	accessor("textContent", func() goja.Value { return vm.ToValue(sel.Text()) },
		func(v goja.Value) { sel.SetText(v.String()) })
	accessor("innerText", func() goja.Value { return vm.ToValue(sel.Text()) },
		func(v goja.Value) { sel.SetText(v.String()) })
	accessor("innerHTML", func() goja.Value {
		h, _ := sel.Html()
		return vm.ToValue(h)
	}, func(v goja.Value) { sel.SetHtml(v.String()) })
	accessor("parentNode", func() goja.Value {
		if node.Parent == nil || node.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return d.proxy(node.Parent)
	}, nil)

	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := sel.Attr(call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		sel.SetAttr(call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := d.nodeOf(call.Argument(0))
		if child == nil {
			panic(vm.NewTypeError("appendChild: argument is not a node"))
		}
		if child.Parent != nil {
			child.Parent.RemoveChild(child)
		}
		node.AppendChild(child)
		return call.Argument(0)
	})
	_ = obj.Set("remove", func(goja.FunctionCall) goja.Value {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
		return goja.Undefined()
	})
	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return d.first(sel.Find(call.Argument(0).String()))
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return d.all(sel.Find(call.Argument(0).String()))
	})
	// Events never fire in a headless preview; listeners are accepted and kept.
	_ = obj.Set("addEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = obj.Set("removeEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = obj.Set("style", vm.NewObject())

	classList := vm.NewObject()
	_ = classList.Set("add", func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			sel.AddClass(a.String())
		}
		return goja.Undefined()
	})
	_ = classList.Set("remove", func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			sel.RemoveClass(a.String())
		}
		return goja.Undefined()
	})
	_ = classList.Set("contains", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(sel.HasClass(call.Argument(0).String()))
	})
	_ = obj.Set("classList", classList)

	return obj
}

// nodeOf maps a proxy back to its node.
func (d *dom) nodeOf(v goja.Value) *html.Node {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	for n, o := range d.proxies {
		if o == obj {
			return n
		}
	}
	return nil
}
