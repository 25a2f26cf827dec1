package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/dommirror/address"
	"github.com/hazyhaar/dommirror/codec"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/mutation"
	"github.com/hazyhaar/dommirror/transport"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const rootID = "page"

// harness wires a primary document to a Hub through the JSON wire form.
type harness struct {
	t       *testing.T
	doc     *dom.Document
	primary *Primary
	hub     *Hub
	wire    []string
}

func newHarness(t *testing.T, markup string) *harness {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{t: t, doc: doc, hub: NewHub(HubConfig{InertScripts: true, Logger: quiet()})}
	sink := transport.NewCallback(func(ctx context.Context, env mutation.Envelope) error {
		b, err := mutation.MarshalEnvelope(&env)
		if err != nil {
			return err
		}
		h.wire = append(h.wire, string(b))
		got, err := mutation.UnmarshalEnvelope(b)
		if err != nil {
			return err
		}
		return h.hub.Deliver(ctx, *got)
	})
	h.primary, err = NewPrimary(doc.Node(), sink, WithRootID(rootID), WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.primary.Sync(); err != nil {
		t.Fatal(err)
	}
	return h
}

// flush closes the primary and delivers everything it queued.
func (h *harness) flush() error {
	h.primary.Close()
	return h.primary.Run(context.Background())
}

func (h *harness) mustFlush() {
	h.t.Helper()
	if err := h.flush(); err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) replica() *dom.Document {
	h.t.Helper()
	r, ok := h.hub.Replica(rootID)
	if !ok {
		h.t.Fatal("no replica")
	}
	return r.Document()
}

func (h *harness) records() []string {
	var out []string
	for _, w := range h.wire {
		if strings.HasPrefix(w, `{"type":"record"`) {
			out = append(out, w)
		}
	}
	return out
}

func (h *harness) assertMirrored() {
	h.t.Helper()
	var want strings.Builder
	if err := dom.Render(&want, h.doc.Node()); err != nil {
		h.t.Fatal(err)
	}
	got, err := h.hub.Markup(rootID)
	if err != nil {
		h.t.Fatal(err)
	}
	if diff := cmp.Diff(want.String(), got); diff != "" {
		h.t.Errorf("replica markup (-primary +replica):\n%s", diff)
	}
}

const page = `<!DOCTYPE html><html><head><title>t</title></head><body><div id="root"><p>hello</p></div></body></html>`

func TestInitialSync(t *testing.T) {
	h := newHarness(t, `<!DOCTYPE html><html><head></head><body>`+
		`<div id="a" class="x y" data-user-id="7"><p>text</p><!--note--></div>`+
		`<svg viewBox="0 0 10 10"><linearGradient id="g"></linearGradient></svg>`+
		`<template id="tpl"><b>inside</b></template>`+
		`</body></html>`)
	h.mustFlush()
	h.assertMirrored()
	if got := len(h.records()); got != 0 {
		t.Errorf("records: got %d, want 0", got)
	}
}

func TestScenarioA_AppendChild(t *testing.T) {
	h := newHarness(t, page)
	root := h.doc.GetElementByID("root")
	if _, err := root.AppendChild(h.doc.CreateElement("section")); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	rep := h.replica().GetElementByID("root")
	if n := len(rep.Children()); n != 2 {
		t.Fatalf("children: got %d, want 2", n)
	}
	added := rep.ChildAt(1)
	if added.TagName() != "SECTION" || len(added.Attrs()) != 0 {
		t.Errorf("appended: got %s", added.OuterHTML())
	}
	h.assertMirrored()
}

func TestScenarioB_SetData(t *testing.T) {
	h := newHarness(t, page)
	text := h.doc.GetElementByID("root").FirstChild().FirstChild()
	if err := text.SetData("X"); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	p := h.replica().GetElementByID("root").FirstChild()
	if len(p.Children()) != 1 || p.FirstChild().Data() != "X" {
		t.Errorf("replica paragraph: got %s", p.OuterHTML())
	}
	h.assertMirrored()
}

func TestScenarioC_TwoTokenAdditions(t *testing.T) {
	h := newHarness(t, page)
	root := h.doc.GetElementByID("root")
	if err := root.ClassList().Add("a"); err != nil {
		t.Fatal(err)
	}
	if err := root.ClassList().Add("b"); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	if got := len(h.records()); got != 2 {
		t.Errorf("records: got %d, want 2", got)
	}
	if got := h.replica().GetElementByID("root").ClassName(); got != "a b" {
		t.Errorf("class: got %q, want %q", got, "a b")
	}
	h.assertMirrored()
}

func TestScenarioD_RejectedAdoptedRule(t *testing.T) {
	var logs strings.Builder
	hub := NewHub(HubConfig{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	ctx := context.Background()

	sync := `{"type":"snapshot","root":"r","snapshot":["DocumentFragment",[["html",{},[["head",{},[],{}],["body",{},[],{}]],{}]]]}`
	host := `["x-panel",{},[],{"shadowRoot":["ShadowRoot",[["p",{},[["Text","styled"]],{}]]],` +
		`"init":{"delegatesFocus":false},` +
		`"adoptedStyleSheets":[["p { color: red }","{ color: blue }"]]}]`
	rec := `{"type":"record","root":"r","record":{"targetPath":[0,1],"prop":"appendChild","args":[` + host + `]}}`

	for _, raw := range []string{sync, rec} {
		env, err := mutation.UnmarshalEnvelope([]byte(raw))
		if err != nil {
			t.Fatal(err)
		}
		if err := hub.Deliver(ctx, *env); err != nil {
			t.Fatal(err)
		}
	}

	r, _ := hub.Replica("r")
	panel := r.Document().Body().FirstChild()
	sr := panel.ShadowRoot()
	if sr == nil {
		t.Fatal("no shadow root")
	}
	sheets := sr.AdoptedStyleSheets()
	if len(sheets) != 1 {
		t.Fatalf("adopted sheets: got %d, want 1", len(sheets))
	}
	if diff := cmp.Diff([]string{"p { color: red }"}, sheets[0].Rules()); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
	if got := sr.InnerHTML(); got != "<p>styled</p>" {
		t.Errorf("shadow content: got %q", got)
	}
	if !strings.Contains(logs.String(), "style rule rejected") {
		t.Errorf("rejection not logged: %s", logs.String())
	}
}

func TestAtMostOneReport(t *testing.T) {
	h := newHarness(t, page)
	root := h.doc.GetElementByID("root")
	if err := root.Append(h.doc.CreateElement("a"), h.doc.CreateElement("b")); err != nil {
		t.Fatal(err)
	}
	if err := root.InsertAdjacentHTML("beforeend", "<i>1</i><i>2</i>"); err != nil {
		t.Fatal(err)
	}
	if err := root.FirstChild().ReplaceWith(h.doc.CreateTextNode("t"), h.doc.CreateElement("hr")); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	if got := len(h.records()); got != 3 {
		t.Errorf("records: got %d, want 3\n%s", got, strings.Join(h.records(), "\n"))
	}
	h.assertMirrored()
}

func TestMoveByAddress(t *testing.T) {
	h := newHarness(t, `<!DOCTYPE html><html><head></head><body><ul><li>1</li><li>2</li><li>3</li></ul></body></html>`)
	ul := h.doc.Body().FirstChild()
	if _, err := ul.InsertBefore(ul.LastChild(), ul.FirstChild()); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	recs := h.records()
	if len(recs) != 1 || !strings.Contains(recs[0], `"args":[[0,1,0,2],[0,1,0,0]]`) {
		t.Errorf("record: got %v", recs)
	}
	h.assertMirrored()
}

func TestNestedCompositesMirrored(t *testing.T) {
	h := newHarness(t, page)
	root := h.doc.GetElementByID("root")
	steps := []func() error{
		func() error { return root.Style().SetProperty("color", "red", "") },
		func() error { return root.Style().AssignProp("marginTop", "2px") },
		func() error { return root.Dataset().AssignProp("userId", "9") },
		func() error { _, err := root.ClassList().Toggle("on"); return err },
		func() error { return root.SetAttribute("title", "hi") },
		func() error { return root.RemoveAttribute("title") },
		func() error { _, err := root.FirstChild().FirstChild().SplitText(2); return err },
		func() error { return root.Normalize() },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	h.mustFlush()
	h.assertMirrored()
}

func TestContainment(t *testing.T) {
	h := newHarness(t, page)
	other := dom.NewHTMLDocument()
	if _, err := other.Body().AppendChild(other.CreateElement("p")); err != nil {
		t.Fatal(err)
	}
	detached := h.doc.CreateElement("div")
	if err := detached.SetAttribute("id", "loose"); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	if got := len(h.records()); got != 0 {
		t.Errorf("records: got %d, want 0", got)
	}
}

func TestShadowDefaultOpen(t *testing.T) {
	h := newHarness(t, page)
	host := h.doc.CreateElement("div")
	if _, err := h.doc.GetElementByID("root").AppendChild(host); err != nil {
		t.Fatal(err)
	}
	sr, err := host.AttachShadow(dom.ShadowRootInit{Mode: dom.ShadowClosed})
	if err != nil {
		t.Fatal(err)
	}
	if err := sr.SetInnerHTML("<span>shadow</span>"); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	if host.ShadowRoot() == nil {
		t.Error("primary shadow root not open")
	}
	repHost := h.replica().GetElementByID("root").LastChild()
	repSR := repHost.ShadowRoot()
	if repSR == nil {
		t.Fatal("replica shadow root missing or closed")
	}
	if got := repSR.InnerHTML(); got != "<span>shadow</span>" {
		t.Errorf("replica shadow content: got %q", got)
	}
	recs := h.records()
	if len(recs) != 3 || !strings.Contains(recs[2], `"targetPath":[0,1,0,1,"shadowRoot"]`) {
		t.Errorf("records: got %v", recs)
	}
}

func TestScriptNeutralised(t *testing.T) {
	h := newHarness(t, page)
	script := h.doc.CreateElement("script")
	if err := script.SetText("window.pwned = true"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.doc.Body().AppendChild(script); err != nil {
		t.Fatal(err)
	}
	if err := script.SetType("text/javascript"); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	rep := h.replica().Body().LastChild()
	if rep.TagName() != "SCRIPT" {
		t.Fatalf("last body child: got %s", rep.OuterHTML())
	}
	if got := rep.Type(); got != dom.InertScriptType {
		t.Errorf("script type: got %q, want %q", got, dom.InertScriptType)
	}
	if got := script.Type(); got != "text/javascript" {
		t.Errorf("primary script type: got %q", got)
	}
}

func TestLifecycleHookMirrored(t *testing.T) {
	h := newHarness(t, page)
	err := h.doc.Define("x-card", dom.ElementDefinition{Connected: func(n *dom.Node) {
		_ = n.SetAttribute("ready", "yes")
	}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.doc.GetElementByID("root").AppendChild(h.doc.CreateElement("x-card")); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	if got := len(h.records()); got != 2 {
		t.Errorf("records: got %d, want 2", got)
	}
	card := h.replica().GetElementByID("root").LastChild()
	if v, _ := card.GetAttribute("ready"); v != "yes" {
		t.Errorf("ready: got %q, want %q", v, "yes")
	}
	h.assertMirrored()
}

func TestDivergenceStopsDelivery(t *testing.T) {
	h := newHarness(t, page)
	root := h.doc.GetElementByID("root")
	if err := root.Append(h.doc.CreateElement("em")); err != nil {
		t.Fatal(err)
	}
	if err := root.LastChild().SetAttribute("x", "1"); err != nil {
		t.Fatal(err)
	}

	// Deliver the sync and the append, then break the replica.
	sink := h.primary.sink
	h.primary.sink = transport.NewCallback(func(ctx context.Context, env mutation.Envelope) error {
		if env.Type == mutation.TypeRecord && env.Record.Prop[0] == "setAttribute" {
			r, _ := h.hub.Replica(rootID)
			_ = r.Document().GetElementByID("root").LastChild().Remove()
		}
		return sink.Send(ctx, env)
	})
	err := h.flush()
	if !errors.Is(err, address.ErrUnresolvable) {
		t.Errorf("got %v, want ErrUnresolvable", err)
	}
}

func TestRefusedOperationKeepsMirroring(t *testing.T) {
	h := newHarness(t, page)
	root := h.doc.GetElementByID("root")
	if err := root.ClassList().Add(""); !errors.Is(err, dom.ErrSyntax) {
		t.Fatalf("add: got %v, want ErrSyntax", err)
	}
	if err := root.SetAttribute("data-x", "1"); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	r, _ := h.hub.Replica(rootID)
	if r.Refused() != 1 {
		t.Errorf("refused: got %d, want 1", r.Refused())
	}
	if v, _ := r.Document().GetElementByID("root").GetAttribute("data-x"); v != "1" {
		t.Errorf("data-x: got %q, want %q", v, "1")
	}
	h.assertMirrored()
}

func TestStallReleasesBlockedWriters(t *testing.T) {
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	errDown := errors.New("sink down")
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	sink := transport.NewCallback(func(ctx context.Context, env mutation.Envelope) error {
		once.Do(func() { close(entered) })
		<-release
		return errDown
	})
	p, err := NewPrimary(doc.Node(), sink, WithRootID(rootID), WithQueueSize(1), WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Sync(); err != nil {
		t.Fatal(err)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(context.Background()) }()
	<-entered

	root := doc.GetElementByID("root")
	if err := root.SetAttribute("a", "1"); err != nil {
		t.Fatal(err)
	}
	wrote := make(chan error, 1)
	go func() { wrote <- root.SetAttribute("b", "2") }()

	close(release)
	select {
	case err := <-runErr:
		if !errors.Is(err, errDown) {
			t.Errorf("run: got %v, want %v", err, errDown)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case err := <-wrote:
		if err != nil {
			t.Errorf("setAttribute: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer still blocked after the stall")
	}

	if p.Dropped() != 1 {
		t.Errorf("dropped: got %d, want 1", p.Dropped())
	}
	if !errors.Is(p.Err(), errDown) {
		t.Errorf("err: got %v, want %v", p.Err(), errDown)
	}
	if err := p.Run(context.Background()); !errors.Is(err, ErrStalled) {
		t.Errorf("run while stalled: got %v, want ErrStalled", err)
	}

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked")
	}
	if err := p.Sync(); !errors.Is(err, ErrClosed) {
		t.Errorf("sync after close: got %v, want ErrClosed", err)
	}
}

func TestResyncAfterStall(t *testing.T) {
	h := newHarness(t, page)
	failing := true
	sink := h.primary.sink
	h.primary.sink = transport.NewCallback(func(ctx context.Context, env mutation.Envelope) error {
		if failing {
			return errors.New("unreachable")
		}
		return sink.Send(ctx, env)
	})
	root := h.doc.GetElementByID("root")
	if err := root.SetAttribute("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := h.primary.Run(context.Background()); err == nil {
		t.Fatal("expected a delivery error")
	}
	if err := root.SetAttribute("b", "2"); err != nil {
		t.Fatal(err)
	}
	if h.primary.Dropped() != 1 {
		t.Errorf("dropped: got %d, want 1", h.primary.Dropped())
	}

	failing = false
	if err := h.primary.Sync(); err != nil {
		t.Fatal(err)
	}
	if h.primary.Err() != nil {
		t.Errorf("err after sync: got %v, want nil", h.primary.Err())
	}
	if err := root.SetAttribute("c", "3"); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	if got := len(h.records()); got != 1 {
		t.Errorf("records: got %d, want 1", got)
	}
	h.assertMirrored()
}

func TestElementRoot(t *testing.T) {
	doc, err := dom.ParseString(`<!DOCTYPE html><html><head></head><body>` +
		`<div id="app">hi<span>s</span></div><p>outside</p></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub(HubConfig{Logger: quiet()})
	app := doc.GetElementByID("app")
	p, err := NewPrimary(app, transport.NewCallback(hub.Deliver), WithRootID("app"), WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := app.FirstChild().SetData("X"); err != nil {
		t.Fatal(err)
	}
	if err := app.LastChild().SetAttribute("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := doc.Body().LastChild().SetAttribute("ignored", "1"); err != nil {
		t.Fatal(err)
	}
	p.Close()
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if p.Skipped() != 0 {
		t.Errorf("skipped: got %d, want 0", p.Skipped())
	}
	r, _ := hub.Replica("app")
	if diff := cmp.Diff(app.OuterHTML(), r.Root().OuterHTML()); diff != "" {
		t.Errorf("root (-primary +replica):\n%s", diff)
	}
	if r.Root().Parent() != r.Document().Body() {
		t.Error("replica root is not hosted in the body")
	}
	if r.Applied() != 2 {
		t.Errorf("applied: got %d, want 2", r.Applied())
	}
}

func TestFragmentRootRejected(t *testing.T) {
	doc := dom.NewHTMLDocument()
	_, err := NewPrimary(doc.CreateDocumentFragment(), transport.NewCallback(nil), WithLogger(quiet()))
	if !errors.Is(err, codec.ErrUnsupportedNode) {
		t.Errorf("got %v, want ErrUnsupportedNode", err)
	}
}

func TestFailedSyncKeepsReplica(t *testing.T) {
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	r := NewReplica(doc, quiet())
	before, err := r.Markup()
	if err != nil {
		t.Fatal(err)
	}
	snap := mutation.FragmentSnapshot{Children: []mutation.Snapshot{
		mutation.ElementSnapshot{Tag: "html"},
		mutation.TextSnapshot{Data: "loose"},
	}}
	if err := r.Sync(snap); !errors.Is(err, mutation.ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
	after, err := r.Markup()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("markup changed (-before +after):\n%s", diff)
	}
	if r.Document() != doc {
		t.Error("document replaced by a failed sync")
	}
}

func TestRecordBeforeSync(t *testing.T) {
	hub := NewHub(HubConfig{Logger: quiet()})
	env := mutation.Envelope{Type: mutation.TypeRecord, Root: "nope", Record: &mutation.Record{
		TargetPath: mutation.Address{}, Prop: mutation.OpPath{"normalize"}, Args: []mutation.Arg{},
	}}
	if err := hub.Deliver(context.Background(), env); !errors.Is(err, transport.ErrUnknownRoot) {
		t.Errorf("got %v, want ErrUnknownRoot", err)
	}
	if _, err := hub.Markup("nope"); !errors.Is(err, transport.ErrUnknownRoot) {
		t.Errorf("markup: got %v, want ErrUnknownRoot", err)
	}
	if hub.Roots() != 0 {
		t.Errorf("roots: got %d, want 0", hub.Roots())
	}
}

func TestResync(t *testing.T) {
	h := newHarness(t, page)
	if err := h.doc.GetElementByID("root").SetAttribute("lang", "fr"); err != nil {
		t.Fatal(err)
	}
	if err := h.primary.Sync(); err != nil {
		t.Fatal(err)
	}
	h.mustFlush()

	r, _ := h.hub.Replica(rootID)
	if r.Applied() != 0 {
		t.Errorf("applied after resync: got %d, want 0", r.Applied())
	}
	if first := r.Document().Node().FirstChild(); first.Category != dom.CategoryDoctype {
		t.Errorf("first child after resync: got %s", first.NodeName())
	}
	h.assertMirrored()
}

func TestInvalidRootID(t *testing.T) {
	doc := dom.NewHTMLDocument()
	if _, err := NewPrimary(doc.Node(), transport.NewCallback(nil), WithRootID("a/b")); err == nil {
		t.Error("expected an error")
	}
}

func TestGeneratedRootID(t *testing.T) {
	doc := dom.NewHTMLDocument()
	p, err := NewPrimary(doc.Node(), transport.NewCallback(nil), WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if len(p.ID()) != 36 {
		t.Errorf("generated id: got %q", p.ID())
	}
}

func TestOverHTTP(t *testing.T) {
	hub := NewHub(HubConfig{InertScripts: true, Logger: quiet()})
	srv := httptest.NewServer(transport.NewReceiver(hub, transport.ReceiverConfig{Logger: quiet()}).Handler())
	defer srv.Close()

	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	wh := transport.NewWebhook(srv.URL+"/roots/{root}/records",
		transport.WithWebhookBackoff(time.Millisecond), transport.WithWebhookLogger(quiet()))
	p, err := NewPrimary(doc.Node(), wh, WithRootID("remote"), WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := doc.GetElementByID("root").SetInnerHTML("<h1>live</h1>"); err != nil {
		t.Fatal(err)
	}
	p.Close()
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := hub.Markup("remote")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `<div id="root"><h1>live</h1></div>`) {
		t.Errorf("replica markup: got %s", got)
	}
}
