package mutation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecordWireShape(t *testing.T) {
	r := &Record{
		TargetPath: Address{Index(1), EdgeStep(EdgeShadowRoot), Index(0)},
		Prop:       OpPath{"classList", "add"},
		Args:       []Arg{Scalar{Value: "x"}, Null{}, Undefined{}},
	}
	data, err := MarshalRecord(r)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"targetPath":[1,"shadowRoot",0],"prop":["classList","add"],"args":["x",null,["Undefined"]]}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}

	single := &Record{TargetPath: Address{}, Prop: OpPath{"remove"}}
	data, err = MarshalRecord(single)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"targetPath":[],"prop":"remove","args":[]}`; string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}
}

func TestRecordDecode(t *testing.T) {
	in := `{"targetPath":["location"],"prop":"hash","args":["top",["Date",1700000000000],["File",{"name":"a.txt","type":"text/plain","lastModified":5}]]}`
	r, err := UnmarshalRecord([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	want := &Record{
		TargetPath: Address{EdgeStep(EdgeLocation)},
		Prop:       OpPath{"hash"},
		Args: []Arg{
			Scalar{Value: "top"},
			Date{Millis: 1700000000000},
			File{Name: "a.txt", Type: "text/plain", LastModified: 5},
		},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("record (-want +got):\n%s", diff)
	}
}

func TestArgClassification(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Arg
	}{
		{"empty address", `[]`, Address{}},
		{"address", `[0,"content",2]`, Address{Index(0), EdgeStep(EdgeContent), Index(2)}},
		{"number", `3`, Scalar{Value: float64(3)}},
		{"bool", `true`, Scalar{Value: true}},
		{"data", `{"a":[1,2]}`, Data{"a": []any{float64(1), float64(2)}}},
		{"text", `["Text","hi"]`, TextSnapshot{Data: "hi"}},
		{"attr", `["Attr","href","#x"]`, AttrSnapshot{Name: "href", Value: "#x"}},
		{"style sheets", `["StyleSheets",[["a { b: c }"]]]`, StyleSheets{{"a { b: c }"}}},
		{"element named like an edge", `["content",{},[],{}]`, ElementSnapshot{Tag: "content", Attrs: Attrs{}, Children: []Snapshot{}}},
		{"template without content", `["HTMLTemplateElement",null]`, TemplateSnapshot{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalArg([]byte(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestArgMalformed(t *testing.T) {
	bad := []string{`[-1]`, `[1.5]`, `["Undefined",1]`, `["Date"]`, `["Text"]`, `[{}]`, `["div","x"]`, `nope`}
	for _, in := range bad {
		if _, err := UnmarshalArg([]byte(in)); err == nil {
			t.Errorf("UnmarshalArg(%s): want error", in)
		}
	}
}

func TestElementSnapshotWire(t *testing.T) {
	el := ElementSnapshot{
		Tag:   "div",
		Attrs: Attrs{{Name: "id", Value: "a"}, {Name: "class", Value: "b"}},
		Children: []Snapshot{
			TextSnapshot{Data: "hi"},
			TemplateSnapshot{Content: &FragmentSnapshot{Children: []Snapshot{CommentSnapshot{Data: "c"}}}},
		},
		Special: Special{
			ShadowRoot:         &ShadowRootSnapshot{Children: []Snapshot{}},
			Init:               &ShadowInit{DelegatesFocus: true, SlotAssignment: "named"},
			AdoptedStyleSheets: [][]string{{":host { color: red }"}},
		},
	}
	data, err := MarshalArg(el)
	if err != nil {
		t.Fatal(err)
	}
	want := `["div",{"id":"a","class":"b"},[["Text","hi"],["HTMLTemplateElement",["DocumentFragment",[["Comment","c"]]]]],` +
		`{"shadowRoot":["ShadowRoot",[]],"init":{"delegatesFocus":true,"slotAssignment":"named"},"adoptedStyleSheets":[[":host { color: red }"]]}]`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}
	got, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Snapshot(el), got); diff != "" {
		t.Errorf("decode (-want +got):\n%s", diff)
	}
}

func TestAttrsKeepOrder(t *testing.T) {
	var a Attrs
	if err := json.Unmarshal([]byte(`{"z":"1","a":"2","m":"3","a":"4"}`), &a); err != nil {
		t.Fatal(err)
	}
	want := Attrs{{"z", "1"}, {"a", "4"}, {"m", "3"}}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if err := json.Unmarshal([]byte(`{"a":1}`), &a); !errors.Is(err, ErrMalformed) {
		t.Errorf("numeric value: got %v, want ErrMalformed", err)
	}
}

func TestEnvelope(t *testing.T) {
	env := &Envelope{
		Type:     TypeSnapshot,
		Root:     "r1",
		ID:       "id-1",
		Snapshot: FragmentSnapshot{Children: []Snapshot{ElementSnapshot{Tag: "p", Attrs: Attrs{}, Children: []Snapshot{}}}},
	}
	data, err := MarshalEnvelope(env)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(env, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if _, err := UnmarshalEnvelope([]byte(`{"type":"record","root":"r1"}`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("record envelope without record: got %v", err)
	}
	if _, err := UnmarshalEnvelope([]byte(`{"type":"snapshot","root":"r1","snapshot":[0,1]}`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("address as snapshot: got %v", err)
	}
}

func TestInvalidStep(t *testing.T) {
	if _, err := json.Marshal(Address{EdgeStep("nowhere")}); err == nil {
		t.Error("unknown edge: want error")
	}
	if _, err := MarshalRecord(&Record{TargetPath: Address{}}); err == nil {
		t.Error("empty prop: want error")
	}
}
