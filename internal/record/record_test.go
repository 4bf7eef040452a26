package record

import (
	"bytes"
	"encoding/json"
	"slices"
	"testing"
)

func TestRecord_SetKeepsInsertionOrder(t *testing.T) {
	r := New()
	r.Set("path", "/a.wav")
	r.Set("size", int64(3))
	r.Set("content", []byte{1, 2, 3})
	r.Set("path", "/a.wav.aac")

	if got := r.Keys(); !slices.Equal(got, []string{"path", "size", "content"}) {
		t.Fatalf("unexpected key order: %v", got)
	}
	if v, _ := r.Get("path"); v != "/a.wav.aac" {
		t.Fatalf("path not overwritten: %v", v)
	}

	r.Delete("size")
	if r.Has("size") || r.Len() != 2 {
		t.Fatalf("delete failed: %v", r.Keys())
	}
}

func TestRecord_ZeroValueUsable(t *testing.T) {
	var r Record
	if _, ok := r.Get("x"); ok {
		t.Fatal("zero record should be empty")
	}
	r.Set("x", "y")
	if s, ok := r.GetString("x"); !ok || s != "y" {
		t.Fatalf("GetString = %q, %v", s, ok)
	}
}

func TestRecord_CloneCopiesBytes(t *testing.T) {
	r := New()
	r.Set("content", []byte("abc"))
	c := r.Clone()
	c.Set("extra", true)
	b, _ := c.GetBytes("content")
	b[0] = 'X'

	orig, _ := r.GetBytes("content")
	if string(orig) != "abc" {
		t.Fatalf("clone shares byte slice: %q", orig)
	}
	if r.Has("extra") {
		t.Fatal("clone shares field set")
	}
}

func TestRecord_JSONPreservesOrderAndNumbers(t *testing.T) {
	in := []byte(`{"zeta":1,"alpha":"a","mid":2.5,"nested":{"n":3},"list":[1,"x"]}`)
	var r Record
	if err := json.Unmarshal(in, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := r.Keys(); !slices.Equal(got, []string{"zeta", "alpha", "mid", "nested", "list"}) {
		t.Fatalf("order lost: %v", got)
	}
	if v, _ := r.Get("zeta"); v != int64(1) {
		t.Fatalf("zeta = %#v, want int64(1)", v)
	}
	if v, _ := r.Get("mid"); v != 2.5 {
		t.Fatalf("mid = %#v, want 2.5", v)
	}
	nested, _ := r.Get("nested")
	if m, ok := nested.(map[string]any); !ok || m["n"] != int64(3) {
		t.Fatalf("nested = %#v", nested)
	}

	out, err := json.Marshal(&r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("marshal = %s, want %s", out, in)
	}
}

func TestRecord_JSONRejectsNonObject(t *testing.T) {
	if _, err := FormatJSON.Unmarshal([]byte(`[1,2]`)); err == nil {
		t.Fatal("expected error for JSON array")
	}
}

func TestRecord_MsgpackKeepsBinaryAndOrder(t *testing.T) {
	r := New()
	r.Set("path", "/tmp/test.wav")
	r.Set("device", int64(0))
	r.Set("content", []byte{0x00, 0xff, 0x10})

	b, err := FormatMsgpack.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := FormatMsgpack.Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !slices.Equal(got.Keys(), r.Keys()) {
		t.Fatalf("order = %v", got.Keys())
	}
	content, _ := got.Get("content")
	if cb, ok := content.([]byte); !ok || !bytes.Equal(cb, []byte{0x00, 0xff, 0x10}) {
		t.Fatalf("content = %#v", content)
	}
	if v, _ := got.Get("device"); v != int64(0) {
		t.Fatalf("device = %#v", v)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Fatalf("default format = %q, %v", f, err)
	}
	if f, err := ParseFormat("MsgPack"); err != nil || f != FormatMsgpack {
		t.Fatalf("msgpack = %q, %v", f, err)
	}
	if _, err := ParseFormat("avro"); err == nil {
		t.Fatal("expected error for avro")
	}
}

func TestText(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"hi", "hi"},
		{[]byte("raw"), "raw"},
		{int64(52), "52"},
		{3.5, "3.5"},
		{true, "true"},
		{map[string]any{"a": int64(1)}, `{"a":1}`},
		{[]any{"x", int64(2)}, `["x",2]`},
	}
	for _, c := range cases {
		if got := Text(c.in); got != c.want {
			t.Fatalf("Text(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRecord_MsgpackKeepsNestedBinary(t *testing.T) {
	r := New()
	r.Set("meta", map[string]any{"thumb": []byte{0x89, 'P', 'N', 'G'}, "name": "x"})
	r.Set("chunks", []any{[]byte{0x00}, "text"})

	b, err := FormatMsgpack.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := FormatMsgpack.Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	meta, _ := got.Get("meta")
	m, ok := meta.(map[string]any)
	if !ok {
		t.Fatalf("meta = %#v", meta)
	}
	if tb, ok := m["thumb"].([]byte); !ok || !bytes.Equal(tb, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatalf("thumb = %#v", m["thumb"])
	}
	if m["name"] != "x" {
		t.Fatalf("name = %#v", m["name"])
	}
	chunks, _ := got.Get("chunks")
	cs, ok := chunks.([]any)
	if !ok || len(cs) != 2 {
		t.Fatalf("chunks = %#v", chunks)
	}
	if cb, ok := cs[0].([]byte); !ok || !bytes.Equal(cb, []byte{0x00}) {
		t.Fatalf("chunks[0] = %#v", cs[0])
	}
	if cs[1] != "text" {
		t.Fatalf("chunks[1] = %#v", cs[1])
	}
}

func TestRecord_JSONRoundTripBinaryViaGetBinary(t *testing.T) {
	wav := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0xff, 0x10}
	r := New()
	r.Set("content", wav)

	b, err := FormatJSON.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := FormatJSON.Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	content, ok := got.GetBinary("content")
	if !ok || !bytes.Equal(content, wav) {
		t.Fatalf("content = %q, want %q", content, wav)
	}
}

func TestRecord_GetBinary(t *testing.T) {
	r := New()
	r.Set("raw", []byte{1, 2})
	r.Set("b64", "AQI=")
	r.Set("text", "hello world")
	r.Set("num", int64(1))

	for key, want := range map[string][]byte{
		"raw":  {1, 2},
		"b64":  {1, 2},
		"text": []byte("hello world"),
	} {
		if got, ok := r.GetBinary(key); !ok || !bytes.Equal(got, want) {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if _, ok := r.GetBinary("num"); ok {
		t.Error("num should not read as binary")
	}
}
