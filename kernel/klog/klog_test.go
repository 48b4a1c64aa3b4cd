package klog

import (
	"bytes"
	"testing"
)

func TestFprintf(t *testing.T) {
	specs := []struct {
		fn        func(buf *bytes.Buffer)
		expOutput string
	}{
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "no args") },
			"no args",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "%t", true) },
			"true",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "%41t", false) },
			"false",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "%s arg", "STRING") },
			"STRING arg",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "%s arg", []byte("BYTE SLICE")) },
			"BYTE SLICE arg",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "'%4s' padded", "AB") },
			"'  AB' padded",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "'%4s' longer than padding", "ABCDE") },
			"'ABCDE' longer than padding",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "uint arg: %d", uint8(10)) },
			"uint arg: 10",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "uint arg: %o", uint16(0777)) },
			"uint arg: 777",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "uint arg: 0x%x", uint32(0xbadf00d)) },
			"uint arg: 0xbadf00d",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "padded: '%10d'", uint64(123)) },
			"padded: '       123'",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "padded: '%4o'", uint64(0777)) },
			"padded: '0777'",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "int arg: %d", int8(-10)) },
			"int arg: -10",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "int arg: %x", int32(-0xbadf00d)) },
			"int arg: -badf00d",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "padded int: '%10d'", int64(-12345678)) },
			"padded int: ' -12345678'",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "%%%s%d%t", "foo", 123, true) },
			"%foo123true",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "more args", "foo", "bar") },
			"more args%!(EXTRA)%!(EXTRA)",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "missing args %s") },
			"missing args (MISSING)",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "bad verb %Q") },
			"bad verb %!(NOVERB)",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "not bool %t", "foo") },
			"not bool %!(WRONGTYPE)",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "not int %d", "foo") },
			"not int %!(WRONGTYPE)",
		},
		{
			func(buf *bytes.Buffer) { Fprintf(buf, "not string %s", 123) },
			"not string %!(WRONGTYPE)",
		},
	}

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		spec.fn(&buf)

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected to get\n%q\ngot:\n%q", specIndex, spec.expOutput, got)
		}
	}
}

func TestFprintfNilWriterBuffersToBacklog(t *testing.T) {
	backlog = ringBuffer{}

	Fprintf(nil, "buffered: %d", 42)

	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(nil)

	if got := buf.String(); got != "buffered: 42" {
		t.Fatalf("expected backlog to flush to the new sink; got %q", got)
	}
}

func TestSetSinkFlushesBacklog(t *testing.T) {
	backlog = ringBuffer{}
	Printf("queued before sink attaches")

	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(nil)

	if got := buf.String(); got != "queued before sink attaches" {
		t.Fatalf("expected SetSink to flush queued output; got %q", got)
	}
}
