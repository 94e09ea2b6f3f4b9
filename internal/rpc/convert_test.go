package rpc

import (
	"testing"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/rpc/nilvmpb"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/storage"
	"github.com/nilvm/node/internal/vm"
)

func TestWireValueRoundTripsPublic(t *testing.T) {
	f := field.New(field.Safe64Bits)
	v := vm.Public{Elem: f.NewElemUint64(7)}

	w, err := toWireValue("x", v)
	if err != nil {
		t.Fatalf("toWireValue: %v", err)
	}
	got, err := fromWireValue(w)
	if err != nil {
		t.Fatalf("fromWireValue: %v", err)
	}
	pub, ok := got.(vm.Public)
	if !ok {
		t.Fatalf("expected vm.Public, got %T", got)
	}
	if !pub.Elem.Eq(v.Elem) {
		t.Fatalf("round trip mismatch: got %v, want %v", pub.Elem, v.Elem)
	}
}

func TestWireValueRoundTripsPrivate(t *testing.T) {
	f := field.New(field.Safe64Bits)
	v := vm.Private{Share: share.Share{Index: 3, Value: f.NewElemUint64(99)}}

	w, err := toWireValue("y", v)
	if err != nil {
		t.Fatalf("toWireValue: %v", err)
	}
	got, err := fromWireValue(w)
	if err != nil {
		t.Fatalf("fromWireValue: %v", err)
	}
	priv, ok := got.(vm.Private)
	if !ok {
		t.Fatalf("expected vm.Private, got %T", got)
	}
	if priv.Share.Index != 3 || !priv.Share.Value.Eq(v.Share.Value) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", priv.Share, v.Share)
	}
}

func TestValuesToWireRoundTrip(t *testing.T) {
	f := field.New(field.Safe64Bits)
	values := map[string]vm.Value{
		"a": vm.Public{Elem: f.NewElemUint64(1)},
		"b": vm.Private{Share: share.Share{Index: 1, Value: f.NewElemUint64(2)}},
	}

	wire, err := valuesToWire(values)
	if err != nil {
		t.Fatalf("valuesToWire: %v", err)
	}
	if len(wire) != 2 {
		t.Fatalf("expected 2 wire values, got %d", len(wire))
	}

	back, err := wireToValues(wire)
	if err != nil {
		t.Fatalf("wireToValues: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 values back, got %d", len(back))
	}
	if _, ok := back["a"].(vm.Public); !ok {
		t.Fatalf("expected %q to round-trip as vm.Public", "a")
	}
	if _, ok := back["b"].(vm.Private); !ok {
		t.Fatalf("expected %q to round-trip as vm.Private", "b")
	}
}

func TestFromWireValueRejectsUnknownKind(t *testing.T) {
	w := nilvmpb.WireValue{Name: "z", Kind: "Bogus", FieldName: string(field.Safe64Bits)}
	if _, err := fromWireValue(w); err == nil {
		t.Fatal("expected an error for an unknown wire value kind")
	}
}

func TestPermissionsRoundTrip(t *testing.T) {
	p := storage.Permissions{
		Owner:    "alice",
		Retrieve: []string{"bob"},
		Update:   []string{"carol"},
		Delete:   []string{"dave"},
		Compute: []storage.ComputePermission{
			{User: "erin", ProgramIDs: []string{"prog-1", "prog-2"}},
		},
	}

	wire := toWirePermissions(p)
	back := fromWirePermissions(wire)

	if back.Owner != p.Owner {
		t.Fatalf("owner mismatch: got %q, want %q", back.Owner, p.Owner)
	}
	if len(back.Compute) != 1 || back.Compute[0].User != "erin" || len(back.Compute[0].ProgramIDs) != 2 {
		t.Fatalf("compute permissions did not round-trip: %+v", back.Compute)
	}
}
