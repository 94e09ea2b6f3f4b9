package storage

import (
	"testing"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/vm"
)

func TestEncodeDecodeValuesRoundTrip(t *testing.T) {
	f := field.New(field.Safe256Bits)
	values := map[string]vm.Value{
		"pub":  vm.Public{Elem: f.NewElemUint64(42)},
		"priv": vm.Private{Share: share.Share{Index: 1, Value: f.NewElemUint64(7)}},
	}

	data, err := encodeValues(values)
	if err != nil {
		t.Fatalf("encodeValues returned error: %v", err)
	}

	decoded, err := decodeValues(data)
	if err != nil {
		t.Fatalf("decodeValues returned error: %v", err)
	}

	pub, ok := decoded["pub"].(vm.Public)
	if !ok {
		t.Fatalf("expected Public, got %T", decoded["pub"])
	}
	if !pub.Elem.Eq(f.NewElemUint64(42)) {
		t.Fatalf("unexpected public value: %v", pub.Elem.Int())
	}

	priv, ok := decoded["priv"].(vm.Private)
	if !ok {
		t.Fatalf("expected Private, got %T", decoded["priv"])
	}
	if priv.Share.Index != 1 {
		t.Fatalf("unexpected share index: %d", priv.Share.Index)
	}
	if !priv.Share.Value.Eq(f.NewElemUint64(7)) {
		t.Fatalf("unexpected share value: %v", priv.Share.Value.Int())
	}
}
