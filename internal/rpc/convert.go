package rpc

import (
	"fmt"
	"math/big"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/rpc/nilvmpb"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/storage"
	"github.com/nilvm/node/internal/vm"
)

// toWireValue flattens a named vm.Value into its wire form, mirroring
// internal/storage's own toWire but kept independent since the two wire
// shapes serve different callers (client RPC vs blob persistence) and are
// free to diverge.
func toWireValue(name string, v vm.Value) (nilvmpb.WireValue, error) {
	switch x := v.(type) {
	case vm.Public:
		return nilvmpb.WireValue{
			Name:      name,
			Kind:      "Public",
			FieldName: string(x.Elem.Field().Name()),
			Elem:      x.Elem.Int().Text(10),
		}, nil
	case vm.Private:
		return nilvmpb.WireValue{
			Name:       name,
			Kind:       "Private",
			FieldName:  string(x.Share.Value.Field().Name()),
			ShareValue: x.Share.Value.Int().Text(10),
			ShareIndex: x.Share.Index,
		}, nil
	default:
		return nilvmpb.WireValue{}, fmt.Errorf("rpc: unsupported value type %T", v)
	}
}

// fromWireValue reconstructs a vm.Value from its wire form.
func fromWireValue(w nilvmpb.WireValue) (vm.Value, error) {
	f := field.New(field.Name(w.FieldName))
	switch w.Kind {
	case "Public":
		n, ok := new(big.Int).SetString(w.Elem, 10)
		if !ok {
			return nil, fmt.Errorf("rpc: malformed public element %q", w.Elem)
		}
		return vm.Public{Elem: f.NewElem(n)}, nil
	case "Private":
		n, ok := new(big.Int).SetString(w.ShareValue, 10)
		if !ok {
			return nil, fmt.Errorf("rpc: malformed share value %q", w.ShareValue)
		}
		return vm.Private{Share: share.Share{Index: w.ShareIndex, Value: f.NewElem(n)}}, nil
	default:
		return nil, fmt.Errorf("rpc: unknown value kind %q", w.Kind)
	}
}

// valuesToWire flattens a named value map into its wire slice form.
func valuesToWire(values map[string]vm.Value) ([]nilvmpb.WireValue, error) {
	out := make([]nilvmpb.WireValue, 0, len(values))
	for name, v := range values {
		w, err := toWireValue(name, v)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// wireToValues reconstructs a named value map from its wire slice form.
func wireToValues(wire []nilvmpb.WireValue) (map[string]vm.Value, error) {
	out := make(map[string]vm.Value, len(wire))
	for _, w := range wire {
		v, err := fromWireValue(w)
		if err != nil {
			return nil, err
		}
		out[w.Name] = v
	}
	return out, nil
}

// toWirePermissions converts a storage.Permissions entry to its wire form.
func toWirePermissions(p storage.Permissions) nilvmpb.Permissions {
	compute := make([]nilvmpb.ComputePermission, len(p.Compute))
	for i, c := range p.Compute {
		compute[i] = nilvmpb.ComputePermission{User: c.User, ProgramIDs: c.ProgramIDs}
	}
	return nilvmpb.Permissions{
		Owner:    p.Owner,
		Retrieve: p.Retrieve,
		Update:   p.Update,
		Delete:   p.Delete,
		Compute:  compute,
	}
}

// fromWirePermissions converts a wire Permissions message to the storage
// layer's persisted shape.
func fromWirePermissions(p nilvmpb.Permissions) storage.Permissions {
	compute := make([]storage.ComputePermission, len(p.Compute))
	for i, c := range p.Compute {
		compute[i] = storage.ComputePermission{User: c.User, ProgramIDs: c.ProgramIDs}
	}
	return storage.Permissions{
		Owner:    p.Owner,
		Retrieve: p.Retrieve,
		Update:   p.Update,
		Delete:   p.Delete,
		Compute:  compute,
	}
}
