package actor

import (
	"fmt"
	"reflect"
	"sync"

	cbor "github.com/fxamacker/cbor/v2"
)

// The codec registry backs serialized delivery: message types are mapped to
// stable wire names so a message can be marshaled to deterministic CBOR and
// rebuilt on the receiving side without shared memory.

type registry struct {
	mu      sync.RWMutex
	byName  map[string]reflect.Type
	byType  map[reflect.Type]string
	encMode cbor.EncMode
	decMode cbor.DecMode
}

var messages = newRegistry()

func newRegistry() *registry {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor dec mode: %v", err))
	}
	return &registry{
		byName:  make(map[string]reflect.Type),
		byType:  make(map[reflect.Type]string),
		encMode: em,
		decMode: dm,
	}
}

// RegisterMessage binds a wire name to a message type. prototype must be a
// struct value (not a pointer); registration of an already-bound name
// overwrites it. Typically called from package init of the message owner.
func RegisterMessage(name string, prototype any) {
	t := reflect.TypeOf(prototype)
	messages.mu.Lock()
	defer messages.mu.Unlock()
	messages.byName[name] = t
	messages.byType[t] = name
}

// wireFrame is the serialized form of one delivered message.
type wireFrame struct {
	Type string `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

// roundtrip marshals msg and rebuilds a fresh value from the bytes,
// enforcing remote-transport semantics for serialized mailboxes.
func roundtrip(msg any) (any, error) {
	messages.mu.RLock()
	name, ok := messages.byType[reflect.TypeOf(msg)]
	t := messages.byName[name]
	messages.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}

	data, err := messages.encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", name, err)
	}
	frame, err := messages.encMode.Marshal(wireFrame{Type: name, Data: data})
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", name, err)
	}

	var decoded wireFrame
	if err := messages.decMode.Unmarshal(frame, &decoded); err != nil {
		return nil, fmt.Errorf("unframe %s: %w", name, err)
	}
	out := reflect.New(t)
	if err := messages.decMode.Unmarshal(decoded.Data, out.Interface()); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return out.Elem().Interface(), nil
}

func init() {
	RegisterMessage("actor.started", Started{})
}
