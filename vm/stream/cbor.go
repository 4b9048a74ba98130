package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/prota/vm"
	"github.com/fxamacker/cbor/v2"
)

// Version is the native document version this package writes.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("stream: failed to create CBOR encoding mode: " + err.Error())
	}
}

// RecordKind identifies the object a Record describes.
type RecordKind uint8

const (
	RecordBinary RecordKind = 0
	RecordArray  RecordKind = 1
	RecordFrame  RecordKind = 2
	RecordSymbol RecordKind = 3
)

// Document is the native stream: a table of object records and a root.
//
// Values inside a document are items: the tagged word of the value, except
// that a reference carries the index of its record in Objects instead of a
// heap handle.
type Document struct {
	Version uint8    `cbor:"1,keyasint"`
	Root    uint64   `cbor:"2,keyasint"`
	Objects []Record `cbor:"3,keyasint,omitempty"`
}

// Record describes one heap object. Binaries use Class and Data, arrays
// Class and Slots, frames Tags and Slots, and symbols Data (the name).
type Record struct {
	_     struct{} `cbor:",toarray"`
	Kind  RecordKind
	Class uint64
	Data  []byte
	Tags  []uint64
	Slots []uint64
}

func refItem(index int) uint64 {
	return uint64(index)<<2 | vm.TagRef
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type encoder struct {
	h       *vm.Heap
	index   map[vm.Value]int
	pending []vm.Value
	doc     Document
}

// Encode serializes the object graph reachable from root. Forwarders are
// written as the objects they resolve to; symbols are written by name.
func Encode(h *vm.Heap, root vm.Value) ([]byte, error) {
	e := &encoder{h: h, index: make(map[vm.Value]int), doc: Document{Version: Version}}
	item, err := e.item(root)
	if err != nil {
		return nil, err
	}
	e.doc.Root = item
	for i := 0; i < len(e.pending); i++ {
		rec, err := e.record(e.pending[i])
		if err != nil {
			return nil, err
		}
		e.doc.Objects[i] = rec
	}
	data, err := cborEncMode.Marshal(&e.doc)
	if err != nil {
		return nil, fmt.Errorf("stream: marshal document: %w", err)
	}
	return data, nil
}

// item returns the document form of v, queueing its object for writing the
// first time it is seen.
func (e *encoder) item(v vm.Value) (uint64, error) {
	if !v.IsRef() {
		return uint64(v), nil
	}
	r, err := e.h.Resolve(v)
	if err != nil {
		return 0, err
	}
	if i, ok := e.index[r]; ok {
		return refItem(i), nil
	}
	i := len(e.pending)
	e.index[r] = i
	e.pending = append(e.pending, r)
	e.doc.Objects = append(e.doc.Objects, Record{})
	return refItem(i), nil
}

func (e *encoder) items(vs []vm.Value) ([]uint64, error) {
	out := make([]uint64, len(vs))
	for i, v := range vs {
		item, err := e.item(v)
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

func (e *encoder) record(v vm.Value) (Record, error) {
	h := e.h
	if h.IsSymbol(v) {
		name, err := h.SymbolName(v)
		return Record{Kind: RecordSymbol, Data: []byte(name)}, err
	}
	switch h.Kind(v) {
	case vm.KindBinary:
		data, err := h.Data(v)
		if err != nil {
			return Record{}, err
		}
		cls, err := e.classItem(v)
		return Record{Kind: RecordBinary, Class: cls, Data: data}, err

	case vm.KindArray:
		elems, err := h.Elements(v)
		if err != nil {
			return Record{}, err
		}
		cls, err := e.classItem(v)
		if err != nil {
			return Record{}, err
		}
		slots, err := e.items(elems)
		return Record{Kind: RecordArray, Class: cls, Slots: slots}, err

	case vm.KindFrame:
		var tags, values []vm.Value
		if err := h.EachSlot(v, func(tag, val vm.Value) bool {
			tags = append(tags, tag)
			values = append(values, val)
			return true
		}); err != nil {
			return Record{}, err
		}
		rec := Record{Kind: RecordFrame}
		var err error
		if rec.Tags, err = e.items(tags); err != nil {
			return Record{}, err
		}
		rec.Slots, err = e.items(values)
		return rec, err
	}
	return Record{}, vm.FrError(vm.ErrInternal, v)
}

func (e *encoder) classItem(v vm.Value) (uint64, error) {
	cls, err := e.h.Class(v)
	if err != nil {
		return 0, err
	}
	return e.item(cls)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

type decoder struct {
	h    *vm.Heap
	doc  *Document
	vals []vm.Value
	maps map[string]vm.Value // tag list -> shared map
}

// Decode reads a native document into h and returns its root. Frames with
// the same tag list share one map, which the heap copies before the first
// structural change to any of them.
func Decode(h *vm.Heap, data []byte) (vm.Value, error) {
	var doc Document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return vm.Nil, fmt.Errorf("stream: unmarshal document: %w: %v", badFormat(), err)
	}
	if doc.Version != Version {
		return vm.Nil, fmt.Errorf("stream: document version %d: %w", doc.Version, badFormat())
	}
	d := &decoder{
		h:    h,
		doc:  &doc,
		vals: make([]vm.Value, len(doc.Objects)),
		maps: make(map[string]vm.Value),
	}
	if err := d.allocate(); err != nil {
		return vm.Nil, err
	}
	if err := d.allocateFrames(); err != nil {
		return vm.Nil, err
	}
	if err := d.fill(); err != nil {
		return vm.Nil, err
	}
	root, err := d.value(doc.Root)
	if err != nil {
		return vm.Nil, err
	}
	log.Debugf("decoded %d objects", len(doc.Objects))
	return root, nil
}

// value maps an item back to a heap value.
func (d *decoder) value(item uint64) (vm.Value, error) {
	v := vm.Value(item)
	if !v.IsRef() {
		return v, nil
	}
	i := int(item >> 2)
	if item>>2 >= uint64(len(d.vals)) || d.vals[i] == 0 {
		return vm.Nil, badFormat()
	}
	return d.vals[i], nil
}

// allocate creates every symbol, binary and array. Contents that refer to
// other objects are filled in later, once every record has a handle.
func (d *decoder) allocate() error {
	h := d.h
	for i, rec := range d.doc.Objects {
		switch rec.Kind {
		case RecordSymbol:
			if len(rec.Data) == 0 {
				return badFormat()
			}
			d.vals[i] = h.Intern(string(rec.Data))
		case RecordBinary:
			d.vals[i] = h.NewBinary(vm.Nil, rec.Data)
		case RecordArray:
			v, err := h.NewArray(vm.Nil, len(rec.Slots))
			if err != nil {
				return err
			}
			d.vals[i] = v
		case RecordFrame:
		default:
			return badFormat()
		}
	}
	return nil
}

func (d *decoder) allocateFrames() error {
	for i, rec := range d.doc.Objects {
		if rec.Kind != RecordFrame {
			continue
		}
		if len(rec.Tags) != len(rec.Slots) {
			return badFormat()
		}
		mapv, err := d.frameMap(rec.Tags)
		if err != nil {
			return err
		}
		if d.vals[i], err = d.h.NewFrameWithMap(mapv); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) frameMap(items []uint64) (vm.Value, error) {
	var key strings.Builder
	for _, item := range items {
		key.WriteString(strconv.FormatUint(item, 16))
		key.WriteByte(' ')
	}
	if mapv, ok := d.maps[key.String()]; ok {
		return mapv, nil
	}
	tags := make([]vm.Value, len(items))
	seen := make(map[vm.Value]bool, len(items))
	for i, item := range items {
		tag, err := d.value(item)
		if err != nil {
			return vm.Nil, err
		}
		if !d.h.IsSymbol(tag) || seen[tag] {
			return vm.Nil, badFormat()
		}
		seen[tag] = true
		tags[i] = tag
	}
	mapv, err := d.h.NewMapWithTags(tags, vm.Nil)
	if err != nil {
		return vm.Nil, err
	}
	d.maps[key.String()] = mapv
	return mapv, nil
}

func (d *decoder) fill() error {
	h := d.h
	for i, rec := range d.doc.Objects {
		obj := d.vals[i]
		switch rec.Kind {
		case RecordBinary, RecordArray:
			cls, err := d.value(rec.Class)
			if err != nil {
				return err
			}
			if err := h.SetClass(obj, cls); err != nil {
				return err
			}
		}
		switch rec.Kind {
		case RecordArray:
			for j, item := range rec.Slots {
				v, err := d.value(item)
				if err != nil {
					return err
				}
				if err := h.SetIndex(obj, j, v); err != nil {
					return err
				}
			}
		case RecordFrame:
			for j, item := range rec.Slots {
				v, err := d.value(item)
				if err != nil {
					return err
				}
				if err := h.SetFrameValueAt(obj, j, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
