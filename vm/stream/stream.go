// Package stream reads and writes Prota object graphs.
//
// Two formats are understood. The native format is a CBOR document holding
// an object table and a root; it round-trips any graph the heap can hold,
// cycles and shared structure included. The legacy format is the byte
// stream produced by older tools, which this package can read but not
// write.
package stream

import (
	"fmt"
	"os"

	"github.com/chazu/prota/vm"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("prota.stream")

// Format identifies an on-disk stream format.
type Format int

const (
	FormatUnknown Format = iota
	FormatCBOR
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatCBOR:
		return "cbor"
	case FormatLegacy:
		return "legacy"
	}
	return "unknown"
}

// Detect reports the format of data from its first byte. Legacy streams
// open with a version byte of 1 or 2; native documents open with a CBOR
// map header.
func Detect(data []byte) Format {
	if len(data) == 0 {
		return FormatUnknown
	}
	switch b := data[0]; {
	case b == 1 || b == 2:
		return FormatLegacy
	case b&0xE0 == 0xA0:
		return FormatCBOR
	}
	return FormatUnknown
}

// Read decodes a stream in either format into h and returns its root.
func Read(h *vm.Heap, data []byte) (vm.Value, error) {
	switch f := Detect(data); f {
	case FormatCBOR:
		return Decode(h, data)
	case FormatLegacy:
		return ReadLegacy(h, data)
	}
	return vm.Nil, badFormat()
}

// ReadFile reads the stream stored in path.
func ReadFile(h *vm.Heap, path string) (vm.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vm.Nil, fmt.Errorf("stream: read %s: %w", path, err)
	}
	v, err := Read(h, data)
	if err != nil {
		return vm.Nil, fmt.Errorf("stream: %s: %w", path, err)
	}
	log.Debugf("read %s (%s, %d bytes)", path, Detect(data), len(data))
	return v, nil
}

// WriteFile encodes the graph rooted at root and stores it in path.
func WriteFile(h *vm.Heap, path string, root vm.Value) error {
	data, err := Encode(h, root)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("stream: write %s: %w", path, err)
	}
	log.Debugf("wrote %s (%d bytes)", path, len(data))
	return nil
}

func badFormat() error {
	return vm.FrError(vm.ErrBadStreamFormat, vm.Nil)
}
