package vm

// ---------------------------------------------------------------------------
// Frame maps
// ---------------------------------------------------------------------------

// A map is an array whose class is an integer of map flags. Slot 0 holds the
// supermap (or nil). A sequential map lists its tags in slots 1..n. A hashed
// map keeps its occupancy count in slot 1 and an open-addressed table of tags
// in the remaining slots, whose length is a power of two.
//
// A frame's data holds the supermap chain's slots first, then the slots of
// its own map, so a tag's offset is its local position plus the size of
// every supermap in the chain.

// Map flags
const (
	mapHashed = 2
	mapShared = 8
)

// promoteSize is the local slot count at which a sequential map turns into
// a hash table. It is also the smallest table a hashed map shrinks to.
const promoteSize = 32

// Hash table markers. Tags are always symbols, so neither can collide.
const (
	emptyTag  = Nil
	tombstone = Value(0) // integer 0
)

func mapFlags(m *Object) int64 {
	return m.cls.UnsafeInt()
}

func mapIsHashed(m *Object) bool {
	return mapFlags(m)&mapHashed != 0
}

func mapIsShared(m *Object) bool {
	return mapFlags(m)&mapShared != 0
}

func mapSuper(m *Object) Value {
	return m.slots[0]
}

// mapTags returns the local tags of a map: the tag list, or the hash table.
func mapTags(m *Object) []Value {
	if mapIsHashed(m) {
		return m.slots[2:]
	}
	return m.slots[1:]
}

func mapOccupied(m *Object) int {
	if mapIsHashed(m) {
		return int(m.slots[1].UnsafeInt())
	}
	return len(m.slots) - 1
}

func setMapOccupied(m *Object, n int) {
	m.slots[1] = FromInt(int64(n))
}

func (h *Heap) mapObject(v Value) (*Object, error) {
	o, err := h.object(v)
	if err != nil {
		return nil, err
	}
	if !o.isArray() || !o.cls.IsInt() {
		return nil, frError(ErrInternal, v)
	}
	if len(o.slots) < 1 || mapIsHashed(o) && len(o.slots) < 2 {
		return nil, frError(ErrInternal, v)
	}
	return o, nil
}

// IsMap reports whether v is a frame map.
func (h *Heap) IsMap(v Value) bool {
	_, err := h.mapObject(v)
	return err == nil
}

// NewMap allocates an empty sequential map.
func (h *Heap) NewMap(supermap Value) Value {
	return h.alloc(&Object{flags: flagSlotted, cls: FromInt(0), slots: []Value{supermap}})
}

// NewMapWithTags allocates a sequential map listing tags, chained to
// supermap (nil for none). Stream readers and frame literals build their
// layouts this way.
func (h *Heap) NewMapWithTags(tags []Value, supermap Value) (Value, error) {
	if supermap != Nil {
		if _, err := h.mapObject(supermap); err != nil {
			return Nil, err
		}
	}
	slots := make([]Value, 1, len(tags)+1)
	slots[0] = supermap
	for _, tag := range tags {
		if !h.IsSymbol(tag) {
			return Nil, typeError(ErrNotASymbol, tag)
		}
		slots = append(slots, tag)
	}
	return h.alloc(&Object{flags: flagSlotted, cls: FromInt(0), slots: slots}), nil
}

// MapTags returns the tags of a map chain in data order. Hash table
// buckets that are empty or tombstoned are reported as nil so positions
// line up with frame data.
func (h *Heap) MapTags(mapv Value) ([]Value, error) {
	m, err := h.mapObject(mapv)
	if err != nil {
		return nil, err
	}
	var out []Value
	if super := mapSuper(m); super != Nil {
		if out, err = h.MapTags(super); err != nil {
			return nil, err
		}
	}
	for _, tag := range mapTags(m) {
		if tag == tombstone {
			tag = Nil
		}
		out = append(out, tag)
	}
	return out, nil
}

// prefixSize returns the number of data slots a map chain describes.
func (h *Heap) prefixSize(mapv Value) (int, error) {
	n := 0
	for mapv != Nil {
		m, err := h.mapObject(mapv)
		if err != nil {
			return 0, err
		}
		n += len(mapTags(m))
		mapv = mapSuper(m)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// FindOffset locates tag in a map chain, searching supermaps first. When
// found it returns the data offset of the slot. Otherwise it returns the
// number of slots scanned, which is where an appended slot would go.
func (h *Heap) FindOffset(mapv, tag Value) (int, bool, error) {
	if !h.IsSymbol(tag) {
		return 0, false, typeError(ErrNotASymbol, tag)
	}
	return h.findOffset(mapv, tag)
}

func (h *Heap) findOffset(mapv, tag Value) (int, bool, error) {
	m, err := h.mapObject(mapv)
	if err != nil {
		return 0, false, err
	}
	prev := 0
	if super := mapSuper(m); super != Nil {
		off, found, err := h.findOffset(super, tag)
		if err != nil || found {
			return off, found, err
		}
		prev = off
	}
	tags := mapTags(m)
	if mapIsHashed(m) {
		so, err := h.symbolObject(tag)
		if err != nil {
			return 0, false, err
		}
		slot, _, found := h.findHashMapTag(tags, so.symbolHash(), tag)
		if found {
			return prev + slot, true, nil
		}
		return prev + len(tags), false, nil
	}
	for i, t := range tags {
		if h.EQ(t, tag) {
			return prev + i, true, nil
		}
	}
	return prev + len(tags), false, nil
}

// findHashMapTag searches a power-of-two table with double hashing. It
// returns the bucket holding tag if found, and the first empty or tombstoned
// bucket seen on the probe path, or -1. Probing stops at an empty bucket or
// after visiting every bucket once; the odd increment guarantees the probe
// sequence covers the whole table.
func (h *Heap) findHashMapTag(table []Value, hash uint32, tag Value) (slot, free int, found bool) {
	mask := uint32(len(table) - 1)
	bucket := hash & mask
	incr := ((hash * 13) & mask) | 1
	free = -1
	for range table {
		switch c := table[bucket]; {
		case c == emptyTag:
			if free < 0 {
				free = int(bucket)
			}
			return int(bucket), free, false
		case c == tombstone:
			if free < 0 {
				free = int(bucket)
			}
		case h.EQ(c, tag):
			return int(bucket), free, true
		}
		bucket = (bucket + incr) & mask
	}
	return -1, free, false
}

// ---------------------------------------------------------------------------
// Rehashing
// ---------------------------------------------------------------------------

// rehash gives frame a fresh hashed map of newSize buckets (a power of two)
// holding its current local tags, and rearranges the frame's data to match.
// The supermap prefix of the data is carried over unchanged.
func (h *Heap) rehash(frame *Object, newSize int) error {
	m, err := h.mapObject(frame.cls)
	if err != nil {
		return err
	}
	super := mapSuper(m)
	prev, err := h.prefixSize(super)
	if err != nil {
		return err
	}

	slots := nilSlots(2 + newSize)
	slots[0] = super
	table := slots[2:]
	data := nilSlots(prev + newSize)
	copy(data, frame.slots[:prev])

	occupied := 0
	for i, tag := range mapTags(m) {
		if tag == emptyTag || tag == tombstone {
			continue
		}
		so, err := h.symbolObject(tag)
		if err != nil {
			return err
		}
		_, free, _ := h.findHashMapTag(table, so.symbolHash(), tag)
		if free < 0 {
			return frError(ErrInternal, tag)
		}
		table[free] = tag
		data[prev+free] = frame.slots[prev+i]
		occupied++
	}
	slots[1] = FromInt(int64(occupied))

	frame.cls = h.alloc(&Object{flags: flagSlotted, cls: FromInt(mapHashed), slots: slots})
	frame.slots = data
	return nil
}

// promote converts a frame's local map to a hash table sized so that the
// current slots occupy at most three quarters of it.
func (h *Heap) promote(frame *Object, m *Object) error {
	n := mapOccupied(m)
	size := 1
	for size < n {
		size *= 2
	}
	if n > size/2+size/4 {
		size *= 2
	}
	return h.rehash(frame, size)
}

// privatize gives frame its own copy of a shared map level.
func (h *Heap) privatize(frame *Object, m *Object) *Object {
	if !mapIsShared(m) {
		return m
	}
	slots := make([]Value, len(m.slots))
	copy(slots, m.slots)
	priv := &Object{flags: flagSlotted, cls: FromInt(mapFlags(m) &^ mapShared), slots: slots}
	frame.cls = h.alloc(priv)
	return priv
}

func (h *Heap) markShared(mapv Value) error {
	m, err := h.mapObject(mapv)
	if err != nil {
		return err
	}
	m.cls = FromInt(mapFlags(m) | mapShared)
	return nil
}

// ---------------------------------------------------------------------------
// Adding and removing slots
// ---------------------------------------------------------------------------

// addSlot adds tag, known to be absent, to frame's own map and returns the
// data offset of the new slot.
func (h *Heap) addSlot(frame *Object, tag Value) (int, error) {
	m, err := h.mapObject(frame.cls)
	if err != nil {
		return 0, err
	}
	m = h.privatize(frame, m)
	prev, err := h.prefixSize(mapSuper(m))
	if err != nil {
		return 0, err
	}

	if !mapIsHashed(m) {
		n := len(m.slots) - 1
		if n >= promoteSize {
			if err := h.promote(frame, m); err != nil {
				return 0, err
			}
			return h.addSlot(frame, tag)
		}
		m.slots = append(m.slots, tag)
		frame.slots = append(frame.slots, Nil)
		return prev + n, nil
	}

	table := mapTags(m)
	if mapOccupied(m) > len(table)/2+len(table)/4 {
		if err := h.rehash(frame, len(table)*2); err != nil {
			return 0, err
		}
		return h.addSlot(frame, tag)
	}
	so, err := h.symbolObject(tag)
	if err != nil {
		return 0, err
	}
	slot, free, found := h.findHashMapTag(table, so.symbolHash(), tag)
	if found {
		return prev + slot, nil
	}
	if free < 0 {
		// Every bucket is occupied or tombstoned; a rehash clears tombstones.
		if err := h.rehash(frame, len(table)); err != nil {
			return 0, err
		}
		return h.addSlot(frame, tag)
	}
	table[free] = tag
	setMapOccupied(m, mapOccupied(m)+1)
	return prev + free, nil
}

// removeSlot removes tag from frame if present.
func (h *Heap) removeSlot(frame *Object, tag Value) error {
	off, found, err := h.FindOffset(frame.cls, tag)
	if err != nil || !found {
		return err
	}
	m, err := h.mapObject(frame.cls)
	if err != nil {
		return err
	}
	prev, err := h.prefixSize(mapSuper(m))
	if err != nil {
		return err
	}
	if off < prev {
		return h.flatten(frame, tag)
	}

	m = h.privatize(frame, m)
	local := off - prev
	if !mapIsHashed(m) {
		copy(m.slots[1+local:], m.slots[2+local:])
		m.slots = m.slots[:len(m.slots)-1]
		copy(frame.slots[off:], frame.slots[off+1:])
		frame.slots[len(frame.slots)-1] = Nil
		frame.slots = frame.slots[:len(frame.slots)-1]
		return nil
	}

	table := mapTags(m)
	table[local] = tombstone
	frame.slots[off] = Nil
	occupied := mapOccupied(m) - 1
	setMapOccupied(m, occupied)
	if len(table) > promoteSize && occupied < len(table)/4 {
		return h.rehash(frame, len(table)/2)
	}
	return nil
}

// flatten rebuilds frame with a single private map holding every slot of
// its chain except drop. Supermaps are shared layout and are never edited
// through a frame.
func (h *Heap) flatten(frame *Object, drop Value) error {
	tags := []Value{Nil}
	var data []Value
	err := h.walkMap(frame.cls, frame.slots, func(tag, v Value) bool {
		if !h.EQ(tag, drop) {
			tags = append(tags, tag)
			data = append(data, v)
		}
		return true
	})
	if err != nil {
		return err
	}
	m := &Object{flags: flagSlotted, cls: FromInt(0), slots: tags}
	frame.cls = h.alloc(m)
	frame.slots = data
	if len(tags)-1 > promoteSize {
		return h.promote(frame, m)
	}
	return nil
}

// walkMap calls fn for every occupied slot of a map chain in data order,
// stopping early when fn returns false.
func (h *Heap) walkMap(mapv Value, data []Value, fn func(tag, v Value) bool) error {
	_, _, err := h.walkLevel(mapv, data, fn)
	return err
}

func (h *Heap) walkLevel(mapv Value, data []Value, fn func(tag, v Value) bool) (next int, stopped bool, err error) {
	m, err := h.mapObject(mapv)
	if err != nil {
		return 0, false, err
	}
	base := 0
	if super := mapSuper(m); super != Nil {
		base, stopped, err = h.walkLevel(super, data, fn)
		if err != nil || stopped {
			return base, stopped, err
		}
	}
	tags := mapTags(m)
	for i, tag := range tags {
		if tag == emptyTag || tag == tombstone {
			continue
		}
		if base+i >= len(data) {
			return 0, false, frError(ErrInternal, tag)
		}
		if !fn(tag, data[base+i]) {
			return base + i, true, nil
		}
	}
	return base + len(tags), false, nil
}

// mapOccupiedChain counts occupied slots across a map chain.
func (h *Heap) mapOccupiedChain(mapv Value) (int, error) {
	n := 0
	for mapv != Nil {
		m, err := h.mapObject(mapv)
		if err != nil {
			return 0, err
		}
		n += mapOccupied(m)
		mapv = mapSuper(m)
	}
	return n, nil
}

// mapTagAt returns the tag describing data offset index, or nil for an
// empty or tombstoned bucket.
func (h *Heap) mapTagAt(mapv Value, index int) (Value, error) {
	m, err := h.mapObject(mapv)
	if err != nil {
		return Nil, err
	}
	prev := 0
	if super := mapSuper(m); super != Nil {
		if prev, err = h.prefixSize(super); err != nil {
			return Nil, err
		}
		if index < prev {
			return h.mapTagAt(super, index)
		}
	}
	tags := mapTags(m)
	local := index - prev
	if local < 0 || local >= len(tags) {
		return Nil, frError(ErrOutOfBounds, FromInt(int64(index)))
	}
	if t := tags[local]; t != tombstone {
		return t, nil
	}
	return Nil, nil
}

// CheckFrame verifies a frame's map bookkeeping: data length matches the
// map chain, hashed occupancy matches the table, and every empty or
// tombstoned bucket has nil data.
func (h *Heap) CheckFrame(frame Value) error {
	o, err := h.frameObject(frame)
	if err != nil {
		return err
	}
	m, err := h.mapObject(o.cls)
	if err != nil {
		return err
	}
	total, err := h.prefixSize(o.cls)
	if err != nil {
		return err
	}
	if len(o.slots) != total {
		return frError(ErrInternal, frame)
	}
	if !mapIsHashed(m) {
		return nil
	}
	prev := total - len(mapTags(m))
	occupied := 0
	for i, tag := range mapTags(m) {
		if tag == emptyTag || tag == tombstone {
			if o.slots[prev+i] != Nil {
				return frError(ErrInternal, frame)
			}
			continue
		}
		occupied++
	}
	if occupied != mapOccupied(m) {
		return frError(ErrInternal, frame)
	}
	return nil
}
