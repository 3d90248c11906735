package box

func mismatch(reg RegisterID, want Type, got Value) error {
	return NewDecodeError(CodeRegisterTypeMismatch, reg.String(), "want %s, got %s", want, got.Type())
}

// Long reads a Long register.
func (b *Box) Long(reg RegisterID) (int64, error) {
	v, err := b.Register(reg)
	if err != nil {
		return 0, err
	}
	return AsLong(reg, v)
}

// Bytes reads a Coll[Byte] register.
func (b *Box) Bytes(reg RegisterID) ([]byte, error) {
	v, err := b.Register(reg)
	if err != nil {
		return nil, err
	}
	return AsBytes(reg, v)
}

// AsInt unwraps an Int value.
func AsInt(reg RegisterID, v Value) (int32, error) {
	x, ok := v.(Int)
	if !ok {
		return 0, mismatch(reg, TypeInt, v)
	}
	return int32(x), nil
}

// AsLong unwraps a Long value.
func AsLong(reg RegisterID, v Value) (int64, error) {
	x, ok := v.(Long)
	if !ok {
		return 0, mismatch(reg, TypeLong, v)
	}
	return int64(x), nil
}

// AsBytes unwraps a Coll[Byte] value.
func AsBytes(reg RegisterID, v Value) ([]byte, error) {
	x, ok := v.(Bytes)
	if !ok {
		return nil, mismatch(reg, TypeBytes, v)
	}
	return []byte(x), nil
}

// AsLongColl unwraps a Coll[Long] value of exactly n elements.
func AsLongColl(reg RegisterID, v Value, n int) ([]int64, error) {
	x, ok := v.(LongColl)
	if !ok {
		return nil, mismatch(reg, TypeLongColl, v)
	}
	if len(x) != n {
		return nil, NewDecodeError(CodeMalformedCollectionLength, reg.String(), "want %d longs, got %d", n, len(x))
	}
	return []int64(x), nil
}

// AsBytesColl unwraps a Coll[Coll[Byte]] value.
func AsBytesColl(reg RegisterID, v Value) ([][]byte, error) {
	x, ok := v.(BytesColl)
	if !ok {
		return nil, mismatch(reg, TypeBytesColl, v)
	}
	return [][]byte(x), nil
}

// AsPair unwraps a Pair value.
func AsPair(reg RegisterID, v Value) (Pair, error) {
	x, ok := v.(Pair)
	if !ok {
		return Pair{}, mismatch(reg, TypePair, v)
	}
	return x, nil
}
