package bloom

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
)

// BitSetMem is the in-memory implementation of IBitSet.
// _size_ is the number of bits in the bitset
// _set_ is the word-packed bitset adopted from
// https://github.com/bits-and-blooms/bitset
type BitSetMem struct {
	set  *bitset.BitSet
	size uint
}

// NewBitSetMem creates a new BitSetMem of size _size_ with all
// bits unset. This is the only allocation a filter backed by it
// ever makes.
func NewBitSetMem(size uint) *BitSetMem {
	return &BitSetMem{bitset.New(size), size}
}

// FromDataMem creates an instance of BitSetMem from the
// uint64 words passed in _data_
func FromDataMem(data []uint64) *BitSetMem {
	return &BitSetMem{bitset.From(data), uint(len(data) * wordSize)}
}

// Size returns the size of the bitset
func (bitSet *BitSetMem) Size() uint {
	return bitSet.size
}

// Has checks if the bit at index _index_ is set
func (bitSet *BitSetMem) Has(index uint) (bool, error) {
	return bitSet.set.Test(index), nil
}

// HasMulti checks the bits at the indices specified by the
// _indexes_ array
func (bitSet *BitSetMem) HasMulti(indexes []uint) ([]bool, error) {
	if len(indexes) == 0 {
		return nil, fmt.Errorf("bloom: at least 1 index is required")
	}
	result := make([]bool, len(indexes))
	for i := range indexes {
		result[i] = bitSet.set.Test(indexes[i])
	}
	return result, nil
}

// Insert sets the bit at index specified by _index_
func (bitSet *BitSetMem) Insert(index uint) (bool, error) {
	bitSet.set.Set(index)
	return true, nil
}

// InsertMulti sets the bits at the indices specified by the
// _indexes_ array
func (bitSet *BitSetMem) InsertMulti(indexes []uint) (bool, error) {
	if len(indexes) == 0 {
		return false, fmt.Errorf("bloom: at least 1 index is required")
	}
	for i := range indexes {
		bitSet.set.Set(indexes[i])
	}
	return true, nil
}

// Any returns the first set bit in the bitset starting from index 0
func (bitSet *BitSetMem) Any() (uint, bool) {
	index, ok := bitSet.set.NextSet(0)
	return index, ok
}

// BitCount returns the total number of set bits in the bitset
func (bitSet *BitSetMem) BitCount() (uint, error) {
	return bitSet.set.Count(), nil
}

// Export returns the json marshalling of the bitset
func (bitSet *BitSetMem) Export() (uint, []byte, error) {
	data, err := bitSet.set.MarshalJSON()
	if err != nil {
		return 0, nil, err
	}
	return bitSet.size, data, nil
}

// Import imports the marshalled json in the byte array _data_ into the bitset
func (bitSet *BitSetMem) Import(data []byte) (bool, error) {
	err := bitSet.set.UnmarshalJSON(data)
	if err != nil {
		return false, err
	}
	bitSet.size = bitSet.set.Len()
	return true, nil
}

// Equals checks if two BitSetMem are equal or not
func (bitSet *BitSetMem) Equals(otherBitSet IBitSet) (bool, error) {
	secondBitSet, ok := otherBitSet.(*BitSetMem)
	if !ok {
		return false, fmt.Errorf("bloom: invalid bitset type, should be BitSetMem")
	}
	return bitSet.set.Equal(secondBitSet.set), nil
}

// WriteTo writes the bitset to a stream and returns the number of bytes written onto the stream
func (bitSet *BitSetMem) WriteTo(stream io.Writer) (int64, error) {
	err := binary.Write(stream, binary.BigEndian, uint64(bitSet.size))
	if err != nil {
		return 0, err
	}
	numBytes, err := bitSet.set.WriteTo(stream)
	if err != nil {
		return 0, err
	}
	return numBytes + int64(binary.Size(uint64(0))), nil
}

// ReadFrom reads the stream and imports it into the bitset and returns the number of bytes read
func (bitSet *BitSetMem) ReadFrom(stream io.Reader) (int64, error) {
	var size uint64
	err := binary.Read(stream, binary.BigEndian, &size)
	if err != nil {
		return 0, err
	}
	set := &bitset.BitSet{}
	numBytes, err := set.ReadFrom(stream)
	if err != nil {
		return 0, err
	}
	bitSet.size = uint(size)
	bitSet.set = set
	return numBytes + int64(binary.Size(uint64(0))), nil
}
