package bloom

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/jrcoutinho/bloom/internal/util"
	"github.com/redis/go-redis/v9"
)

// BitSetRedis is the redis-backed implementation of IBitSet.
// _size_ is the number of bits in the bitset
// _key_ is the redis key of the bitset
// Bitsets or bitmaps are implemented in redis on top of strings and
// all bit operations act on the string stored at _key_.
// For more details, please refer https://redis.io/docs/data-types/bitmaps/
type BitSetRedis struct {
	size uint
	key  string
}

// NewBitSetRedis creates a new BitSetRedis of size _size_ under a
// randomly generated key
func NewBitSetRedis(size uint) *BitSetRedis {
	bytes := make([]byte, (size+7)/8)
	key := util.GenerateRandomString(16)
	_ = getRedisClient().Set(context.Background(), key, string(bytes), 0).Err()
	return &BitSetRedis{size, key}
}

// FromDataRedis creates an instance of BitSetRedis from the
// uint64 words passed in _data_
func FromDataRedis(data []uint64) (*BitSetRedis, error) {
	bitSetRedis := NewBitSetRedis(uint(len(data) * wordSize))
	bytes, err := uint64ArrayToByteArray(data)
	if err != nil {
		return nil, err
	}
	err = getRedisClient().Set(context.Background(), bitSetRedis.key, string(bytes), 0).Err()
	if err != nil {
		return nil, err
	}
	return bitSetRedis, nil
}

// FromRedisKey creates an instance of BitSetRedis attached to the
// bitset already saved in redis at key _key_
func FromRedisKey(key string) (*BitSetRedis, error) {
	setVal, err := getRedisClient().Get(context.Background(), key).Result()
	if err != nil {
		return nil, err
	}
	return &BitSetRedis{uint(len(setVal) * 8), key}, nil
}

// Size returns the size of the bitset saved in redis
func (bitSet *BitSetRedis) Size() uint {
	return bitSet.size
}

// Key gives the key at which the bitset is saved in redis
func (bitSet *BitSetRedis) Key() string {
	return bitSet.key
}

// Has checks if the bit at index _index_ is set
func (bitSet *BitSetRedis) Has(index uint) (bool, error) {
	val, err := getRedisClient().GetBit(context.Background(), bitSet.key, int64(index)).Result()
	if err != nil {
		return false, err
	}
	return val != 0, nil
}

// HasMulti checks the bits at the indices specified by the
// _indexes_ array using a single pipelined round trip
func (bitSet *BitSetRedis) HasMulti(indexes []uint) ([]bool, error) {
	if len(indexes) == 0 {
		return nil, fmt.Errorf("bloom: at least 1 index is required")
	}
	pipe := getRedisClient().Pipeline()
	ctx := context.Background()
	values := make([]*redis.IntCmd, len(indexes))
	for i := range indexes {
		values[i] = pipe.GetBit(ctx, bitSet.key, int64(indexes[i]))
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]bool, len(values))
	for i := range values {
		result[i] = values[i].Val() != 0
	}
	return result, nil
}

// Insert sets the bit at index specified by _index_
func (bitSet *BitSetRedis) Insert(index uint) (bool, error) {
	err := getRedisClient().SetBit(context.Background(), bitSet.key, int64(index), 1).Err()
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertMulti sets the bits at the indices specified by the
// _indexes_ array using a single pipelined round trip
func (bitSet *BitSetRedis) InsertMulti(indexes []uint) (bool, error) {
	if len(indexes) == 0 {
		return false, fmt.Errorf("bloom: at least 1 index is required")
	}
	pipe := getRedisClient().Pipeline()
	ctx := context.Background()
	for i := range indexes {
		pipe.SetBit(ctx, bitSet.key, int64(indexes[i]), 1)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Equals checks if two BitSetRedis are equal or not
func (bitSet *BitSetRedis) Equals(otherBitSet IBitSet) (bool, error) {
	bSet, ok := otherBitSet.(*BitSetRedis)
	if !ok {
		return false, fmt.Errorf("bloom: invalid bitset type, should be BitSetRedis")
	}
	aSetVal, err := getRedisClient().Get(context.Background(), bitSet.key).Result()
	if err != nil {
		return false, err
	}
	bSetVal, err := getRedisClient().Get(context.Background(), bSet.key).Result()
	if err != nil {
		return false, err
	}
	return aSetVal == bSetVal, nil
}

// Any returns the first set bit in the bitset starting from index 0
func (bitSet *BitSetRedis) Any() (uint, bool) {
	index, err := getRedisClient().BitPos(context.Background(), bitSet.key, 1).Result()
	if err != nil || index == -1 {
		return 0, false
	}
	return uint(index), true
}

// BitCount returns the total number of set bits in the bitset saved in redis
func (bitSet *BitSetRedis) BitCount() (uint, error) {
	bitRange := &redis.BitCount{Start: 0, End: -1}
	val, err := getRedisClient().BitCount(context.Background(), bitSet.key, bitRange).Result()
	if err != nil {
		return 0, err
	}
	return uint(val), nil
}

// Export returns the json marshalling of the bitset saved in redis
func (bitSet *BitSetRedis) Export() (uint, []byte, error) {
	val, err := getRedisClient().Get(context.Background(), bitSet.key).Result()
	if err != nil {
		return 0, nil, err
	}
	bytes := []byte(val)
	for i := range bytes {
		bytes[i] = util.ConvertByteToLittleEndianByte(bytes[i])
	}
	util.ReverseBytes(bytes)
	buf := make([]byte, wordBytes)
	binary.BigEndian.PutUint64(buf, uint64(bitSet.size))
	bytes = append(buf, bytes...)
	data, err := json.Marshal(base64.URLEncoding.EncodeToString(bytes))
	if err != nil {
		return 0, nil, err
	}
	return bitSet.size, data, nil
}

// Import imports the marshalled json in the byte array _data_ into the redis bitset
func (bitSet *BitSetRedis) Import(data []byte) (bool, error) {
	var s string
	err := json.Unmarshal(data, &s)
	if err != nil {
		return false, err
	}
	bytes, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return false, err
	}
	lenBytes := bytes[:wordBytes]
	bytes = bytes[wordBytes:]
	bitSet.size = uint(binary.BigEndian.Uint64(lenBytes))
	util.ReverseBytes(bytes)
	for i := range bytes {
		bytes[i] = util.ConvertByteToLittleEndianByte(bytes[i])
	}
	err = getRedisClient().Set(context.Background(), bitSet.key, string(bytes), 0).Err()
	if err != nil {
		return false, err
	}
	return true, nil
}

// WriteTo isn't implemented for BitSetRedis as the data is already
// in redis. Use Key and FromRedisKey to share the bitset.
func (bitSet *BitSetRedis) WriteTo(stream io.Writer) (int64, error) {
	return 0, fmt.Errorf("bloom: stream write isn't supported by redis bitset")
}

// ReadFrom isn't implemented for BitSetRedis as the data is already
// in redis. Use Key and FromRedisKey to share the bitset.
func (bitSet *BitSetRedis) ReadFrom(stream io.Reader) (int64, error) {
	return 0, fmt.Errorf("bloom: stream read isn't supported by redis bitset")
}

func uint64ArrayToByteArray(data []uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, value := range data {
		valueBytes := make([]byte, wordBytes)
		binary.LittleEndian.PutUint64(valueBytes, value)
		for _, val := range valueBytes {
			if err := binary.Write(buf, binary.LittleEndian, util.ConvertByteToLittleEndianByte(val)); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}
