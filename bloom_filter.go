package bloom

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/jrcoutinho/bloom/internal/util"
)

// ErrInvalidParameters is returned, wrapped, by every constructor
// that is handed an unusable configuration: a non-positive expected
// item count, a target error rate outside (0, 1), or a non-positive
// bitset size or hash count. Check for it with errors.Is.
var ErrInvalidParameters = errors.New("bloom: invalid filter parameters")

// The BloomFilter data structure. It mainly has two fields: _size_ and _numHashes_
// _size_ denotes the number of bits backing the bloom filter
// _numHashes_ denotes the number of hash functions applied on the entrant element
// during insertion or lookup.
// _filter_ is the bitset backing the bloom filter internally. It can either be a
// BitSetMem (in-memory) or a BitSetRedis (redis-backed).
// _hash_ and _seed_ form the hash configuration: _hash_ produces the two 64 bit
// base values from which all _numHashes_ bit positions are derived.
// _metadataKey_ locates the information about a redis-backed filter in redis.
// _lock_ serializes writes on an in-memory BitSetMem. It's not used for
// BitSetRedis as redis serializes the bit operations itself.
type BloomFilter struct {
	size        uint
	numHashes   uint
	filter      IBitSet
	hash        Hash128
	seed        uint32
	metadataKey string
	lock        sync.RWMutex
}

// NewBloomFilterWithBitSet creates and returns a new BloomFilter over a
// bitset constructed directly from _size_ and _numHashes_
// _size_ is the number of bits backing the bloom filter
// _numHashes_ is the number of hash functions to be applied on the entrant
// _filter_ is either BitSetMem or BitSetRedis
// _metadataKey_ is needed if the filter is of type BitSetRedis otherwise it's overlooked
func NewBloomFilterWithBitSet(size, numHashes uint, filter IBitSet, metadataKey string) (*BloomFilter, error) {
	return NewBloomFilterWithBitSetAndHash(size, numHashes, filter, metadataKey, Murmur3Hash128, DefaultSeed)
}

// NewBloomFilterWithBitSetAndHash is NewBloomFilterWithBitSet with an
// explicit hash provider and seed, letting tests inject a stub and
// hosts pick independent seeds per filter
func NewBloomFilterWithBitSetAndHash(size, numHashes uint, filter IBitSet, metadataKey string, hash Hash128, seed uint32) (*BloomFilter, error) {
	if size == 0 || numHashes == 0 {
		return nil, fmt.Errorf("bloom: size %v and numHashes %v must be positive: %w", size, numHashes, ErrInvalidParameters)
	}
	if hash == nil {
		return nil, fmt.Errorf("bloom: hash function must not be nil: %w", ErrInvalidParameters)
	}
	if !IsBitSetMem(filter) && metadataKey == "" {
		return nil, fmt.Errorf("bloom: error initializing filter as metadataKey is blank for BitSetRedis")
	}
	if filter.Size() != size {
		return nil, fmt.Errorf("bloom: error initializing filter as size of bitset %v doesn't match with size %v passed", filter.Size(), size)
	}
	return &BloomFilter{
		size:        size,
		numHashes:   numHashes,
		filter:      filter,
		hash:        hash,
		seed:        seed,
		metadataKey: metadataKey,
	}, nil
}

// NewMemBloomFilterWithParameters creates and returns a new in-memory BloomFilter
// _numItems_ is the number of distinct items expected to be inserted
// _errorRate_ is the acceptable false positive error rate
// The optimal size and number of hash functions of the bloom filter are
// derived from the two parameters
func NewMemBloomFilterWithParameters(numItems uint, errorRate float64) (*BloomFilter, error) {
	return NewMemBloomFilterWithHash(numItems, errorRate, Murmur3Hash128, DefaultSeed)
}

// NewMemBloomFilterWithHash is NewMemBloomFilterWithParameters with an
// explicit hash provider and seed
func NewMemBloomFilterWithHash(numItems uint, errorRate float64, hash Hash128, seed uint32) (*BloomFilter, error) {
	size, numHashes, err := deriveParameters(numItems, errorRate)
	if err != nil {
		return nil, err
	}
	return NewBloomFilterWithBitSetAndHash(size, numHashes, NewBitSetMem(size), "", hash, seed)
}

// NewMemBloomFilterFromBitSet creates and returns a new in-memory BloomFilter
// from the bitset words passed in the parameter _data_
// _numHashes_ parameter is needed for the number of hash functions
func NewMemBloomFilterFromBitSet(data []uint64, numHashes uint) (*BloomFilter, error) {
	size := uint(len(data) * wordSize)
	return NewBloomFilterWithBitSet(size, numHashes, FromDataMem(data), "")
}

// NewRedisBloomFilterWithParameters creates and returns a new redis-backed BloomFilter
// _numItems_ is the number of distinct items expected to be inserted
// _errorRate_ is the acceptable false positive error rate
// The metadata of the filter is saved in redis under a randomly generated
// key which can be retrieved with GetMetadataKey and passed to
// NewRedisBloomFilterFromKey to reattach the filter later
func NewRedisBloomFilterWithParameters(numItems uint, errorRate float64) (*BloomFilter, error) {
	size, numHashes, err := deriveParameters(numItems, errorRate)
	if err != nil {
		return nil, err
	}
	filter := NewBitSetRedis(size)
	metadataKey := util.GenerateRandomString(16)
	metadata := map[string]interface{}{
		"size":      size,
		"numHashes": numHashes,
		"seed":      DefaultSeed,
		"bitsetKey": filter.Key(),
	}
	err = getRedisClient().HSet(context.Background(), metadataKey, metadata).Err()
	if err != nil {
		return nil, fmt.Errorf("bloom: error while saving metadata to redis, error: %v", err)
	}
	return NewBloomFilterWithBitSet(size, numHashes, filter, metadataKey)
}

// NewRedisBloomFilterFromBitSet creates and returns a new redis-backed BloomFilter
// from the bitset words passed in the parameter _data_
// _numHashes_ parameter is needed for the number of hash functions
func NewRedisBloomFilterFromBitSet(data []uint64, numHashes uint) (*BloomFilter, error) {
	size := uint(len(data) * wordSize)
	if size == 0 || numHashes == 0 {
		return nil, fmt.Errorf("bloom: size %v and numHashes %v must be positive: %w", size, numHashes, ErrInvalidParameters)
	}
	bitSetRedis, err := FromDataRedis(data)
	if err != nil {
		return nil, err
	}
	metadataKey := util.GenerateRandomString(16)
	metadata := map[string]interface{}{
		"size":      size,
		"numHashes": numHashes,
		"seed":      DefaultSeed,
		"bitsetKey": bitSetRedis.Key(),
	}
	err = getRedisClient().HSet(context.Background(), metadataKey, metadata).Err()
	if err != nil {
		return nil, fmt.Errorf("bloom: error while saving metadata to redis, error: %v", err)
	}
	return NewBloomFilterWithBitSet(size, numHashes, bitSetRedis, metadataKey)
}

// NewRedisBloomFilterFromKey reattaches a redis-backed BloomFilter from the
// _metadataKey_ under which its metadata was saved in redis.
// A filter created with a custom hash provider can't be reattached this
// way; only the seed travels through redis
func NewRedisBloomFilterFromKey(metadataKey string) (*BloomFilter, error) {
	values, err := getRedisClient().HGetAll(context.Background(), metadataKey).Result()
	if err != nil {
		return nil, fmt.Errorf("bloom: error while fetching metadata from redis, error: %v", err)
	}
	size, err := strconv.Atoi(values["size"])
	if err != nil {
		return nil, fmt.Errorf("bloom: malformed metadata at key %v: %v", metadataKey, err)
	}
	numHashes, err := strconv.Atoi(values["numHashes"])
	if err != nil {
		return nil, fmt.Errorf("bloom: malformed metadata at key %v: %v", metadataKey, err)
	}
	seed, err := strconv.ParseUint(values["seed"], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bloom: malformed metadata at key %v: %v", metadataKey, err)
	}
	filter, err := FromRedisKey(values["bitsetKey"])
	if err != nil {
		return nil, err
	}
	// the string in redis is byte-padded, so reconcile the bit size
	filter.size = uint(size)
	return &BloomFilter{
		size:        uint(size),
		numHashes:   uint(numHashes),
		filter:      filter,
		hash:        Murmur3Hash128,
		seed:        uint32(seed),
		metadataKey: metadataKey,
	}, nil
}

func deriveParameters(numItems uint, errorRate float64) (uint, uint, error) {
	if numItems == 0 {
		return 0, 0, fmt.Errorf("bloom: numItems %v must be positive: %w", numItems, ErrInvalidParameters)
	}
	if errorRate <= 0 || errorRate >= 1 {
		return 0, 0, fmt.Errorf("bloom: errorRate %v must be in (0, 1): %w", errorRate, ErrInvalidParameters)
	}
	size := util.CalculateFilterSize(numItems, errorRate)
	numHashes := util.CalculateNumHashes(size, numItems)
	return size, numHashes, nil
}

// Insert writes new _data_ in the bloom filter. Setting an already-set
// bit is a no-op, so re-inserting an element never changes the filter
func (bloomFilter *BloomFilter) Insert(data []byte) *BloomFilter {
	h1, h2 := bloomFilter.hash(data, bloomFilter.seed)
	if IsBitSetMem(bloomFilter.filter) {
		bloomFilter.lock.Lock()
		defer bloomFilter.lock.Unlock()
		for i := uint(0); i < bloomFilter.numHashes; i++ {
			bloomFilter.filter.Insert(bloomFilter.getIndex(h1, h2, i))
		}
	} else {
		indexes := make([]uint, bloomFilter.numHashes)
		for i := uint(0); i < bloomFilter.numHashes; i++ {
			indexes[i] = bloomFilter.getIndex(h1, h2, i)
		}
		bloomFilter.filter.InsertMulti(indexes)
	}
	return bloomFilter
}

// Lookup returns true if every bit position derived from _data_ is set,
// otherwise false. A true result may be a false positive; a false
// result is always correct
func (bloomFilter *BloomFilter) Lookup(data []byte) bool {
	h1, h2 := bloomFilter.hash(data, bloomFilter.seed)
	if IsBitSetMem(bloomFilter.filter) {
		bloomFilter.lock.RLock()
		defer bloomFilter.lock.RUnlock()
		for i := uint(0); i < bloomFilter.numHashes; i++ {
			if ok, _ := bloomFilter.filter.Has(bloomFilter.getIndex(h1, h2, i)); !ok {
				return false
			}
		}
		return true
	}
	indexes := make([]uint, bloomFilter.numHashes)
	for i := uint(0); i < bloomFilter.numHashes; i++ {
		indexes[i] = bloomFilter.getIndex(h1, h2, i)
	}
	result, err := bloomFilter.filter.HasMulti(indexes)
	if err != nil {
		return false
	}
	for i := range result {
		if !result[i] {
			return false
		}
	}
	return true
}

// InsertString accepts string value as _data_ for inserting into the bloom filter
func (bloomFilter *BloomFilter) InsertString(data string) *BloomFilter {
	return bloomFilter.Insert([]byte(data))
}

// LookupString accepts string value as _data_ to lookup the bloom filter
func (bloomFilter *BloomFilter) LookupString(data string) bool {
	return bloomFilter.Lookup([]byte(data))
}

// GetCap returns the number of bits backing the bloom filter
func (bloomFilter *BloomFilter) GetCap() uint {
	return bloomFilter.size
}

// GetNumHashes returns the number of hash functions used in the bloom filter
func (bloomFilter *BloomFilter) GetNumHashes() uint {
	return bloomFilter.numHashes
}

// GetBitSet returns the internal bitset. It would be a BitSetMem in case of an
// in-memory bloom filter while it would be a BitSetRedis for a redis-backed
// bloom filter.
func (bloomFilter *BloomFilter) GetBitSet() IBitSet {
	return bloomFilter.filter
}

// GetMetadataKey returns the redis key under which the metadata of a
// redis-backed bloom filter is saved
func (bloomFilter *BloomFilter) GetMetadataKey() string {
	return bloomFilter.metadataKey
}

// BitCount returns the number of set bits in the bloom filter
func (bloomFilter *BloomFilter) BitCount() (uint, error) {
	return bloomFilter.filter.BitCount()
}

// BloomPositiveRate returns the estimated false positive rate of the
// filter at its current fill, useful for monitoring how close the
// filter is to its target rate
func (bloomFilter *BloomFilter) BloomPositiveRate() float64 {
	length, _ := bloomFilter.filter.BitCount()
	return math.Pow(1-math.Exp(-float64(length)/float64(bloomFilter.size)), float64(bloomFilter.numHashes))
}

// Equals checks if two BloomFilter's are equal
func (bloomFilter *BloomFilter) Equals(otherFilter *BloomFilter) (bool, error) {
	if bloomFilter.size != otherFilter.size || bloomFilter.numHashes != otherFilter.numHashes {
		return false, nil
	}
	ok, err := bloomFilter.filter.Equals(otherFilter.filter)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// internal type used to marshal/unmarshal BloomFilter
type bloomFilterType struct {
	M uint   `json:"m"`
	K uint   `json:"k"`
	B []byte `json:"b"`
}

// Export JSON marshals the BloomFilter and returns a byte slice containing the data
func (bloomFilter *BloomFilter) Export() ([]byte, error) {
	_, bitset, err := bloomFilter.filter.Export()
	if err != nil {
		return nil, err
	}
	return json.Marshal(bloomFilterType{bloomFilter.size, bloomFilter.numHashes, bitset})
}

// Import JSON unmarshals the _data_ into the BloomFilter
func (bloomFilter *BloomFilter) Import(data []byte) error {
	var f bloomFilterType
	err := json.Unmarshal(data, &f)
	if err != nil {
		return err
	}
	bloomFilter.size = f.M
	bloomFilter.numHashes = f.K
	bloomFilter.ensureHash()
	_, err = bloomFilter.filter.Import(f.B)
	return err
}

// WriteTo writes the BloomFilter onto the specified _stream_ and returns the
// number of bytes written.
// It can be used to write to disk (using a file stream) or to network.
// It's not implemented for a redis-backed bloom filter (BitSetRedis) as its
// data already lives in redis; use GetMetadataKey and
// NewRedisBloomFilterFromKey instead
func (bloomFilter *BloomFilter) WriteTo(stream io.Writer) (int64, error) {
	if !IsBitSetMem(bloomFilter.filter) {
		return 0, fmt.Errorf("bloom: stream write isn't supported by redis bitset")
	}
	err := binary.Write(stream, binary.BigEndian, uint64(bloomFilter.size))
	if err != nil {
		return 0, err
	}
	err = binary.Write(stream, binary.BigEndian, uint64(bloomFilter.numHashes))
	if err != nil {
		return 0, err
	}
	numBytes, err := bloomFilter.filter.WriteTo(stream)
	return numBytes + int64(2*binary.Size(uint64(0))), err
}

// ReadFrom reads the BloomFilter from the specified _stream_ and returns the
// number of bytes read.
// It can be used to read from disk (using a file stream) or from network.
// It's not implemented for a redis-backed bloom filter (BitSetRedis); use
// NewRedisBloomFilterFromKey instead
func (bloomFilter *BloomFilter) ReadFrom(stream io.Reader) (int64, error) {
	var size, numHashes uint64
	err := binary.Read(stream, binary.BigEndian, &size)
	if err != nil {
		return 0, err
	}
	err = binary.Read(stream, binary.BigEndian, &numHashes)
	if err != nil {
		return 0, err
	}
	bitSet := &BitSetMem{}
	numBytes, err := bitSet.ReadFrom(stream)
	if err != nil {
		return 0, err
	}
	bloomFilter.size = uint(size)
	bloomFilter.numHashes = uint(numHashes)
	bloomFilter.filter = bitSet
	bloomFilter.ensureHash()
	return numBytes + int64(2*binary.Size(uint64(0))), nil
}

// a filter deserialized into a zero value gets the default hash configuration
func (bloomFilter *BloomFilter) ensureHash() {
	if bloomFilter.hash == nil {
		bloomFilter.hash = Murmur3Hash128
		bloomFilter.seed = DefaultSeed
	}
}

// getIndex derives the i-th bit position for the base hash pair
// (h1, h2) as (h1 + i*h2) mod size, the Kirsch-Mitzenmacher double
// hashing scheme simulating numHashes independent hash functions from
// a single 128 bit evaluation
func (bloomFilter *BloomFilter) getIndex(h1, h2 uint64, i uint) uint {
	return uint((h1 + uint64(i)*h2) % uint64(bloomFilter.size))
}
