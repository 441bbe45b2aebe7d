package util

import (
	"math"
	"math/bits"
	"math/rand"
	"time"
	"unsafe"
)

var src = rand.NewSource(time.Now().UnixNano())

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const (
	letterIdxBits = 6                    // 6 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

// CalculateFilterSize returns the optimal bitset size m for holding
// _numItems_ entries at the target false positive rate _errorRate_.
// m = ceil(-(n * ln(p)) / ln(2)^2)
func CalculateFilterSize(numItems uint, errorRate float64) uint {
	return uint(math.Ceil(-(float64(numItems) * math.Log(errorRate)) / (math.Ln2 * math.Ln2)))
}

// CalculateNumHashes returns the optimal number of hash functions k
// for a bitset of _size_ bits holding _numItems_ entries, never less
// than 1.
// k = round((m / n) * ln(2))
func CalculateNumHashes(size, numItems uint) uint {
	return Max(uint(math.Round(float64(size)/float64(numItems)*math.Ln2)), 1)
}

func Max(a, b uint) uint {
	if a > b {
		return a
	}
	return b
}

// GenerateRandomString returns an alpha-numeric string of length n,
// used for naming redis keys.
func GenerateRandomString(n int) string {
	b := make([]byte, n)
	// A src.Int63() generates 63 random bits, enough for letterIdxMax characters!
	for i, cache, remain := n-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return *(*string)(unsafe.Pointer(&b))
}

// ConvertByteToLittleEndianByte reverses the bit order of b. Redis
// bitmaps address bit 0 as the most significant bit of the first byte
// while bits-and-blooms packs words little-endian.
func ConvertByteToLittleEndianByte(b byte) byte {
	return bits.Reverse8(b)
}

// ReverseBytes reverses b in place.
func ReverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
