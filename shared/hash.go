package shared

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/dgryski/go-metro"
	"github.com/minio/highwayhash"
	"github.com/twmb/murmur3"
)

// HashFn is a function that returns the 64-bit hash of 't'.
// The full 64 bits matter: the map stores the top bits of the hash
// as a per-slot fingerprint, so a hasher must spread entropy over
// the whole word, not only the low bits.
type HashFn[T any] func(t T) uint64

// Algorithm selects the backend for the seeded string hashers.
type Algorithm int

const (
	Murmur3 Algorithm = iota
	Metro
	Highway
)

// HighwaySeedLength is the seed size required by the Highway algorithm.
const HighwaySeedLength = 32

var (
	// ErrUnknownAlgorithm signals a request for a hasher of an unknown algorithm.
	ErrUnknownAlgorithm = errors.New("cannot create a hasher of unknown algorithm")
	// ErrSeedLength signals a seed of unusable size.
	ErrSeedLength = errors.New("wrong seed length")
)

// GetHasher returns a hasher for the golang default types.
func GetHasher[Key any]() HashFn[Key] {
	var key Key
	kind := reflect.ValueOf(&key).Elem().Type().Kind()

	switch kind {
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		switch unsafe.Sizeof(key) {
		case 2:
			return *(*func(Key) uint64)(unsafe.Pointer(&hashWord))
		case 4:
			return *(*func(Key) uint64)(unsafe.Pointer(&hashDword))
		case 8:
			return *(*func(Key) uint64)(unsafe.Pointer(&hashQword))

		default:
			panic("unsupported integer byte size")
		}

	case reflect.Int8, reflect.Uint8:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashByte))
	case reflect.Int16, reflect.Uint16:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashWord))
	case reflect.Int32, reflect.Uint32:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashDword))
	case reflect.Int64, reflect.Uint64:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashQword))
	case reflect.Float32:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashFloat32))
	case reflect.Float64:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashFloat64))
	case reflect.String:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashString))

	default:
		panic(fmt.Sprintf("unsupported key type %T of kind %v", key, kind))
	}
}

// NewStringHasher returns a seeded string hasher backed by the given
// algorithm. Murmur3 and Metro fold the seed bytes into a 64-bit seed;
// Highway requires exactly HighwaySeedLength bytes and returns
// ErrSeedLength otherwise.
func NewStringHasher(algo Algorithm, seed []byte) (HashFn[string], error) {
	switch algo {
	case Murmur3:
		s := foldSeed(seed)
		return func(key string) uint64 {
			return murmur3.SeedStringSum64(s, key)
		}, nil

	case Metro:
		s := foldSeed(seed)
		return func(key string) uint64 {
			return metro.Hash64Str(key, s)
		}, nil

	case Highway:
		if len(seed) != HighwaySeedLength {
			return nil, fmt.Errorf("seed is %d bytes, want %d: %w",
				len(seed), HighwaySeedLength, ErrSeedLength)
		}
		key := make([]byte, HighwaySeedLength)
		copy(key, seed)
		return func(s string) uint64 {
			return highwayhash.Sum64([]byte(s), key)
		}, nil

	default:
		return nil, fmt.Errorf("%d: %w", algo, ErrUnknownAlgorithm)
	}
}

// foldSeed compresses an arbitrary seed into 64 bits with an fnv1a round.
func foldSeed(seed []byte) uint64 {
	const prime64 = uint64(1099511628211)
	h := uint64(14695981039346656037)
	for _, b := range seed {
		h = (h ^ uint64(b)) * prime64
	}
	return h
}

var hashByte = func(in uint8) uint64 {
	return mix32(uint32(in))
}

var hashWord = func(in uint16) uint64 {
	return mix32(uint32(in))
}

var hashDword = func(key uint32) uint64 {
	return mix32(key)
}

var hashFloat32 = func(in float32) uint64 {
	p := unsafe.Pointer(&in)
	return mix32(*(*uint32)(p))
}

var hashFloat64 = func(in float64) uint64 {
	p := unsafe.Pointer(&in)
	return mix64(*(*uint64)(p))
}

// hashQword implements MurmurHash3's 64-bit Finalizer
var hashQword = func(key uint64) uint64 {
	return mix64(key)
}

var hashString = func(s string) uint64 {
	return murmur3.StringSum64(s)
}

// mix32 is the murmur3 32-bit scrambler, widened into the upper half so
// small integer keys still populate the fingerprint bits.
func mix32(key uint32) uint64 {
	key *= 0xcc9e2d51
	key = (key << 15) | (key >> 17)
	key *= 0x1b873593
	return uint64(key) * 0x9e3779b97f4a7c15
}

func mix64(key uint64) uint64 {
	key ^= (key >> 33)
	key *= 0xff51afd7ed558ccd
	key ^= (key >> 33)
	key *= 0xc4ceb9fe1a85ec53
	key ^= (key >> 33)
	return key
}
