package bloom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strconv"
	"testing"
)

func TestFilterSizeMismatchError(t *testing.T) {
	bitset := NewBitSetMem(1000)
	_, err := NewBloomFilterWithBitSet(100, 4, bitset, "")
	if err == nil {
		t.Error("should error out as size doesn't match")
	}
}

func TestFilterZeroSizes(t *testing.T) {
	bitset := NewBitSetMem(0)
	_, err := NewBloomFilterWithBitSet(0, 0, bitset, "")
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("should error out with ErrInvalidParameters, got %v", err)
	}
}

func TestFilterInvalidParameters(t *testing.T) {
	cases := []struct {
		numItems  uint
		errorRate float64
	}{
		{0, 0.01},
		{1000, 0},
		{1000, 1},
		{1000, -0.5},
		{1000, 1.5},
	}
	for _, c := range cases {
		filter, err := NewMemBloomFilterWithParameters(c.numItems, c.errorRate)
		if !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("numItems %v errorRate %v should error out with ErrInvalidParameters, got %v", c.numItems, c.errorRate, err)
		}
		if filter != nil {
			t.Errorf("no filter should be returned for numItems %v errorRate %v", c.numItems, c.errorRate)
		}
	}
}

func TestFilterParameterDerivation(t *testing.T) {
	filter, err := NewMemBloomFilterWithParameters(1000, 0.01)
	if err != nil {
		t.Fatalf("error should be nil, got %v", err)
	}
	if filter.GetCap() != 9586 {
		t.Errorf("size should be 9586, got %v", filter.GetCap())
	}
	if filter.GetNumHashes() != 7 {
		t.Errorf("numHashes should be 7, got %v", filter.GetNumHashes())
	}
	filter, _ = NewMemBloomFilterWithParameters(100, 0.01)
	if filter.GetCap() != 959 {
		t.Errorf("size should be 959, got %v", filter.GetCap())
	}
	if filter.GetNumHashes() != 7 {
		t.Errorf("numHashes should be 7, got %v", filter.GetNumHashes())
	}
}

func testFilterWithBitset(filter *BloomFilter, t *testing.T) {
	b1 := []byte("John")
	b2 := []byte("Jane")
	b3 := []byte("Alice")
	b4 := []byte("Bob")
	filter.Insert(b1)
	ok1 := filter.Lookup(b2)
	ok2 := filter.Lookup(b1)
	filter.Insert(b3)
	ok3 := filter.Lookup(b4)
	ok4 := filter.Lookup(b3)
	if ok1 {
		t.Errorf("%v should not be in filter", b2)
	}
	if !ok2 {
		t.Errorf("%v should be in filter", b1)
	}
	if ok3 {
		t.Errorf("%v should not be in filter", b4)
	}
	if !ok4 {
		t.Errorf("%v should be in filter", b3)
	}
}

func TestFilterWithBitSetMem(t *testing.T) {
	bitset := NewBitSetMem(1000)
	filter, _ := NewBloomFilterWithBitSet(1000, 4, bitset, "")
	testFilterWithBitset(filter, t)
}

func TestEmptyFilter(t *testing.T) {
	filter, _ := NewMemBloomFilterWithParameters(100, 0.01)
	for i := 0; i < 100; i++ {
		if filter.LookupString("element-" + strconv.Itoa(i)) {
			t.Errorf("element-%v should not be in an empty filter", i)
		}
	}
	if count, _ := filter.BitCount(); count != 0 {
		t.Errorf("empty filter should have 0 set bits, got %v", count)
	}
}

func TestNoFalseNegatives(t *testing.T) {
	filter, _ := NewMemBloomFilterWithParameters(1000, 0.01)
	for i := 0; i < 1000; i++ {
		filter.InsertString("element-" + strconv.Itoa(i))
	}
	for i := 0; i < 1000; i++ {
		if !filter.LookupString("element-" + strconv.Itoa(i)) {
			t.Fatalf("element-%v should be in filter", i)
		}
	}
}

func TestLookupDeterminism(t *testing.T) {
	filter, _ := NewMemBloomFilterWithParameters(100, 0.01)
	filter.InsertString("present")
	for i := 0; i < 5; i++ {
		if !filter.LookupString("present") {
			t.Fatal("present should be in filter on every lookup")
		}
		if filter.LookupString("absent") {
			t.Fatal("absent shouldn't be in filter on any lookup")
		}
	}
}

func TestLookupMonotonicity(t *testing.T) {
	filter, _ := NewMemBloomFilterWithParameters(1000, 0.01)
	probes := make([]string, 200)
	for i := range probes {
		probes[i] = "probe-" + strconv.Itoa(i)
	}
	for i := 0; i < 100; i++ {
		filter.InsertString("element-" + strconv.Itoa(i))
	}
	before := make([]bool, len(probes))
	for i := range probes {
		before[i] = filter.LookupString(probes[i])
	}
	for i := 100; i < 1000; i++ {
		filter.InsertString("element-" + strconv.Itoa(i))
	}
	for i := range probes {
		if before[i] && !filter.LookupString(probes[i]) {
			t.Fatalf("%v flipped from member to non-member", probes[i])
		}
	}
}

func TestFalsePositiveRateCalibration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping calibration test in short mode")
	}
	numItems, errorRate := uint(10000), 0.01
	filter, _ := NewMemBloomFilterWithParameters(numItems, errorRate)
	for i := uint(0); i < numItems; i++ {
		filter.InsertString("in-" + strconv.Itoa(int(i)))
	}
	queries := 10 * int(numItems)
	falsePositives := 0
	for i := 0; i < queries; i++ {
		if filter.LookupString("out-" + strconv.Itoa(i)) {
			falsePositives++
		}
	}
	observed := float64(falsePositives) / float64(queries)
	if observed > 2*errorRate {
		t.Errorf("observed false positive rate %v too far above target %v", observed, errorRate)
	}
}

func TestIndexDerivationWithStubHash(t *testing.T) {
	stub := func(data []byte, seed uint32) (uint64, uint64) {
		return 7, 3
	}
	filter, err := NewBloomFilterWithBitSetAndHash(100, 4, NewBitSetMem(100), "", stub, 0)
	if err != nil {
		t.Fatalf("error should be nil, got %v", err)
	}
	filter.InsertString("anything")
	for _, index := range []uint{7, 10, 13, 16} {
		if ok, _ := filter.GetBitSet().Has(index); !ok {
			t.Errorf("bit %v should be set", index)
		}
	}
	if count, _ := filter.BitCount(); count != 4 {
		t.Errorf("exactly 4 bits should be set, got %v", count)
	}
	// the stub maps every element to the same positions
	if !filter.LookupString("anything else") {
		t.Error("stub hash should make every element a member")
	}
}

func TestIndexDerivationWrapsAround(t *testing.T) {
	stub := func(data []byte, seed uint32) (uint64, uint64) {
		return 95, 7
	}
	filter, _ := NewBloomFilterWithBitSetAndHash(100, 3, NewBitSetMem(100), "", stub, 0)
	filter.InsertString("anything")
	for _, index := range []uint{95, 2, 9} {
		if ok, _ := filter.GetBitSet().Has(index); !ok {
			t.Errorf("bit %v should be set", index)
		}
	}
}

func TestSeedDeterminism(t *testing.T) {
	aFilter, _ := NewMemBloomFilterWithHash(1000, 0.01, Murmur3Hash128, 42)
	bFilter, _ := NewMemBloomFilterWithHash(1000, 0.01, Murmur3Hash128, 42)
	cFilter, _ := NewMemBloomFilterWithHash(1000, 0.01, Murmur3Hash128, 43)
	for i := 0; i < 10; i++ {
		element := "element-" + strconv.Itoa(i)
		aFilter.InsertString(element)
		bFilter.InsertString(element)
		cFilter.InsertString(element)
	}
	if ok, _ := aFilter.Equals(bFilter); !ok {
		t.Error("filters with the same seed should produce the same bitset")
	}
	if ok, _ := aFilter.Equals(cFilter); ok {
		t.Error("filters with different seeds shouldn't produce the same bitset")
	}
}

func testPositiveRate(numItems uint, errorRate float64, t *testing.T) {
	filter, _ := NewMemBloomFilterWithParameters(numItems, errorRate)
	e := make([]byte, 4)
	for i := uint32(0); i < uint32(numItems); i++ {
		binary.BigEndian.PutUint32(e, i)
		filter.Insert(e)
	}
	estimatedErrorRate := filter.BloomPositiveRate()
	if estimatedErrorRate > 1.1*errorRate {
		t.Errorf("estimated error rate %v too high for numItems %v and expected error rate %v", estimatedErrorRate, numItems, errorRate)
	}
}

func TestPositiveRate1000_0001(t *testing.T) {
	testPositiveRate(1000, 0.001, t)
}

func TestPositiveRate10000_001(t *testing.T) {
	testPositiveRate(10000, 0.01, t)
}

func TestPositiveRate1000_01(t *testing.T) {
	testPositiveRate(1000, 0.1, t)
}

func TestInt32(t *testing.T) {
	bitset := NewBitSetMem(1000)
	filter, _ := NewBloomFilterWithBitSet(1000, 4, bitset, "")
	e1 := make([]byte, 4)
	e2 := make([]byte, 4)
	e3 := make([]byte, 4)
	binary.BigEndian.PutUint32(e1, 100)
	binary.BigEndian.PutUint32(e2, 101)
	binary.BigEndian.PutUint32(e3, 102)
	filter.Insert(e1)
	ok1 := filter.Lookup(e1)
	ok2 := filter.Lookup(e2)
	filter.Insert(e3)
	ok3 := filter.Lookup(e3)
	if !ok1 {
		t.Errorf("%v should be in filter", e1)
	}
	if ok2 {
		t.Errorf("%v should not be in filter", e2)
	}
	if !ok3 {
		t.Errorf("%v should be in filter", e3)
	}
}

func TestStringInMemFilter(t *testing.T) {
	bitset := NewBitSetMem(1000)
	filter, _ := NewBloomFilterWithBitSet(1000, 4, bitset, "")
	e1 := "This"
	e2 := "is"
	e3 := "present"
	e4 := "in"
	filter.InsertString(e1)
	ok1 := filter.LookupString(e1)
	ok2 := filter.LookupString(e2)
	filter.InsertString(e3)
	ok3 := filter.LookupString(e3)
	ok4 := filter.LookupString(e4)
	if !ok1 {
		t.Errorf("%v should be in filter", e1)
	}
	if ok2 {
		t.Errorf("%v should not be in filter", e2)
	}
	if !ok3 {
		t.Errorf("%v should be in filter", e3)
	}
	if ok4 {
		t.Errorf("%v should not be in filter", e4)
	}
}

func TestNotEqualsSize(t *testing.T) {
	aFilter, _ := NewBloomFilterWithBitSet(1000, 4, NewBitSetMem(1000), "")
	bFilter, _ := NewBloomFilterWithBitSet(100, 4, NewBitSetMem(100), "")
	if ok, _ := aFilter.Equals(bFilter); ok {
		t.Errorf("aFilter and bFilter shouldn't be equal")
	}
}

func TestNotEqualsNumHashes(t *testing.T) {
	aFilter, _ := NewBloomFilterWithBitSet(1000, 4, NewBitSetMem(1000), "")
	bFilter, _ := NewBloomFilterWithBitSet(1000, 6, NewBitSetMem(1000), "")
	if ok, _ := aFilter.Equals(bFilter); ok {
		t.Errorf("aFilter and bFilter shouldn't be equal")
	}
}

func TestEquals(t *testing.T) {
	aFilter, _ := NewBloomFilterWithBitSet(1000, 4, NewBitSetMem(1000), "")
	bFilter, _ := NewBloomFilterWithBitSet(1000, 4, NewBitSetMem(1000), "")
	for i := 0; i < 100; i++ {
		element := "element-" + strconv.Itoa(i)
		aFilter.InsertString(element)
		bFilter.InsertString(element)
	}
	if ok, _ := aFilter.Equals(bFilter); !ok {
		t.Errorf("aFilter and bFilter should be equal")
	}
}

func TestMemFilterImportInvalidJSON(t *testing.T) {
	data := []byte("{invalid}")
	filter, _ := NewBloomFilterWithBitSet(1000, 4, NewBitSetMem(1000), "")
	err := filter.Import(data)
	if err == nil {
		t.Error("import should fail on invalid json")
	}
}

func TestMemFilterExportImport(t *testing.T) {
	aFilter, _ := NewBloomFilterWithBitSet(1000, 4, NewBitSetMem(1000), "")
	for i := 0; i < 100; i++ {
		aFilter.InsertString("element-" + strconv.Itoa(i))
	}
	data, err := aFilter.Export()
	if err != nil {
		t.Fatalf("error should be nil during export, got %v", err)
	}
	bFilter, _ := NewBloomFilterWithBitSet(1000, 4, NewBitSetMem(1000), "")
	err = bFilter.Import(data)
	if err != nil {
		t.Fatalf("error should be nil during import, got %v", err)
	}
	if ok, _ := aFilter.Equals(bFilter); !ok {
		t.Error("aFilter and bFilter should be equal after import")
	}
	for i := 0; i < 100; i++ {
		if !bFilter.LookupString("element-" + strconv.Itoa(i)) {
			t.Fatalf("element-%v should be in imported filter", i)
		}
	}
}

func TestMemFilterBinaryReadWrite(t *testing.T) {
	aFilter, _ := NewBloomFilterWithBitSet(1000, 4, NewBitSetMem(1000), "")
	for i := 0; i < 100; i++ {
		aFilter.InsertString("element-" + strconv.Itoa(i))
	}
	var buff bytes.Buffer
	_, err := aFilter.WriteTo(&buff)
	if err != nil {
		t.Fatalf("error should be nil during binary write, got %v", err)
	}
	bFilter := &BloomFilter{}
	_, err = bFilter.ReadFrom(&buff)
	if err != nil {
		t.Fatalf("error should be nil during binary read, got %v", err)
	}
	if bFilter.GetCap() != aFilter.GetCap() {
		t.Errorf("size should be %v, got %v", aFilter.GetCap(), bFilter.GetCap())
	}
	if bFilter.GetNumHashes() != aFilter.GetNumHashes() {
		t.Errorf("numHashes should be %v, got %v", aFilter.GetNumHashes(), bFilter.GetNumHashes())
	}
	if ok, _ := aFilter.Equals(bFilter); !ok {
		t.Error("aFilter and bFilter should be equal after read")
	}
	for i := 0; i < 100; i++ {
		if !bFilter.LookupString("element-" + strconv.Itoa(i)) {
			t.Fatalf("element-%v should be in deserialized filter", i)
		}
	}
}
