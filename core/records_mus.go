package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// IDMUS serializes IDs as unsigned varints.
var IDMUS = idMUS{}

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// timeMUS stores timestamps as Unix microseconds. The zero time round-trips.
var timeMUS = timeMicroMUS{}

type timeMicroMUS struct{}

func (s timeMicroMUS) toMicro(v time.Time) int64 {
	if v.IsZero() {
		return 0
	}
	return v.UnixMicro()
}

func (s timeMicroMUS) Marshal(v time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(s.toMicro(v), bs)
}

func (s timeMicroMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	micro, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micro == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micro).UTC(), n, nil
}

func (s timeMicroMUS) Size(v time.Time) (size int) {
	return varint.Int64.Size(s.toMicro(v))
}

func (s timeMicroMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int64.Skip(bs)
}

// termsMUS stores a term list as a length followed by strings.
var termsMUS = stringSliceMUS{}

type stringSliceMUS struct{}

func (s stringSliceMUS) Marshal(v []string, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(v), bs)
	for _, str := range v {
		n += ord.String.Marshal(str, bs[n:])
	}
	return n
}

func (s stringSliceMUS) Unmarshal(bs []byte) (v []string, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	// Every string takes at least one byte for its length.
	if length < 0 || length > len(bs)-n {
		return nil, n, mus.ErrTooSmallByteSlice
	}
	v = make([]string, 0, length)
	var n1 int
	var str string
	for i := 0; i < length; i++ {
		str, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v = append(v, str)
	}
	return v, n, nil
}

func (s stringSliceMUS) Size(v []string) (size int) {
	size = varint.PositiveInt.Size(len(v))
	for _, str := range v {
		size += ord.String.Size(str)
	}
	return size
}

func (s stringSliceMUS) Skip(bs []byte) (n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return n, err
	}
	var n1 int
	for i := 0; i < length; i++ {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// IndexRecordMUS serializes IndexRecords field by field in declaration order.
var IndexRecordMUS = indexRecordMUS{}

type indexRecordMUS struct{}

func (s indexRecordMUS) Marshal(v IndexRecord, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Owner, bs[n:])
	n += ord.String.Marshal(v.UltimateOwner, bs[n:])
	n += ord.String.Marshal(string(v.Type), bs[n:])
	n += ord.String.Marshal(string(v.Field), bs[n:])
	n += termsMUS.Marshal(v.Terms, bs[n:])
	n += timeMUS.Marshal(v.InsertedAt, bs[n:])
	return n + timeMUS.Marshal(v.UpdatedAt, bs[n:])
}

func (s indexRecordMUS) Unmarshal(bs []byte) (v IndexRecord, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Owner, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UltimateOwner, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var str string
	str, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Type = EntityType(str)
	str, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Field = Field(str)
	v.Terms, n1, err = termsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s indexRecordMUS) Size(v IndexRecord) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Owner)
	size += ord.String.Size(v.UltimateOwner)
	size += ord.String.Size(string(v.Type))
	size += ord.String.Size(string(v.Field))
	size += termsMUS.Size(v.Terms)
	size += timeMUS.Size(v.InsertedAt)
	return size + timeMUS.Size(v.UpdatedAt)
}

func (s indexRecordMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	for i := 0; i < 4; i++ {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = termsMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = timeMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = timeMUS.Skip(bs[n:])
	n += n1
	return
}
