package wire

import "fmt"

// DateTime is the decoded form of Oracle's DATE/TIMESTAMP wire
// representations (§6, §8). Year holds the full year as one Go int;
// EncodeDate splits it into the century and year-of-century bytes
// (each biased by 100) and DecodeDate joins them back.
type DateTime struct {
	Year, Month, Day       int
	Hour, Minute, Second   int
	Nanosecond             int // TIMESTAMP only; zero for plain DATE
	HasTZ                  bool
	TZHour, TZMinute       int // offset form, valid when HasTZ && !TZRegion
	TZRegion               bool
	TZRegionID             uint16
}

const (
	dateLen          = 7
	timestampLen     = 11 // dateLen + 4-byte nanoseconds
	tzOffsetLen      = 2  // appended when a TZ offset is present
	tzRegionFlagBit  = 0x80
)

// EncodeDate serializes the 7-byte DATE wire form: century, year, month,
// day, hour, minute, second. Century and year are biased by +100; hour,
// minute and second by +1; month and day are written unbiased (§6).
func EncodeDate(d DateTime) []byte {
	buf := make([]byte, dateLen)
	century := d.Year/100 + 100
	year := d.Year%100 + 100
	buf[0] = byte(century)
	buf[1] = byte(year)
	buf[2] = byte(d.Month)
	buf[3] = byte(d.Day)
	buf[4] = byte(d.Hour + 1)
	buf[5] = byte(d.Minute + 1)
	buf[6] = byte(d.Second + 1)
	return buf
}

// DecodeDate parses a 7-byte DATE wire value.
func DecodeDate(buf []byte) (DateTime, error) {
	if len(buf) < dateLen {
		return DateTime{}, fmt.Errorf("wire: short DATE buffer: %d bytes", len(buf))
	}
	century := int(buf[0]) - 100
	year := int(buf[1]) - 100
	return DateTime{
		Year:   century*100 + year,
		Month:  int(buf[2]),
		Day:    int(buf[3]),
		Hour:   int(buf[4]) - 1,
		Minute: int(buf[5]) - 1,
		Second: int(buf[6]) - 1,
	}, nil
}

// EncodeTimestamp serializes the 11-byte TIMESTAMP wire form: the
// 7-byte DATE fields followed by a 4-byte big-endian nanosecond count.
func EncodeTimestamp(d DateTime) []byte {
	buf := make([]byte, timestampLen)
	copy(buf, EncodeDate(d))
	n := uint32(d.Nanosecond)
	buf[7] = byte(n >> 24)
	buf[8] = byte(n >> 16)
	buf[9] = byte(n >> 8)
	buf[10] = byte(n)
	return buf
}

// DecodeTimestamp parses an 11-byte TIMESTAMP wire value.
func DecodeTimestamp(buf []byte) (DateTime, error) {
	if len(buf) < timestampLen {
		return DateTime{}, fmt.Errorf("wire: short TIMESTAMP buffer: %d bytes", len(buf))
	}
	d, err := DecodeDate(buf[:dateLen])
	if err != nil {
		return DateTime{}, err
	}
	d.Nanosecond = int(buf[7])<<24 | int(buf[8])<<16 | int(buf[9])<<8 | int(buf[10])
	return d, nil
}

// EncodeTimestampTZ serializes the TIMESTAMP WITH TIME ZONE wire form:
// the 11-byte TIMESTAMP followed by either a 2-byte {hour+20, minute+60}
// offset pair, or, when TZRegion is set, a region id flagged by setting
// the high bit of the first TZ byte (§6, §8).
func EncodeTimestampTZ(d DateTime) []byte {
	buf := EncodeTimestamp(d)
	tz := make([]byte, tzOffsetLen)
	if d.TZRegion {
		tz[0] = byte(d.TZRegionID>>8) | tzRegionFlagBit
		tz[1] = byte(d.TZRegionID)
	} else {
		tz[0] = byte(d.TZHour + 20)
		tz[1] = byte(d.TZMinute + 60)
	}
	return append(buf, tz...)
}

// DecodeTimestampTZ parses a TIMESTAMP WITH TIME ZONE wire value.
func DecodeTimestampTZ(buf []byte) (DateTime, error) {
	if len(buf) < timestampLen+tzOffsetLen {
		return DateTime{}, fmt.Errorf("wire: short TIMESTAMP WITH TZ buffer: %d bytes", len(buf))
	}
	d, err := DecodeTimestamp(buf[:timestampLen])
	if err != nil {
		return DateTime{}, err
	}
	d.HasTZ = true
	tz0, tz1 := buf[timestampLen], buf[timestampLen+1]
	if tz0&tzRegionFlagBit != 0 {
		d.TZRegion = true
		d.TZRegionID = uint16(tz0&^tzRegionFlagBit)<<8 | uint16(tz1)
	} else {
		d.TZHour = int(tz0) - 20
		d.TZMinute = int(tz1) - 60
	}
	return d, nil
}
