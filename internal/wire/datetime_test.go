package wire

import "testing"

func TestDateRoundTrip(t *testing.T) {
	cases := []DateTime{
		{Year: 1, Month: 1, Day: 1, Hour: 0, Minute: 0, Second: 0},
		{Year: 9999, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 59},
		{Year: 2024, Month: 2, Day: 29, Hour: 12, Minute: 30, Second: 15},
		{Year: 1970, Month: 1, Day: 1, Hour: 0, Minute: 0, Second: 0},
	}
	for _, d := range cases {
		enc := EncodeDate(d)
		if len(enc) != dateLen {
			t.Fatalf("EncodeDate: expected %d bytes, got %d", dateLen, len(enc))
		}
		got, err := DecodeDate(enc)
		if err != nil {
			t.Fatalf("DecodeDate: %v", err)
		}
		if got != d {
			t.Fatalf("round trip %+v: got %+v", d, got)
		}
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	d := DateTime{Year: 2024, Month: 6, Day: 15, Hour: 8, Minute: 45, Second: 1, Nanosecond: 123456789}
	enc := EncodeTimestamp(d)
	if len(enc) != timestampLen {
		t.Fatalf("expected %d bytes, got %d", timestampLen, len(enc))
	}
	got, err := DecodeTimestamp(enc)
	if err != nil {
		t.Fatalf("DecodeTimestamp: %v", err)
	}
	if got != d {
		t.Fatalf("round trip: got %+v, want %+v", got, d)
	}
}

func TestTimestampTZOffsetRoundTrip(t *testing.T) {
	d := DateTime{
		Year: 2024, Month: 6, Day: 15, Hour: 8, Minute: 45, Second: 1, Nanosecond: 500,
		HasTZ: true, TZHour: -7, TZMinute: 0,
	}
	enc := EncodeTimestampTZ(d)
	got, err := DecodeTimestampTZ(enc)
	if err != nil {
		t.Fatalf("DecodeTimestampTZ: %v", err)
	}
	if got != d {
		t.Fatalf("round trip: got %+v, want %+v", got, d)
	}
}

func TestTimestampTZRegionRoundTrip(t *testing.T) {
	d := DateTime{
		Year: 2024, Month: 1, Day: 1, Hour: 0, Minute: 0, Second: 0,
		HasTZ: true, TZRegion: true, TZRegionID: 1122,
	}
	enc := EncodeTimestampTZ(d)
	got, err := DecodeTimestampTZ(enc)
	if err != nil {
		t.Fatalf("DecodeTimestampTZ: %v", err)
	}
	if !got.TZRegion || got.TZRegionID != d.TZRegionID {
		t.Fatalf("round trip region: got %+v, want %+v", got, d)
	}
}

func TestDateShortBufferErrors(t *testing.T) {
	if _, err := DecodeDate([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short DATE buffer")
	}
	if _, err := DecodeTimestamp(make([]byte, 5)); err == nil {
		t.Fatalf("expected error for short TIMESTAMP buffer")
	}
	if _, err := DecodeTimestampTZ(make([]byte, 11)); err == nil {
		t.Fatalf("expected error for short TIMESTAMP WITH TZ buffer")
	}
}
