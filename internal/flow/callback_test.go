package flow

import (
	"reflect"
	"testing"
)

func TestDecodeStepVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
		want any
	}{
		{
			name: "location",
			data: `{"t":"l","l":"SRP"}`,
			want: locationStep{T: tagLocation, Loc: "SRP"},
		},
		{
			name: "date",
			data: `{"t":"d","d":"2026-08-28","l":"STP"}`,
			want: dateStep{T: tagDate, Date: "2026-08-28", Loc: "STP"},
		},
		{
			name: "session",
			data: `{"t":"s","d":"08-28","l":"SHV","i":991}`,
			want: sessionStep{T: tagSession, MonthDay: "08-28", Loc: "SHV", BookingID: 991},
		},
		{
			name: "cancel",
			data: `{"t":"c","cid":12345,"bid":991}`,
			want: cancelStep{T: tagCancel, ChatID: 12345, BookingID: 991},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeStep(tt.data)
			if err != nil {
				t.Fatalf("decodeStep: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeStepRejectsGarbage(t *testing.T) {
	t.Parallel()
	for _, data := range []string{
		"",
		"not json",
		`{"t":"x"}`,
		`{"nope":1}`,
		`[1,2,3]`,
		`{"t":"s","i":"not-a-number"}`,
	} {
		if _, err := decodeStep(data); err == nil {
			t.Errorf("decodeStep(%q) should fail", data)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	orig := sessionStep{T: tagSession, MonthDay: "12-31", Loc: "SPL", BookingID: 7}
	got, err := decodeStep(encodeStep(orig))
	if err != nil {
		t.Fatalf("decodeStep: %v", err)
	}
	if got != any(orig) {
		t.Fatalf("got %#v, want %#v", got, orig)
	}
}

func TestEncodedStepsFitCallbackDataCap(t *testing.T) {
	t.Parallel()
	// Telegram rejects callback_data over 64 bytes; every step we emit
	// must stay under it, including the widest realistic values.
	steps := []any{
		locationStep{T: tagLocation, Loc: "SMO"},
		dateStep{T: tagDate, Date: "2026-12-31", Loc: "SMO"},
		sessionStep{T: tagSession, MonthDay: "12-31", Loc: "SMO", BookingID: 99999999},
		cancelStep{T: tagCancel, ChatID: -1001234567890, BookingID: 99999999},
	}
	for _, st := range steps {
		if n := len(encodeStep(st)); n == 0 || n > 64 {
			t.Errorf("%#v encodes to %d bytes", st, n)
		}
	}
}
