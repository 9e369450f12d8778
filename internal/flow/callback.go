package flow

import (
	"encoding/json"
	"fmt"
)

// Callback payloads are compact JSON tagged unions carried in the
// button's callback_data (the round trip IS the conversation state; no
// server-side session is kept). The tag values and field names are
// single letters to stay inside Telegram's 64-byte callback_data cap.
const (
	tagLocation = "l"
	tagDate     = "d"
	tagSession  = "s"
	tagCancel   = "c"
)

type locationStep struct {
	T   string `json:"t"`
	Loc string `json:"l"`
}

type dateStep struct {
	T    string `json:"t"`
	Date string `json:"d"` // YYYY-MM-DD
	Loc  string `json:"l"`
}

type sessionStep struct {
	T        string `json:"t"`
	MonthDay string `json:"d"` // MM-DD; year recomposed at commit time
	Loc      string `json:"l"`
	BookingID int64 `json:"i"`
}

type cancelStep struct {
	T         string `json:"t"`
	ChatID    int64  `json:"cid"`
	BookingID int64  `json:"bid"`
}

// decodeStep parses callback data into exactly one of the typed step
// variants. Anything else is an error; callers ignore such payloads
// without crashing.
func decodeStep(data string) (any, error) {
	var env struct {
		T string `json:"t"`
	}
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("callback payload: %w", err)
	}
	switch env.T {
	case tagLocation:
		var st locationStep
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, err
		}
		return st, nil
	case tagDate:
		var st dateStep
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, err
		}
		return st, nil
	case tagSession:
		var st sessionStep
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, err
		}
		return st, nil
	case tagCancel:
		var st cancelStep
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("callback payload: unknown step tag %q", env.T)
	}
}

func encodeStep(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
