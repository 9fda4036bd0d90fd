package retools

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default patterns per kind, overridable per field. Text is deliberately the
// shortest non-empty run so surrounding literals keep their say.
var defaultPatterns = map[Kind]string{
	KindBool:     `(?i:true|false|1|0)`,
	KindInt:      `-?\d+`,
	KindFloat:    `-?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`,
	KindDecimal:  `-?(?:\d+(?:\.\d*)?|\.\d+)`,
	KindDate:     `\d{4}-\d{2}-\d{2}`,
	KindDateTime: `\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?`,
	KindTime:     `\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?`,
	KindUUID:     `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
	KindText:     `.+?`,
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	// Output layouts carry the fraction the default patterns accept; Format
	// trims trailing zeros and drops the point entirely on whole seconds.
	timeOutLayout     = "15:04:05.999999"
	dateTimeOutLayout = "2006-01-02 15:04:05.999999"
)

// datetime accepts a space or a 'T' between date and clock. time.Parse
// tolerates fractional seconds after the seconds field without a layout hint.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// DefaultPattern returns the built-in pattern for a primitive kind, or ""
// when the kind has none (token, list, none).
func DefaultPattern(k Kind) string {
	return defaultPatterns[k]
}

// ParseValue converts matched text into a Value of the given primitive kind.
// The text is expected to have already matched the kind's pattern, so a
// failure here means the pattern and the parser disagree.
func ParseValue(k Kind, s string) (Value, error) {
	switch k {
	case KindBool:
		lower := strings.ToLower(s)
		return Value{Kind: KindBool, Bool: lower == "true" || lower == "1"}, nil
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return None(), err
		}
		return Value{Kind: KindInt, Int: n}, nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return None(), err
		}
		return Value{Kind: KindFloat, Float: f}, nil
	case KindDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return None(), err
		}
		return Value{Kind: KindDecimal, Decimal: d}, nil
	case KindDate:
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return None(), err
		}
		return Value{Kind: KindDate, Time: t}, nil
	case KindDateTime:
		var t time.Time
		var err error
		for _, layout := range dateTimeLayouts {
			t, err = time.Parse(layout, s)
			if err == nil {
				return Value{Kind: KindDateTime, Time: t}, nil
			}
		}
		return None(), err
	case KindTime:
		t, err := time.Parse(timeLayout, s)
		if err != nil {
			return None(), err
		}
		return Value{Kind: KindTime, Time: t}, nil
	case KindUUID:
		u, err := uuid.Parse(s)
		if err != nil {
			return None(), err
		}
		return Value{Kind: KindUUID, UUID: u}, nil
	case KindText:
		return Value{Kind: KindText, Text: s}, nil
	default:
		return None(), fmt.Errorf("kind %s has no parser", k)
	}
}

// FormatValue renders a primitive Value back into text that its kind's
// default pattern accepts.
func FormatValue(v Value) string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindDecimal:
		return v.Decimal.String()
	case KindDate:
		return v.Time.Format(dateLayout)
	case KindDateTime:
		return v.Time.Format(dateTimeOutLayout)
	case KindTime:
		return v.Time.Format(timeOutLayout)
	case KindUUID:
		return v.UUID.String()
	case KindText:
		return v.Text
	default:
		return ""
	}
}
