package dto

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRangePattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)[^\d~\-]*[~\-][^\d]*(\d+(?:\.\d+)?)`)
	priceNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// PriceValue decodes prices the model writes as numbers, as strings with
// thousands separators, or as ranges such as "2,000~2,050" (the midpoint).
// Anything unparseable decodes to 0.
type PriceValue float64

func (p *PriceValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PriceValue(ParsePriceValue(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*p = 0
		return nil
	}
	*p = PriceValue(f)
	return nil
}

func (p PriceValue) Float64() float64 {
	return float64(p)
}

// ParsePriceValue extracts a price from free text.
func ParsePriceValue(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if m := priceRangePattern.FindStringSubmatch(s); m != nil {
		low, errLow := strconv.ParseFloat(m[1], 64)
		high, errHigh := strconv.ParseFloat(m[2], 64)
		if errLow == nil && errHigh == nil {
			return (low + high) / 2
		}
	}
	if m := priceNumberPattern.FindString(s); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			return f
		}
	}
	return 0
}

// FlexibleFloat accepts a JSON number or a numeric string.
type FlexibleFloat float64

func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		*f = FlexibleFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexibleFloat(v)
	return nil
}
