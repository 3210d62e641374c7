package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrAmountTooLarge rejects amounts that do not fit a Decimal128.
var ErrAmountTooLarge = errors.New("amount has too many digits")

// Money is a decimal amount that persists as a BSON Decimal128 so sums never
// drift through binary floating point.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// ParseMoney parses a plain decimal string such as "12.50" or "+1000". The
// amount must be storable as a Decimal128.
func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(raw), "+"))
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if _, err := primitive.ParseDecimal128(d.String()); err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", raw, ErrAmountTooLarge)
	}
	return Money{Decimal: d}, nil
}

// MustMoney parses a literal amount and panics on malformed input; meant for
// constants and tests.
func MustMoney(raw string) Money {
	m, err := ParseMoney(raw)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns the sum of both amounts.
func (m Money) Add(other Money) Money {
	return Money{Decimal: m.Decimal.Add(other.Decimal)}
}

// Sub returns m minus other.
func (m Money) Sub(other Money) Money {
	return Money{Decimal: m.Decimal.Sub(other.Decimal)}
}

// Format renders the amount as "$1,234.50"; negatives keep the sign in front.
// Digits come from the decimal itself, so large amounts are exact.
func (m Money) Format() string {
	rounded := m.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}

	whole, frac, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")
	n, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return sign + "$" + whole + "." + frac
	}
	return sign + "$" + humanize.BigComma(n) + "." + frac
}

// MarshalBSONValue stores the amount as Decimal128.
func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(m.Decimal.String())
	if err != nil {
		return 0, nil, fmt.Errorf("encode amount %s: %w", m.Decimal.String(), err)
	}
	return bson.MarshalValue(d128)
}

// UnmarshalBSONValue accepts Decimal128 as well as legacy string and numeric
// encodings.
func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.Decimal128:
		d128, ok := raw.Decimal128OK()
		if !ok {
			return fmt.Errorf("decode amount: malformed decimal128")
		}
		d, err := decimal.NewFromString(d128.String())
		if err != nil {
			return fmt.Errorf("decode amount: %w", err)
		}
		m.Decimal = d
	case bsontype.String:
		d, err := decimal.NewFromString(raw.StringValue())
		if err != nil {
			return fmt.Errorf("decode amount: %w", err)
		}
		m.Decimal = d
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(raw.Int64())
	case bsontype.Null, bsontype.Undefined:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("decode amount: unsupported bson type %s", t)
	}

	return nil
}
