package record

import (
	"fmt"
	"math"
	"strings"

	"github.com/tuannm99/rowstore/internal/errs"
)

// Type is the column type; its value is the on-disk type tag.
type Type uint8

const (
	TypeInteger  Type = 0x00
	TypeDecimal  Type = 0x01
	TypeChar     Type = 0x02
	TypeVarchar  Type = 0x03
	TypeDatetime Type = 0x04
)

// TagNull marks a null INTEGER sub-record. It is never a column type.
const TagNull byte = 0xAA

// Null is the textual null value.
const Null = "null"

// MaxColumns is bounded by the 2-byte column count control entry.
const MaxColumns = math.MaxInt16

func (t Type) Valid() bool { return t <= TypeDatetime }

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeDecimal:
		return "DECIMAL"
	case TypeChar:
		return "CHAR"
	case TypeVarchar:
		return "VARCHAR"
	case TypeDatetime:
		return "DATETIME"
	default:
		return fmt.Sprintf("Type(0x%02x)", uint8(t))
	}
}

func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INTEGER":
		return TypeInteger, nil
	case "DECIMAL":
		return TypeDecimal, nil
	case "CHAR":
		return TypeChar, nil
	case "VARCHAR":
		return TypeVarchar, nil
	case "DATETIME":
		return TypeDatetime, nil
	default:
		return 0, fmt.Errorf("%w: unknown column type %q", errs.ErrInvalidSchema, s)
	}
}

type Column struct {
	Name string
	Type Type
}

// Schema is the ordered column list plus the primary-key position.
// Column position is the only link between a column and a row value.
type Schema struct {
	Cols []Column
	PK   int
}

func (s Schema) NumCols() int { return len(s.Cols) }

func (s Schema) Types() []Type {
	out := make([]Type, len(s.Cols))
	for i, c := range s.Cols {
		out[i] = c.Type
	}
	return out
}

func (s Schema) Validate() error {
	if len(s.Cols) == 0 {
		return fmt.Errorf("%w: no columns", errs.ErrInvalidSchema)
	}
	if len(s.Cols) > MaxColumns {
		return fmt.Errorf("%w: %d columns, max %d", errs.ErrInvalidSchema, len(s.Cols), MaxColumns)
	}
	if s.PK < 0 || s.PK >= len(s.Cols) {
		return fmt.Errorf("%w: primary key index %d out of range", errs.ErrInvalidSchema, s.PK)
	}
	for i, c := range s.Cols {
		if c.Name == "" {
			return fmt.Errorf("%w: column %d has no name", errs.ErrInvalidSchema, i)
		}
		if len(c.Name) > math.MaxUint16 {
			return fmt.Errorf("%w: column %d name too long", errs.ErrInvalidSchema, i)
		}
		if !c.Type.Valid() {
			return fmt.Errorf("%w: column %q has %v", errs.ErrInvalidSchema, c.Name, c.Type)
		}
	}
	return nil
}

// Row holds one textual value per column, aligned with the schema.
type Row []string
