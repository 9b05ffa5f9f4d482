package sml

import (
	"encoding/json"
	"fmt"
)

// ChangeKind enumerates every kind of SmlChange. Each kind feeds exactly
// one Summary counter, so the counters always sum to TotalChanges.
type ChangeKind int

const (
	ValueChanged ChangeKind = iota
	FormulaChanged
	FormatChanged
	CellAdded
	CellDeleted
	SheetAdded
	SheetDeleted
	SheetRenamed
	RowInserted
	RowDeleted
	ColumnInserted
	ColumnDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ValueChanged:
		return "ValueChanged"
	case FormulaChanged:
		return "FormulaChanged"
	case FormatChanged:
		return "FormatChanged"
	case CellAdded:
		return "CellAdded"
	case CellDeleted:
		return "CellDeleted"
	case SheetAdded:
		return "SheetAdded"
	case SheetDeleted:
		return "SheetDeleted"
	case SheetRenamed:
		return "SheetRenamed"
	case RowInserted:
		return "RowInserted"
	case RowDeleted:
		return "RowDeleted"
	case ColumnInserted:
		return "ColumnInserted"
	case ColumnDeleted:
		return "ColumnDeleted"
	default:
		return "Unknown"
	}
}

// MarshalJSON serializes the kind by its enum name, not its ordinal.
func (k ChangeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Change is a SmlChange: a tagged record carrying its kind, locator fields,
// and before/after values. Never mutated after construction; field names
// are part of the stable JSON export contract and must not be renamed.
type Change struct {
	ChangeType ChangeKind

	SheetName    string `json:",omitempty"`
	OldSheetName string `json:",omitempty"`

	CellAddress string `json:",omitempty"`
	RowIndex    int    `json:",omitempty"`
	ColumnIndex int    `json:",omitempty"`

	OldValue string `json:",omitempty"`
	NewValue string `json:",omitempty"`

	OldFormat *CellFormatSignature `json:",omitempty"`
	NewFormat *CellFormatSignature `json:",omitempty"`

	Description string
}

// GetDescription returns the change's human-readable description, used by
// the renderer's cell comments.
func (c *Change) GetDescription() string {
	return c.Description
}

func describe(k ChangeKind, c *Change) string {
	switch k {
	case ValueChanged:
		return fmt.Sprintf("%s!%s value changed from %q to %q", c.SheetName, c.CellAddress, c.OldValue, c.NewValue)
	case FormulaChanged:
		return fmt.Sprintf("%s!%s formula changed from %q to %q", c.SheetName, c.CellAddress, c.OldValue, c.NewValue)
	case FormatChanged:
		return fmt.Sprintf("%s!%s format changed", c.SheetName, c.CellAddress)
	case CellAdded:
		return fmt.Sprintf("%s!%s added", c.SheetName, c.CellAddress)
	case CellDeleted:
		return fmt.Sprintf("%s!%s deleted", c.SheetName, c.CellAddress)
	case SheetAdded:
		return fmt.Sprintf("Sheet %q added", c.SheetName)
	case SheetDeleted:
		return fmt.Sprintf("Sheet %q deleted", c.SheetName)
	case SheetRenamed:
		return fmt.Sprintf("Sheet renamed from %q to %q", c.OldSheetName, c.SheetName)
	case RowInserted:
		return fmt.Sprintf("Row %d inserted in %q", c.RowIndex, c.SheetName)
	case RowDeleted:
		return fmt.Sprintf("Row %d deleted from %q", c.RowIndex, c.SheetName)
	case ColumnInserted:
		return fmt.Sprintf("Column %d inserted in %q", c.ColumnIndex, c.SheetName)
	case ColumnDeleted:
		return fmt.Sprintf("Column %d deleted from %q", c.ColumnIndex, c.SheetName)
	default:
		return k.String()
	}
}
