package sml

// builtinNumFmts is the ECMA-376 Part 1 §18.8.30 built-in number format
// table, reproduced for the ids calls out explicitly. Ids not
// present here (reserved/locale-dependent currency codes) resolve to
// "General" like any other unknown id.
var builtinNumFmts = map[int]string{
	0:  "General",
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	12: "# ?/?",
	13: "# ??/??",
	14: "mm-dd-yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mmss.0",
	48: "##0.0E+0",
	49: "@",
}

// resolveBuiltinNumFmt returns the built-in format code for id, or "General"
// for any id outside the documented table.
func resolveBuiltinNumFmt(id int) string {
	if code, ok := builtinNumFmts[id]; ok {
		return code
	}
	return "General"
}
