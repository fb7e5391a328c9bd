package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// parseA1 splits an A1 range such as "Leads!B2:F" into its sheet name and
// the 0-based column and 1-based row of its top-left cell. A range without
// a row number ("Leads!A:F") yields row 0.
func parseA1(rng string) (sheet string, col, row int, err error) {
	i := strings.LastIndex(rng, "!")
	if i <= 0 {
		return "", 0, 0, fmt.Errorf("range %q must be of the form Sheet!A:F", rng)
	}
	sheet = rng[:i]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}

	cell := rng[i+1:]
	if j := strings.IndexByte(cell, ':'); j >= 0 {
		cell = cell[:j]
	}
	cell = strings.ToUpper(cell)

	k := 0
	for k < len(cell) && cell[k] >= 'A' && cell[k] <= 'Z' {
		col = col*26 + int(cell[k]-'A'+1)
		k++
	}
	if k == 0 {
		return "", 0, 0, fmt.Errorf("range %q has no start column", rng)
	}
	col--

	if k < len(cell) {
		row, err = strconv.Atoi(cell[k:])
		if err != nil || row < 1 {
			return "", 0, 0, fmt.Errorf("range %q has an invalid start row", rng)
		}
	}
	return sheet, col, row, nil
}

// columnName converts a 0-based column index to its letter form.
func columnName(col int) string {
	var b []byte
	for col >= 0 {
		b = append([]byte{byte('A' + col%26)}, b...)
		col = col/26 - 1
	}
	return string(b)
}

// quoteSheet quotes a sheet name when A1 notation requires it.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!:") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
