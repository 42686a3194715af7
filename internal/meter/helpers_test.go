// SPDX-License-Identifier: MIT
package meter

import "strconv"

var referenceThresholds = []float64{350, 360, 365, 370, 380, 390, 400, 410}

func formatInt(n int) string {
	return strconv.Itoa(n)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func mustDefaultTable() *LevelTable {
	t, err := NewLevelTable(DefaultLevels())
	if err != nil {
		panic(err)
	}
	return t
}
