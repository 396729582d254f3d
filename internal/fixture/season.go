package fixture

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	seasonPattern     = regexp.MustCompile(`^(\d{4})(?:\s*[-/]\s*|\s+)(\d{2}|\d{4})$`)
	seasonFilePattern = regexp.MustCompile(`(\d{4})[-_](\d{4})`)
)

// NormalizeSeason returns the canonical "YYYY/YYYY" form of a season label.
//
//	"2024-25"   -> "2024/2025"
//	"2024 25"   -> "2024/2025"
//	"2099-00"   -> "2099/2100"
//	"2024-2025" -> "2024/2025"
//
// Labels in any other shape are returned verbatim so they stay visible
// downstream instead of collapsing into a wrong season.
func NormalizeSeason(raw string) string {
	label := strings.TrimSpace(raw)
	m := seasonPattern.FindStringSubmatch(label)
	if m == nil {
		return raw
	}

	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if len(m[2]) == 2 {
		end += (start / 100) * 100
		if end <= start {
			end += 100
		}
	}
	return fmt.Sprintf("%04d/%04d", start, end)
}

// SeasonFromFilename derives a canonical season from names such as
// "fixtures_2023-2024.xlsx". It returns "" when the name carries no season.
func SeasonFromFilename(path string) string {
	m := seasonFilePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return ""
	}
	return NormalizeSeason(m[1] + "/" + m[2])
}
