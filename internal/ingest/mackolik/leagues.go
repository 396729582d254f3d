package mackolik

import "github.com/fortuna/almanac/internal/harvest"

// ArchiveURL is the standings page of the archive.
const ArchiveURL = "https://arsiv.mackolik.com/Standings/Default.aspx"

// DefaultLeagues are harvested when the configuration names none.
func DefaultLeagues() []harvest.League {
	return []harvest.League{
		{Name: "Türkiye Süper Lig", URL: ArchiveURL + "?sId=67287"},
		{Name: "İngiltere Premier League", URL: ArchiveURL + "?sId=67180"},
		{Name: "İspanya La Liga", URL: ArchiveURL + "?sId=67194"},
		{Name: "İtalya Serie A", URL: ArchiveURL + "?sId=67286"},
		{Name: "Almanya Bundesliga", URL: ArchiveURL + "?sId=67285"},
		{Name: "Fransa Ligue 1", URL: ArchiveURL + "?sId=67238"},
	}
}
