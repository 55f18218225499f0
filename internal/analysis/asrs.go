package analysis

import "report_spider/internal/models"

type asrsGroup struct {
	group         int
	reportingDate string
	minRevenue    float64 // millions
	minAssets     float64 // millions
	minEmployees  int
}

// Checked from the largest group down.
var asrsGroups = []asrsGroup{
	{1, "1 July 2024", 500, 1000, 500},
	{2, "1 July 2026", 200, 500, 250},
	{3, "1 July 2027", 50, 25, 100},
}

const noRequirement = "No current requirement"

func tier(v, min1, min2, min3 float64) int {
	switch {
	case v >= min1:
		return 1
	case v >= min2:
		return 2
	case v >= min3:
		return 3
	}
	return 0
}

// ClassifyASRS needs two of the three criteria to land in the same group.
// Revenue and assets are in millions.
func ClassifyASRS(revenue, assets float64, employees int) models.ASRSClassification {
	g1, g2, g3 := asrsGroups[0], asrsGroups[1], asrsGroups[2]
	tiers := []int{
		tier(revenue, g1.minRevenue, g2.minRevenue, g3.minRevenue),
		tier(assets, g1.minAssets, g2.minAssets, g3.minAssets),
		tier(float64(employees), float64(g1.minEmployees), float64(g2.minEmployees), float64(g3.minEmployees)),
	}

	for _, g := range asrsGroups {
		met := 0
		for _, t := range tiers {
			if t == g.group {
				met++
			}
		}
		if met >= 2 {
			return models.ASRSClassification{Group: g.group, ReportingDate: g.reportingDate, CriteriaMet: met}
		}
	}
	return models.ASRSClassification{ReportingDate: noRequirement}
}
