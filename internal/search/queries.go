package search

import "fmt"

// BuildQueries returns the query battery for a company. With a validated
// domain every query is pinned to it with site:, otherwise queries go to the
// open web with Australian qualifiers. currentYear anchors the no-year variants.
func BuildQueries(name, domain string, year, currentYear int) []string {
	q := `"` + name + `"`
	recent, prior, older := currentYear-1, currentYear-2, currentYear-3

	if domain != "" {
		site := "site:" + domain
		if year > 0 {
			return []string{
				fmt.Sprintf("%s annual report %d filetype:pdf %s", q, year, site),
				fmt.Sprintf("%s %d annual report %s", q, year, site),
				fmt.Sprintf("annual report %d %s", year, site),
				fmt.Sprintf("financial statements %d %s", year, site),
				fmt.Sprintf("investor relations %d %s", year, site),
			}
		}
		return []string{
			fmt.Sprintf("annual report %d filetype:pdf %s", recent, site),
			fmt.Sprintf("annual report %d filetype:pdf %s", prior, site),
			fmt.Sprintf("financial statements %d %s", recent, site),
			fmt.Sprintf("investor relations %s", site),
			fmt.Sprintf("sustainability report %d %s", recent, site),
		}
	}

	if year > 0 {
		return []string{
			fmt.Sprintf("%s annual report %d filetype:pdf australia", q, year),
			fmt.Sprintf("%s %d annual report investor relations", q, year),
			fmt.Sprintf("%s financial report %d australia", q, year),
			fmt.Sprintf("%s %d sustainability report australia", q, year),
		}
	}
	return []string{
		fmt.Sprintf("%s annual report filetype:pdf australia", q),
		fmt.Sprintf("%s annual report %d OR %d OR %d investor relations", q, recent, prior, older),
		fmt.Sprintf("%s financial statements australia annual report", q),
		fmt.Sprintf("%s investor relations annual report australia", q),
		fmt.Sprintf("%s sustainability report %d australia", q, recent),
	}
}
