package resolver

type Alias struct {
	Name     string
	Hostname string
}

// KnownCompanies is matched in order; earlier entries win partial matches.
var KnownCompanies = []Alias{
	{"commonwealth bank", "commbank.com.au"},
	{"commonwealth bank australia", "commbank.com.au"},
	{"commonwealth bank of australia", "commbank.com.au"},
	{"cba", "commbank.com.au"},
	{"commbank", "commbank.com.au"},
	{"comm bank", "commbank.com.au"},
	{"westpac", "westpac.com.au"},
	{"westpac bank", "westpac.com.au"},
	{"westpac banking corporation", "westpac.com.au"},
	{"anz", "anz.com.au"},
	{"anz bank", "anz.com.au"},
	{"australia and new zealand banking group", "anz.com.au"},
	{"nab", "nab.com.au"},
	{"national australia bank", "nab.com.au"},
	{"telstra", "telstra.com.au"},
	{"telstra corporation", "telstra.com.au"},
	{"woolworths", "woolworthsgroup.com.au"},
	{"woolworths group", "woolworthsgroup.com.au"},
	{"coles", "colesgroup.com.au"},
	{"coles group", "colesgroup.com.au"},
	{"bhp", "bhp.com"},
	{"bhp group", "bhp.com"},
	{"rio tinto", "riotinto.com"},
	{"qantas", "qantas.com"},
	{"qantas airways", "qantas.com"},
	{"australian military bank", "australianmilitarybank.com.au"},
	{"defence bank", "defencebank.com.au"},
	{"suncorp", "suncorp.com.au"},
	{"medibank", "medibank.com.au"},
	{"harvey norman", "harveynorman.com.au"},
	{"jb hi-fi", "jbhifi.com.au"},
	{"bunnings", "bunnings.com.au"},
	{"kmart", "kmart.com.au"},
	{"target australia", "target.com.au"},
	{"myer", "myer.com.au"},
	{"david jones", "davidjones.com"},
}
