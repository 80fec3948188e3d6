package models

// Company is a static directory entry for a listed instrument. The full
// company catalog is maintained outside this service; the pipeline only
// needs symbols, display names and sectors.
type Company struct {
	Symbol string `json:"symbol"` // lowercase local symbol
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// CompanyDirectory supplies the symbol universe the pipeline operates on.
// The production implementation wraps the static company catalog; tests
// substitute small fixed sets.
type CompanyDirectory interface {
	Companies() []Company
}

// StaticDirectory is a CompanyDirectory backed by a fixed slice.
type StaticDirectory struct {
	companies []Company
}

// NewStaticDirectory copies the given entries into an immutable directory.
func NewStaticDirectory(companies []Company) *StaticDirectory {
	cp := make([]Company, len(companies))
	copy(cp, companies)
	return &StaticDirectory{companies: cp}
}

// Companies returns a copy so callers cannot mutate the directory.
func (d *StaticDirectory) Companies() []Company {
	cp := make([]Company, len(d.companies))
	copy(cp, d.companies)
	return cp
}

// DefaultDirectory returns the built-in WIG20/mWIG40 subset used when no
// external catalog is configured. The full ~300 instrument catalog ships
// with the front end and is injected at startup in production.
func DefaultDirectory() *StaticDirectory {
	return NewStaticDirectory([]Company{
		{Symbol: "pkn", Name: "Orlen", Sector: "Energy"},
		{Symbol: "pko", Name: "PKO Bank Polski", Sector: "Banking"},
		{Symbol: "pzu", Name: "PZU", Sector: "Insurance"},
		{Symbol: "peo", Name: "Bank Pekao", Sector: "Banking"},
		{Symbol: "kgh", Name: "KGHM Polska Miedz", Sector: "Mining"},
		{Symbol: "dnp", Name: "Dino Polska", Sector: "Retail"},
		{Symbol: "lpp", Name: "LPP", Sector: "Apparel"},
		{Symbol: "cdr", Name: "CD Projekt", Sector: "Gaming"},
		{Symbol: "ale", Name: "Allegro.eu", Sector: "E-commerce"},
		{Symbol: "spl", Name: "Santander Bank Polska", Sector: "Banking"},
		{Symbol: "mbk", Name: "mBank", Sector: "Banking"},
		{Symbol: "pge", Name: "PGE", Sector: "Utilities"},
		{Symbol: "opl", Name: "Orange Polska", Sector: "Telecom"},
		{Symbol: "cps", Name: "Cyfrowy Polsat", Sector: "Media"},
		{Symbol: "alr", Name: "Alior Bank", Sector: "Banking"},
		{Symbol: "tpe", Name: "Tauron", Sector: "Utilities"},
		{Symbol: "jsw", Name: "JSW", Sector: "Mining"},
		{Symbol: "ccc", Name: "CCC", Sector: "Retail"},
		{Symbol: "bdx", Name: "Budimex", Sector: "Construction"},
		{Symbol: "kty", Name: "Grupa Kety", Sector: "Industrials"},
		{Symbol: "krk", Name: "Krka", Sector: "Pharma"},
		{Symbol: "mil", Name: "Bank Millennium", Sector: "Banking"},
		{Symbol: "pco", Name: "Pepco Group", Sector: "Retail"},
		{Symbol: "11b", Name: "11 bit studios", Sector: "Gaming"},
		{Symbol: "xtb", Name: "XTB", Sector: "Brokerage"},
		{Symbol: "ten", Name: "Ten Square Games", Sector: "Gaming"},
		{Symbol: "gpw", Name: "GPW", Sector: "Exchange"},
		{Symbol: "wpl", Name: "Wirtualna Polska", Sector: "Media"},
		{Symbol: "ena", Name: "Enea", Sector: "Utilities"},
		{Symbol: "atc", Name: "Arctic Paper", Sector: "Materials"},
	})
}
