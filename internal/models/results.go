package models

import "time"

// FocusMode records how the focus keys of an LCOE run were chosen
type FocusMode string

const (
	// FocusRanked means the keys are the top-N ranking by activity
	FocusRanked FocusMode = "ranked"
	// FocusAllQualifying means the ranking could not fill N slots and every qualifying key is used
	FocusAllQualifying FocusMode = "all_qualifying"
	// FocusNone means no key covers every category
	FocusNone FocusMode = "none"
)

// FocusSelection is the set of keys chosen for the per-country comparison
type FocusSelection struct {
	Keys      []string  `json:"keys"`
	Mode      FocusMode `json:"mode"`
	Requested int       `json:"requested"`
}

// LCOEResult holds the summaries of the levelized-cost comparison
type LCOEResult struct {
	Records       []NormalizedRecord `json:"-"`
	RecordCount   int                `json:"record_count"`
	CategoryMeans []SummaryRecord    `json:"category_means"`
	CompleteKeys  []string           `json:"complete_keys"`
	Activity      map[string]float64 `json:"-"`
	Focus         FocusSelection     `json:"focus"`
	FocusMeans    []SummaryRecord    `json:"focus_means"`
	Sources       []SourceReport     `json:"sources"`
	Warnings      []Warning          `json:"warnings,omitempty"`
}

// HourlyPrice is the mean day-ahead price for one hour of the day.
// Nil means the energy type had no prices at that hour.
type HourlyPrice struct {
	Hour         int      `json:"hour"`
	Green        *float64 `json:"green"`
	Conventional *float64 `json:"conventional"`
	Spread       *float64 `json:"spread"`
}

// PriceGap is green minus conventional mean price for one date and hour
type PriceGap struct {
	Date time.Time `json:"date"`
	Hour int       `json:"hour"`
	Gap  float64   `json:"gap"`
}

// Candle is an hourly open/high/low/close of prices for one energy type
type Candle struct {
	Green  bool      `json:"green"`
	Bucket time.Time `json:"bucket"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
}

// EUPriceResult is the output of the EU day-ahead price pipeline
type EUPriceResult struct {
	RowsRead      int           `json:"rows_read"`
	RowsKept      int           `json:"rows_kept"`
	UnmappedFlags int           `json:"unmapped_flags"`
	Hourly        []HourlyPrice `json:"hourly"`
	Gaps          []PriceGap    `json:"gaps"`
	Candles       []Candle      `json:"candles"`
}

// RankedValue is an entity with a single metric
type RankedValue struct {
	Entity string  `json:"entity"`
	Value  float64 `json:"value"`
}

// MortalityResult lists death rates per TWh, lowest first
type MortalityResult struct {
	Rates  []RankedValue `json:"rates"`
	Source SourceReport  `json:"source"`
}

// SourceTotal is the sum of one energy source over all years
type SourceTotal struct {
	Source string  `json:"source"`
	Total  float64 `json:"total"`
}

// YearSeries groups the yearly consumption into fossil, renewable and nuclear
type YearSeries struct {
	Year       int     `json:"year"`
	Fossil     float64 `json:"fossil"`
	Renewables float64 `json:"renewables"`
	Nuclear    float64 `json:"nuclear"`
}

// MixShare is one slice of an energy mix
type MixShare struct {
	Source string  `json:"source"`
	Value  float64 `json:"value"`
	Share  float64 `json:"share"`
}

// SourceYear is the consumption of one source in one year
type SourceYear struct {
	Year   int     `json:"year"`
	Source string  `json:"source"`
	Value  float64 `json:"value"`
}

// MixFrame is the energy mix of a single year
type MixFrame struct {
	Year int        `json:"year"`
	Mix  []MixShare `json:"mix"`
}

// EnergyMixResult is the output of the global substitution pipeline
type EnergyMixResult struct {
	Totals       []SourceTotal `json:"totals"`
	Series       []YearSeries  `json:"series"`
	Renewables   []SourceYear  `json:"renewables"`
	Frames       []MixFrame    `json:"frames"`
	FirstYear    int           `json:"first_year"`
	FirstYearMix []MixShare    `json:"first_year_mix"`
	LastYear     int           `json:"last_year"`
	LastYearMix  []MixShare    `json:"last_year_mix"`
}

// EntityElectricity is the generation split of one entity in one year (TWh)
type EntityElectricity struct {
	Entity         string  `json:"entity"`
	Year           int     `json:"year"`
	Fossil         float64 `json:"fossil"`
	Nuclear        float64 `json:"nuclear"`
	Renewables     float64 `json:"renewables"`
	Total          float64 `json:"total"`
	LowCarbonShare float64 `json:"low_carbon_share"`
}

// YearlyElectricity is the global generation split of one year (TWh), with each
// source's percentage of the total
type YearlyElectricity struct {
	Year            int     `json:"year"`
	Fossil          float64 `json:"fossil"`
	Nuclear         float64 `json:"nuclear"`
	Renewables      float64 `json:"renewables"`
	Total           float64 `json:"total"`
	FossilShare     float64 `json:"fossil_pct"`
	NuclearShare    float64 `json:"nuclear_pct"`
	RenewablesShare float64 `json:"renewables_pct"`
}

// GDPPoint relates wealth, renewable share and emissions for one entity-year
type GDPPoint struct {
	Entity          string  `json:"entity"`
	Year            int     `json:"year"`
	GDPPerCapita    float64 `json:"gdp_per_capita"`
	RenewablesShare float64 `json:"renewables_share"`
	CO2Kt           float64 `json:"co2_kt"`
}

// AdoptionPoint relates renewable adoption and emissions for one entity-year
type AdoptionPoint struct {
	Entity                 string  `json:"entity"`
	Year                   int     `json:"year"`
	RenewableShare         float64 `json:"renewable_share"`
	CO2Kt                  float64 `json:"co2_kt"`
	PrimaryEnergyPerCapita float64 `json:"primary_energy_per_capita"`
}

// SustainableResult is the output of the sustainable-energy pipeline.
// Transitions holds every entity-year inside the transition window, by entity then year.
type SustainableResult struct {
	LatestYear  int                 `json:"latest_year"`
	Latest      []EntityElectricity `json:"latest"`
	Global      []YearlyElectricity `json:"global"`
	Scatter     []GDPPoint          `json:"scatter"`
	Transitions []EntityElectricity `json:"transitions"`
	Adoption    []AdoptionPoint     `json:"adoption"`
}

// AnalysisResult is one full run over every configured dataset.
// Sections whose sources are absent stay nil.
type AnalysisResult struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	LCOE        *LCOEResult        `json:"lcoe,omitempty"`
	EUPrices    *EUPriceResult     `json:"eu_prices,omitempty"`
	Mortality   *MortalityResult   `json:"mortality,omitempty"`
	EnergyMix   *EnergyMixResult   `json:"energy_mix,omitempty"`
	Sustainable *SustainableResult `json:"sustainable,omitempty"`
	Warnings    []Warning          `json:"warnings,omitempty"`
}

// AnalysisRun is the persisted header of an AnalysisResult
type AnalysisRun struct {
	RunID          string    `json:"run_id" db:"run_id"`
	StartedAt      time.Time `json:"started_at" db:"started_at"`
	FinishedAt     time.Time `json:"finished_at" db:"finished_at"`
	RecordCount    int       `json:"record_count" db:"record_count"`
	SourceCount    int       `json:"source_count" db:"source_count"`
	SkippedSources int       `json:"skipped_sources" db:"skipped_sources"`
	WarningCount   int       `json:"warning_count" db:"warning_count"`
}
