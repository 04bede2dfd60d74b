package domain

// Signals is the normalized, source-annotated view of heterogeneous upstream
// intake data. Sources maps each populated field to the upstream path that
// won the probe for it.
type Signals struct {
	OccupancyType    string `json:"occupancyType,omitempty"`
	Profile          string `json:"profile,omitempty"`
	ProfileDeclared  bool   `json:"profileDeclared"`
	PrimaryGoal      string `json:"primaryGoal,omitempty"`
	HasSolar         bool   `json:"hasSolar"`
	HasBattery       bool   `json:"hasBattery"`
	HasEv            bool   `json:"hasEv"`
	BillBand         string `json:"billBand,omitempty"`
	TenantChangeSoon bool   `json:"tenantChangeSoon"`

	Sources  map[string]string `json:"sources"`
	Coverage string            `json:"coverage"`
}

// Coverage classification for a signal snapshot.
const (
	CoverageDeclared = "declared"
	CoverageObserved = "observed"
	CoverageUnknown  = "unknown"
)

// Canonical occupancy values.
const (
	OccupancyOwnerOccupied = "owner_occupied"
	OccupancyInvestment    = "investment"
	OccupancyTenant        = "tenant"
)

// Report profiles.
const (
	ProfileOwner    = "owner"
	ProfileInvestor = "investor"
	ProfileTenant   = "tenant"
)

// Report modules.
const (
	ModuleEnergy    = "energy"
	ModuleLifecycle = "lifecycle"
	ModuleRisk      = "risk"
)

// Primary goals with selection significance.
const (
	GoalEnergy     = "energy"
	GoalReduceBill = "reduce_bill"
	GoalRisk       = "risk"
	GoalSale       = "sale"
)

// SelectionOverrides are explicit caller-supplied selection inputs; any set
// field wins over derived values and marks the result source as "override".
type SelectionOverrides struct {
	Profile string         `json:"profile,omitempty"`
	Modules []string       `json:"modules,omitempty"`
	Weights map[string]int `json:"weights,omitempty"`
}

// IsEmpty reports whether no override was supplied.
func (o *SelectionOverrides) IsEmpty() bool {
	return o == nil || (o.Profile == "" && o.Modules == nil && len(o.Weights) == 0)
}

// Selection is the resolved report profile, module set and section weights.
type Selection struct {
	Profile string         `json:"profile"`
	Modules []string       `json:"modules"`
	Weights map[string]int `json:"weights"`
	Source  string         `json:"source"`
}

// Selection source values.
const (
	SelectionSourceOverride = "override"
	SelectionSourceSnapshot = "snapshot"
	SelectionSourceLegacy   = "legacy_fallback"
)
