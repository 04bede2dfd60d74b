// Package selection normalizes heterogeneous upstream intake data into
// canonical snapshot signals and resolves the report profile, module set,
// and section weights.
package selection

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/openinspect/kestrel/internal/domain"
)

// Candidate upstream paths per canonical signal, probed in order; the first
// non-empty value wins and its path is recorded for provenance. The
// snapshot_intake > lead > job precedence silently decides which upstream
// system's data wins, so changes here need data-owner sign-off.
var candidatePaths = map[string][]string{
	"occupancyType": {
		"snapshot_intake.occupancyType",
		"lead.occupancyType",
		"job.occupancyType",
		"answers.property.occupancy",
	},
	"profile": {
		"snapshot_intake.reportProfile",
		"lead.profile",
		"job.reportProfile",
	},
	"primaryGoal": {
		"snapshot_intake.primaryGoal",
		"lead.primaryGoal",
		"job.goal",
	},
	"hasSolar": {
		"inspection.observed.solar",
		"snapshot_intake.hasSolar",
		"lead.hasSolar",
	},
	"hasBattery": {
		"inspection.observed.battery",
		"snapshot_intake.hasBattery",
		"lead.hasBattery",
	},
	"hasEv": {
		"inspection.observed.evCharger",
		"snapshot_intake.hasEv",
		"lead.hasEv",
	},
	"billBand": {
		"snapshot_intake.billBand",
		"lead.billBand",
	},
	"tenantChangeSoon": {
		"snapshot_intake.tenantChangeSoon",
		"lead.tenantChangeSoon",
	},
	"assets": {
		"snapshot_intake.assets",
		"lead.assets",
	},
}

// Ordered fuzzy vocabulary tables. Upstream systems disagree on spelling;
// first matching pattern wins.
type vocabEntry struct {
	pattern   *regexp.Regexp
	canonical string
}

var occupancyVocab = []vocabEntry{
	{regexp.MustCompile(`(?i)owner[\s_-]*occup|^owner$|owner[\s_-]*occupier`), domain.OccupancyOwnerOccupied},
	{regexp.MustCompile(`(?i)invest|landlord|rental`), domain.OccupancyInvestment},
	{regexp.MustCompile(`(?i)^tenant|renter|renting`), domain.OccupancyTenant},
}

var profileVocab = []vocabEntry{
	{regexp.MustCompile(`(?i)^owner`), domain.ProfileOwner},
	{regexp.MustCompile(`(?i)invest|landlord`), domain.ProfileInvestor},
	{regexp.MustCompile(`(?i)^tenant`), domain.ProfileTenant},
}

var goalVocab = []vocabEntry{
	{regexp.MustCompile(`(?i)bill|cost|saving`), domain.GoalReduceBill},
	{regexp.MustCompile(`(?i)energy|efficien`), domain.GoalEnergy},
	{regexp.MustCompile(`(?i)risk|safety|complian`), domain.GoalRisk},
	{regexp.MustCompile(`(?i)sale|sell`), domain.GoalSale},
}

// observedPathPattern classifies coverage: a winning path from a measured/
// inspection source makes the whole snapshot "observed".
var observedPathPattern = regexp.MustCompile(`(?i)observed|measured|inspection`)

var boolTrueVocab = map[string]bool{
	"true": true, "yes": true, "1": true, "on": true, "present": true, "installed": true,
}

var boolFalseVocab = map[string]bool{
	"false": true, "no": true, "0": true, "off": true, "none": true,
}

// ExtractSignals probes the raw upstream map for each canonical signal and
// normalizes what it finds. The result records, per signal, the upstream
// path that produced it.
func ExtractSignals(raw map[string]any) domain.Signals {
	sig := domain.Signals{
		Sources:  make(map[string]string),
		Coverage: domain.CoverageUnknown,
	}

	if v, path := probe(raw, "occupancyType"); v != nil {
		if norm := normalize(stringOf(v), occupancyVocab); norm != "" {
			sig.OccupancyType = norm
			sig.Sources["occupancyType"] = path
		}
	}
	if v, path := probe(raw, "profile"); v != nil {
		if norm := normalize(stringOf(v), profileVocab); norm != "" {
			sig.Profile = norm
			sig.ProfileDeclared = true
			sig.Sources["profile"] = path
		}
	}
	if v, path := probe(raw, "primaryGoal"); v != nil {
		if norm := normalize(stringOf(v), goalVocab); norm != "" {
			sig.PrimaryGoal = norm
			sig.Sources["primaryGoal"] = path
		}
	}
	if v, path := probe(raw, "billBand"); v != nil {
		if s := strings.TrimSpace(stringOf(v)); s != "" {
			sig.BillBand = s
			sig.Sources["billBand"] = path
		}
	}

	sig.HasSolar = probeBool(raw, "hasSolar", &sig)
	sig.HasBattery = probeBool(raw, "hasBattery", &sig)
	sig.HasEv = probeBool(raw, "hasEv", &sig)
	sig.TenantChangeSoon = probeBool(raw, "tenantChangeSoon", &sig)

	// Asset lists can also carry the flags.
	if v, path := probe(raw, "assets"); v != nil {
		for _, token := range tokens(v) {
			switch strings.ToLower(token) {
			case "solar", "pv":
				if !sig.HasSolar {
					sig.HasSolar = true
					sig.Sources["hasSolar"] = path
				}
			case "battery":
				if !sig.HasBattery {
					sig.HasBattery = true
					sig.Sources["hasBattery"] = path
				}
			case "ev", "ev_charger", "evcharger":
				if !sig.HasEv {
					sig.HasEv = true
					sig.Sources["hasEv"] = path
				}
			}
		}
	}

	if len(sig.Sources) > 0 {
		sig.Coverage = domain.CoverageDeclared
		for _, path := range sig.Sources {
			if observedPathPattern.MatchString(path) {
				sig.Coverage = domain.CoverageObserved
				break
			}
		}
	}

	return sig
}

// probe walks the candidate paths for a field and returns the first
// non-empty value with its winning path.
func probe(raw map[string]any, field string) (any, string) {
	for _, path := range candidatePaths[field] {
		v := domain.ExtractAnswer(raw, path)
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return v, path
	}
	return nil, ""
}

func probeBool(raw map[string]any, field string, sig *domain.Signals) bool {
	v, path := probe(raw, field)
	if v == nil {
		return false
	}
	b, ok := parseBool(v)
	if !ok {
		return false
	}
	sig.Sources[field] = path
	return b
}

// parseBool accepts the fixed boolean vocabulary; unrecognized tokens are
// not booleans at all.
func parseBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	}
	s := strings.ToLower(strings.TrimSpace(stringOf(v)))
	if boolTrueVocab[s] {
		return true, true
	}
	if boolFalseVocab[s] {
		return false, true
	}
	return false, false
}

// tokens splits an array-like value: native lists pass through, strings
// split on the usual delimiters. Tokens are de-duplicated case-sensitively
// by raw token.
func tokens(v any) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	switch t := v.(type) {
	case []any:
		for _, m := range t {
			add(stringOf(m))
		}
	case []string:
		for _, m := range t {
			add(m)
		}
	case string:
		for _, p := range strings.FieldsFunc(t, func(r rune) bool {
			return r == ',' || r == '\n' || r == ';' || r == '|'
		}) {
			add(p)
		}
	}
	return out
}

func normalize(s string, vocab []vocabEntry) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, entry := range vocab {
		if entry.pattern.MatchString(s) {
			return entry.canonical
		}
	}
	return ""
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
