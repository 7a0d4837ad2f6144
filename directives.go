package sgdive

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// drvFunctions return index sets; drvPredicates return booleans.
var drvFunctions = []string{
	"bad_temperature",
	"interp_temperature",
	"bad_conductivity",
	"interp_conductivity",
	"bad_salinity",
	"interp_salinity",
}

var drvPredicates = []string{
	"skip_profile",
	"comment", // ignored but good for commenting on a dive w/o other directives present
	"reviewed",
	"interp_gc_temperatures",
	"correct_thermal_inertia_effects",
	"interp_suspect_thermal_inertia_salinities",
	"detect_conductivity_anomalies",
	"bad_gps1",
	"bad_gps2",
	"bad_gps3",
	"detect_vbd_bleed",
	"detect_slow_apogee_flow",
}

const noPrefix = "no_"

// ProfileDirectives holds the parsed per-dive edit directives and the
// named-accessor registry the range specifiers evaluate against. The
// registry is populated by the processing core before any directive is
// evaluated; names outside the registry warn and evaluate to zero.
type ProfileDirectives struct {
	DiveNum   int
	functions [][]string // tokenized function lines w/o comments
	lines     []string   // the valid lines with comments for this dive
	comments  []string   // comments preceding an applicable function

	// registry of named index vectors (data_points, depth, time, ...)
	registry map[string][]float64
	// registry of named scalars usable as range arguments
	scalars map[string]float64
	// default values for predicates not mentioned in the directives
	predicateDefaults map[string]bool

	Suggestions []string
}

// NewProfileDirectives creates an empty directive set for one dive.
func NewProfileDirectives(diveNum int) *ProfileDirectives {
	return &ProfileDirectives{
		DiveNum:           diveNum,
		registry:          map[string][]float64{},
		scalars:           map[string]float64{},
		predicateDefaults: map[string]bool{},
	}
}

func (d *ProfileDirectives) String() string {
	return fmt.Sprintf("<%d edit functions for dive %d>", len(d.functions), d.DiveNum)
}

// Register binds a named index vector for use in range specifiers.
func (d *ProfileDirectives) Register(name string, values []float64) {
	d.registry[name] = values
}

// RegisterScalar binds a named scalar for use as a range argument.
func (d *ProfileDirectives) RegisterScalar(name string, value float64) {
	d.scalars[name] = value
}

// SetPredicateDefault fixes the value a predicate evaluates to when the
// directives neither assert nor negate it.
func (d *ProfileDirectives) SetPredicateDefault(name string, value bool) {
	d.predicateDefaults[name] = value
}

// Parse tokenizes one directive line, retaining it only if it applies to
// this dive. Parsing is total: unknown tokens warn and are skipped.
func (d *ProfileDirectives) Parse(line string) {
	line = strings.TrimRight(line, " \t\r\n")
	line = strings.ReplaceAll(line, "\t", " ")
	statement := line
	if i := strings.Index(line, "%"); i >= 0 {
		statement = line[:i]
		if strings.TrimSpace(statement) == "" {
			d.comments = append(d.comments, line)
			return
		}
	}
	if strings.TrimSpace(statement) == "" {
		return
	}
	values := lo.Filter(strings.Split(statement, " "),
		func(v string, _ int) bool { return v != "" })
	if len(values) < 2 {
		log.Printf("Incomplete directive '%s'", line)
		return
	}
	diveSpec := values[0]
	if diveSpec != "*" {
		var startNum, endNum int
		var err error
		if specStrs := strings.SplitN(diveSpec, ":", 2); len(specStrs) == 2 {
			startNum, err = strconv.Atoi(specStrs[0])
			if err == nil {
				endNum, err = strconv.Atoi(specStrs[1])
			}
		} else {
			startNum, err = strconv.Atoi(diveSpec)
			endNum = startNum
		}
		if err != nil {
			warn := fmt.Sprintf("Unknown dive specifier '%s' in '%s'", diveSpec, line)
			log.Println(warn)
			d.comments = nil // reset
			return           // the line is skipped
		} else if d.DiveNum < startNum || d.DiveNum > endNum {
			d.comments = nil // reset
			return           // this line does not apply
		}
	}

	functionTag := values[1]
	f := strings.TrimPrefix(functionTag, noPrefix)
	if !lo.Contains(drvFunctions, f) && !lo.Contains(drvPredicates, f) {
		log.Printf("Unknown directive '%s' in '%s'", functionTag, line)
	}

	function := []string{diveSpec, functionTag}
	function = append(function, values[2:]...)
	d.functions = append(d.functions, function)
	d.lines = append(d.lines, d.comments...)
	d.comments = nil
	d.lines = append(d.lines, line)
}

// ParseString parses a full directives text, one directive per line.
func (d *ProfileDirectives) ParseString(s string) {
	d.comments = nil
	for _, line := range strings.Split(s, "\n") {
		d.Parse(line)
	}
}

// DumpString renders the retained comments and directives.
func (d *ProfileDirectives) DumpString() string {
	var b strings.Builder
	for _, line := range d.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// EvalFunction evaluates a function directive, returning the resulting
// index set (asserted lines unioned, no_ lines subtracted).
func (d *ProfileDirectives) EvalFunction(functionTag string) []int {
	f := strings.TrimPrefix(functionTag, noPrefix)
	if lo.Contains(drvFunctions, f) {
		return d.evalSet(f)
	}
	log.Printf("Unknown directive function '%s'", functionTag)
	return nil
}

// EvalPredicate evaluates a predicate directive. An asserted tag wins
// over a negated one on a first-come basis; absent both, the registered
// default (or absentValue) applies.
func (d *ProfileDirectives) EvalPredicate(functionTag string, absentValue bool) bool {
	if v, ok := d.predicateDefaults[functionTag]; ok {
		absentValue = v
	}
	noTag := noPrefix + functionTag
	predicate := -1
	for _, function := range d.functions {
		switch function[1] {
		case functionTag:
			if predicate == -1 {
				predicate = 1
			}
		case noTag:
			if predicate == -1 {
				predicate = 0
			}
		}
	}
	switch predicate {
	case 1:
		return true
	case 0:
		return false
	}
	return absentValue
}

func (d *ProfileDirectives) evalSet(functionTag string) []int {
	noTag := noPrefix + functionTag
	var indices []int
	for _, function := range d.functions {
		if function[1] == functionTag {
			indices = lo.Union(indices, d.evalRange(function))
		}
	}
	for _, function := range d.functions {
		if function[1] == noTag {
			indices = lo.Without(indices, d.evalRange(function)...)
		}
	}
	sort.Ints(indices)
	return indices
}

// evalArg resolves a range argument: a registered scalar name or a
// literal number. Unknown arguments warn and evaluate to zero.
func (d *ProfileDirectives) evalArg(arg string) float64 {
	if v, ok := d.scalars[arg]; ok {
		return v
	}
	if v, err := strconv.ParseFloat(arg, 64); err == nil {
		return v
	}
	log.Printf("Unknown directive argument '%s' ignored", arg)
	return 0
}

func (d *ProfileDirectives) evalRange(statement []string) []int {
	args := statement[2:]
	if len(args) == 0 {
		return []int{0}
	}
	values, ok := d.registry[args[0]]
	if ok {
		args = args[1:]
	} else {
		log.Printf("Missing a location in '%s'; assuming 'data_points'",
			strings.Join(statement, " "))
		values = d.registry["data_points"]
	}
	lValues := len(values)
	var indices []int
	if len(args) == 0 {
		// values should themselves be indices
		for _, v := range values {
			indices = append(indices, int(v))
		}
		return sortedUniq(indices)
	}
	switch arg := args[0]; arg {
	case "between", "in_between":
		if len(args) < 3 {
			log.Printf("Missing bounds in '%s'", strings.Join(statement, " "))
			return nil
		}
		first := d.evalArg(args[1])
		last := d.evalArg(args[2])
		if first > last {
			first, last = last, first
		}
		if arg == "in_between" {
			first, last = first+1, last-1
		}
		for i := 0; i < lValues; i++ {
			if values[i] >= first && values[i] <= last {
				indices = append(indices, i)
			}
		}
	case "below", "less_than", "before":
		first := d.evalArg(args[1])
		for i := 0; i < lValues; i++ {
			if values[i] < first {
				indices = append(indices, i)
			}
		}
	case "above", "greater_than", "after":
		first := d.evalArg(args[1])
		for i := 0; i < lValues; i++ {
			if values[i] > first {
				indices = append(indices, i)
			}
		}
	default:
		if arg == "at" { // equal
			args = args[1:]
		} else {
			log.Printf("Missing 'at' in '%s'", strings.Join(statement, " "))
		}
		for _, a := range args {
			farg, err := strconv.ParseFloat(a, 64)
			if err != nil {
				log.Printf("%s not a number in '%s'", a, strings.Join(statement, " "))
				continue
			}
			for i := 0; i < lValues; i++ {
				if values[i] == farg {
					indices = append(indices, i)
				}
			}
		}
	}
	return sortedUniq(indices)
}

// Suggest emits a suggestion line for the pilot, suppressed once the
// dive has been marked reviewed.
func (d *ProfileDirectives) Suggest(suggestion string) {
	if d == nil {
		return
	}
	if d.EvalPredicate("reviewed", false) {
		return
	}
	if d.DiveNum != 0 {
		suggestion = fmt.Sprintf("%d %s", d.DiveNum, suggestion)
	}
	log.Printf("SUGGESTION: %s", suggestion)
	d.Suggestions = append(d.Suggestions, suggestion)
}

// Mentions reports whether any directive line asserts or negates the
// given function.
func (d *ProfileDirectives) Mentions(functionTag string) bool {
	noTag := noPrefix + functionTag
	for _, function := range d.functions {
		if function[1] == functionTag || function[1] == noTag {
			return true
		}
	}
	return false
}

// ManualQc evaluates a manual directive against the current QC vector:
// points already tagged qc that the evaluated set does not cover (for
// example those a no_ line removes) are reset to GOOD, and points in the
// set are tagged qc. The final index set is bound into the registry under assertion so
// later directives can reference it (e.g. `bad_salinity salin_QC_BAD`
// keeps the automatic marks). A function the directives never mention
// leaves the vector untouched.
func ManualQc(d *ProfileDirectives, fn, assertion string, qc QcFlag, qcV []QcFlag, dataType string, sink *QcLog) []int {
	var oIndices []int
	for i, q := range qcV {
		if q == qc {
			oIndices = append(oIndices, i)
		}
	}
	d.Register(assertion, lo.Map(oIndices, func(i int, _ int) float64 { return float64(i) }))
	if !d.Mentions(fn) {
		return oIndices
	}
	indices := d.EvalFunction(fn)
	if reset := lo.Without(oIndices, indices...); len(reset) > 0 {
		// tagged points the directives do not cover go back to GOOD
		AssertQc(QcGood, qcV, reset, dataType+" QC reset manually", sink)
	}
	if set := lo.Without(indices, oIndices...); len(set) > 0 {
		AssertQc(qc, qcV, set, dataType+" QC set manually", sink)
	}
	d.Register(assertion, lo.Map(indices, func(i int, _ int) float64 { return float64(i) }))
	return indices
}

func sortedUniq(indices []int) []int {
	out := lo.Uniq(indices)
	sort.Ints(out)
	return out
}
