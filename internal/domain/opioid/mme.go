package opioid

import (
	"math"
	"strings"
)

type MMEFlag string

const (
	MMENone    MMEFlag = "none"
	MMECaution MMEFlag = "caution"
	MMEHigh    MMEFlag = "high"
)

// MMELimits are the daily totals at which a regimen is flagged.
type MMELimits struct {
	Caution float64 `json:"caution" yaml:"caution"`
	High    float64 `json:"high" yaml:"high"`
}

func DefaultMMELimits() MMELimits {
	return MMELimits{Caution: 50, High: 90}
}

func (l MMELimits) Flag(total float64) MMEFlag {
	switch {
	case total >= l.High:
		return MMEHigh
	case total >= l.Caution:
		return MMECaution
	default:
		return MMENone
	}
}

// Dose is one scheduled opioid. Amount is mg per administration, or mcg/hr
// for transdermal fentanyl.
type Dose struct {
	Name            string  `json:"name"`
	Amount          float64 `json:"amount"`
	FrequencyPerDay float64 `json:"frequency_per_day"`
	Route           string  `json:"route,omitempty"`
}

type DoseMME struct {
	Name      string  `json:"name"`
	DailyDose float64 `json:"daily_dose"`
	Factor    float64 `json:"factor"`
	MME       float64 `json:"mme"`
}

type MMEResult struct {
	Total       float64   `json:"total"`
	Flag        MMEFlag   `json:"flag"`
	Items       []DoseMME `json:"items"`
	Unconverted []string  `json:"unconverted"`
}

// Oral morphine conversion factors per mg, except fentanyl which is per mcg.
var conversionFactors = []struct {
	name   string
	factor float64
}{
	{"hydromorphone", 4},
	{"hydrocodone", 1},
	{"oxymorphone", 3},
	{"oxycodone", 1.5},
	{"codeine", 0.15},
	{"morphine", 1},
	{"tapentadol", 0.4},
	{"tramadol", 0.1},
	{"meperidine", 0.1},
}

const (
	fentanylPatchFactor  = 2.4
	fentanylBuccalFactor = 0.13
)

// methadoneFactor depends on the total daily dose.
func methadoneFactor(daily float64) float64 {
	switch {
	case daily <= 20:
		return 4
	case daily <= 40:
		return 8
	case daily <= 60:
		return 10
	default:
		return 12
	}
}

func conversionFactor(d Dose) (daily, factor float64, ok bool) {
	name := strings.ToLower(d.Name)
	freq := d.FrequencyPerDay
	if freq <= 0 {
		freq = 1
	}

	if strings.Contains(name, "fentanyl") {
		if strings.Contains(name, "patch") || strings.Contains(name, "transdermal") || strings.EqualFold(d.Route, "transdermal") {
			// A patch delivers continuously: Amount is already a rate.
			return d.Amount, fentanylPatchFactor, true
		}
		return d.Amount * freq, fentanylBuccalFactor, true
	}

	daily = d.Amount * freq
	if strings.Contains(name, "methadone") {
		return daily, methadoneFactor(daily), true
	}
	for _, cf := range conversionFactors {
		if strings.Contains(name, cf.name) {
			return daily, cf.factor, true
		}
	}
	return daily, 0, false
}

// CalculateMME totals daily morphine milligram equivalents. Doses without a
// known conversion factor are listed in Unconverted and excluded.
func CalculateMME(doses []Dose, limits MMELimits) MMEResult {
	res := MMEResult{Items: []DoseMME{}, Unconverted: []string{}}
	for _, d := range doses {
		daily, factor, ok := conversionFactor(d)
		if !ok {
			res.Unconverted = append(res.Unconverted, d.Name)
			continue
		}
		mme := round2(daily * factor)
		res.Items = append(res.Items, DoseMME{Name: d.Name, DailyDose: daily, Factor: factor, MME: mme})
		res.Total += mme
	}
	res.Total = round2(res.Total)
	res.Flag = limits.Flag(res.Total)
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
