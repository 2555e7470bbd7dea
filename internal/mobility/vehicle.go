// Package mobility polls nearby buses and derives arrival estimates.
package mobility

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	// RadiusMeters is the distance from campus considered "nearby".
	RadiusMeters = 1200
	// WindowSeconds is how far back GPS fixes are accepted.
	WindowSeconds = 300
	// MinMovingKmh is the speed below which a vehicle counts as stopped.
	MinMovingKmh = 2
	// MaxLines caps the per-line summary.
	MaxLines = 14
)

// Campus is the reference point distances are measured from.
var Campus = struct{ Lat, Lng float64 }{-22.892172, -43.3238892}

var lineColors = []string{
	"#2563EB", "#0EA5E9", "#10B981", "#F59E0B",
	"#EF4444", "#8B5CF6", "#EC4899", "#06B6D4",
}

// Vehicle is one GPS fix.
type Vehicle struct {
	Ordem     string  `json:"ordem"`
	Linha     string  `json:"linha"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DataHora  int64   `json:"datahora"`
	SpeedKmh  float64 `json:"velocidade"`
	DistM     float64 `json:"dist"`
}

// ETAMinutes is the estimated arrival in minutes; +Inf when stopped.
func (v Vehicle) ETAMinutes() float64 {
	return ETAMinutes(v.DistM, v.SpeedKmh)
}

// Coerce converts a loosely typed record. Missing or non-numeric numbers
// become 0 and missing strings become "".
func Coerce(raw map[string]any) Vehicle {
	return Vehicle{
		Ordem:     coerceString(raw["ordem"]),
		Linha:     coerceString(raw["linha"]),
		Latitude:  coerceNumber(raw["latitude"]),
		Longitude: coerceNumber(raw["longitude"]),
		DataHora:  int64(coerceNumber(raw["datahora"])),
		SpeedKmh:  coerceNumber(raw["velocidade"]),
		DistM:     coerceNumber(raw["dist"]),
	}
}

// CoerceAll converts records and drops those without coordinates or id.
func CoerceAll(raws []map[string]any) []Vehicle {
	out := make([]Vehicle, 0, len(raws))
	for _, r := range raws {
		v := Coerce(r)
		if v.Latitude == 0 || v.Longitude == 0 || v.Ordem == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == 0 {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		if !x {
			return ""
		}
		return "true"
	default:
		return fmt.Sprint(x)
	}
}

func coerceNumber(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		f, _ = x.Float64()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = p
	case bool:
		if x {
			f = 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ETAMinutes converts distance and speed into minutes.
func ETAMinutes(distM, kmh float64) float64 {
	if math.IsNaN(kmh) || math.IsInf(kmh, 0) || kmh < MinMovingKmh {
		return math.Inf(1)
	}
	mps := kmh * 1000 / 3600
	return distM / mps / 60
}

// FormatETA renders an estimate: "stopped", "< 1 min" or "N min".
func FormatETA(eta, kmh float64) string {
	if math.IsInf(eta, 0) || math.IsNaN(eta) {
		if kmh < MinMovingKmh {
			return "stopped"
		}
		return "—"
	}
	if eta < 0.5 {
		return "< 1 min"
	}
	return fmt.Sprintf("%d min", int(math.Round(eta)))
}

// FormatDistance renders meters as "N m" below 1 km and "N.N km" above.
func FormatDistance(m float64) string {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return "—"
	}
	if m < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(m)))
	}
	return fmt.Sprintf("%.1f km", m/1000)
}

// LineColor picks a stable color for a bus line.
func LineColor(linha string) string {
	if linha == "" {
		linha = "-"
	}
	var h int32
	for _, r := range linha {
		h = h*31 + int32(r)
	}
	idx := int64(h)
	if idx < 0 {
		idx = -idx
	}
	return lineColors[idx%int64(len(lineColors))]
}

// Nearby is a vehicle with its estimate.
type Nearby struct {
	Vehicle
	ETA float64
}

// LineSummary aggregates the vehicles of one line.
type LineSummary struct {
	Linha    string
	ETA      float64
	Vehicles int
}

// Snapshot is one processed poll.
type Snapshot struct {
	Vehicles []Nearby
	Lines    []LineSummary
}

// Summarize keeps vehicles within radius, orders them by ETA and groups them
// by line.
func Summarize(vehicles []Vehicle, radiusM float64) Snapshot {
	nearby := make([]Nearby, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Latitude == 0 || v.Longitude == 0 || v.DistM > radiusM {
			continue
		}
		nearby = append(nearby, Nearby{Vehicle: v, ETA: v.ETAMinutes()})
	}
	slices.SortStableFunc(nearby, func(a, b Nearby) int { return cmp.Compare(a.ETA, b.ETA) })

	byLine := make(map[string]int)
	var lines []LineSummary
	for _, v := range nearby {
		i, ok := byLine[v.Linha]
		if !ok {
			byLine[v.Linha] = len(lines)
			lines = append(lines, LineSummary{Linha: v.Linha, ETA: v.ETA, Vehicles: 1})
			continue
		}
		lines[i].ETA = math.Min(lines[i].ETA, v.ETA)
		lines[i].Vehicles++
	}
	slices.SortStableFunc(lines, func(a, b LineSummary) int { return cmp.Compare(a.ETA, b.ETA) })
	if len(lines) > MaxLines {
		lines = lines[:MaxLines]
	}
	return Snapshot{Vehicles: nearby, Lines: lines}
}
