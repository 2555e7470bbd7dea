package mobility

import (
	"math"
	"testing"
)

func TestCoerce(t *testing.T) {
	v := Coerce(map[string]any{
		"ordem":      "B31001",
		"linha":      float64(383),
		"latitude":   "-22.89",
		"longitude":  float64(-43.32),
		"datahora":   "1704190830000",
		"velocidade": "abc",
		"dist":       nil,
	})
	if v.Ordem != "B31001" || v.Linha != "383" {
		t.Errorf("strings = %q/%q", v.Ordem, v.Linha)
	}
	if v.Latitude != -22.89 || v.Longitude != -43.32 || v.DataHora != 1704190830000 {
		t.Errorf("numbers = %+v", v)
	}
	if v.SpeedKmh != 0 || v.DistM != 0 {
		t.Errorf("invalid numbers should be 0: %+v", v)
	}
}

func TestCoerceAllDropsIncomplete(t *testing.T) {
	raws := []map[string]any{
		{"ordem": "A", "latitude": -22.0, "longitude": -43.0},
		{"ordem": "", "latitude": -22.0, "longitude": -43.0},
		{"ordem": "B", "latitude": 0.0, "longitude": -43.0},
		{"ordem": "C", "latitude": -22.0},
	}
	got := CoerceAll(raws)
	if len(got) != 1 || got[0].Ordem != "A" {
		t.Errorf("CoerceAll = %+v", got)
	}
}

func TestETAMinutes(t *testing.T) {
	if got := ETAMinutes(600, 36); math.Abs(got-1) > 1e-9 {
		t.Errorf("ETA(600m, 36km/h) = %v, want 1", got)
	}
	if !math.IsInf(ETAMinutes(100, 1.9), 1) {
		t.Error("below 2 km/h should be +Inf")
	}
	if !math.IsInf(ETAMinutes(100, math.NaN()), 1) {
		t.Error("NaN speed should be +Inf")
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		eta, kmh float64
		want     string
	}{
		{math.Inf(1), 0, "stopped"},
		{math.Inf(1), 30, "—"},
		{0.49, 30, "< 1 min"},
		{0.5, 30, "1 min"},
		{2.5, 30, "3 min"},
		{12.2, 30, "12 min"},
	}
	for _, tt := range tests {
		if got := FormatETA(tt.eta, tt.kmh); got != tt.want {
			t.Errorf("FormatETA(%v, %v) = %q, want %q", tt.eta, tt.kmh, got, tt.want)
		}
	}
}

func TestFormatDistance(t *testing.T) {
	tests := map[float64]string{
		0:      "0 m",
		999.4:  "999 m",
		1000:   "1.0 km",
		1260:   "1.3 km",
		12_345: "12.3 km",
	}
	for in, want := range tests {
		if got := FormatDistance(in); got != want {
			t.Errorf("FormatDistance(%v) = %q, want %q", in, got, want)
		}
	}
	if got := FormatDistance(math.NaN()); got != "—" {
		t.Errorf("FormatDistance(NaN) = %q", got)
	}
}

func TestLineColorStable(t *testing.T) {
	if LineColor("383") != LineColor("383") {
		t.Error("LineColor not deterministic")
	}
	if LineColor("") != LineColor("-") {
		t.Error("blank line should use the \"-\" color")
	}
}

func TestSummarize(t *testing.T) {
	vs := []Vehicle{
		{Ordem: "1", Linha: "383", Latitude: -22, Longitude: -43, DistM: 900, SpeedKmh: 36},
		{Ordem: "2", Linha: "383", Latitude: -22, Longitude: -43, DistM: 300, SpeedKmh: 36},
		{Ordem: "3", Linha: "790", Latitude: -22, Longitude: -43, DistM: 100, SpeedKmh: 0},
		{Ordem: "4", Linha: "100", Latitude: -22, Longitude: -43, DistM: 2000, SpeedKmh: 50},
		{Ordem: "5", Linha: "634", Latitude: -22, Longitude: -43, DistM: 120, SpeedKmh: 36},
	}
	snap := Summarize(vs, RadiusMeters)

	if len(snap.Vehicles) != 4 {
		t.Fatalf("vehicles = %d, want 4 (one out of radius)", len(snap.Vehicles))
	}
	order := ""
	for _, v := range snap.Vehicles {
		order += v.Ordem
	}
	if order != "5213" {
		t.Errorf("order = %s, want 5213 (stopped last)", order)
	}

	if len(snap.Lines) != 3 {
		t.Fatalf("lines = %+v", snap.Lines)
	}
	if snap.Lines[0].Linha != "634" || snap.Lines[1].Linha != "383" || snap.Lines[2].Linha != "790" {
		t.Errorf("line order = %+v", snap.Lines)
	}
	if snap.Lines[1].Vehicles != 2 || math.Abs(snap.Lines[1].ETA-0.5) > 1e-9 {
		t.Errorf("383 summary = %+v", snap.Lines[1])
	}
}
