package indicators

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if got := SMA(values, 3); got != 4 {
		t.Fatalf("SMA=%v, expected 4", got)
	}
	if got := SMA(values, 10); got != 0 {
		t.Fatalf("SMA with short window=%v, expected 0", got)
	}
}

func TestRSIBounds(t *testing.T) {
	rising := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	if got := RSI(rising, 5); got != 100 {
		t.Fatalf("RSI rising=%v, expected 100", got)
	}
	falling := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	if got := RSI(falling, 5); got != 0 {
		t.Fatalf("RSI falling=%v, expected 0", got)
	}
	if got := RSI([]float64{1, 2}, 5); got != 50 {
		t.Fatalf("RSI short window=%v, expected neutral 50", got)
	}
}

func TestMomentumPct(t *testing.T) {
	values := []float64{100, 102, 104, 110}
	if got := MomentumPct(values, 3); math.Abs(got-10) > 1e-9 {
		t.Fatalf("momentum=%v, expected 10", got)
	}
	if got := MomentumPct(values, 10); got != 0 {
		t.Fatalf("momentum short=%v", got)
	}
}

func TestSpikeRatio(t *testing.T) {
	// Ten observations around 100, then a 300 print: ratio 3.
	values := make([]float64, 0, 11)
	for i := 0; i < 10; i++ {
		values = append(values, 100)
	}
	values = append(values, 300)
	if got := SpikeRatio(values, 10); math.Abs(got-3) > 1e-9 {
		t.Fatalf("spike=%v, expected 3", got)
	}
}

func TestEngineWindows(t *testing.T) {
	e := NewEngine(3, 5, 3, 10)
	var vals map[string]float64
	for i := 1; i <= 20; i++ {
		vals = e.Update("TKN", float64(i), 100)
	}
	if vals["samples"] != 10 {
		t.Fatalf("samples=%v, expected bounded window 10", vals["samples"])
	}
	// Last three prices are 18,19,20.
	if vals["sma_short"] != 19 {
		t.Fatalf("sma_short=%v", vals["sma_short"])
	}

	e.Reset("TKN")
	vals = e.Update("TKN", 1, 1)
	if vals["samples"] != 1 {
		t.Fatalf("samples after reset=%v", vals["samples"])
	}
}
