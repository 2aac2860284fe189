package sensor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/plantnode/internal/bus"
	"github.com/nerrad567/plantnode/internal/infrastructure/logging"
)

// fixedAnalog always returns the same value.
type fixedAnalog int

func (f fixedAnalog) ReadRaw(context.Context) (int, error) { return int(f), nil }

// scriptedAnalog returns values in order and fails on zero entries.
type scriptedAnalog struct {
	values []int
	calls  int
}

func (s *scriptedAnalog) ReadRaw(context.Context) (int, error) {
	v := s.values[s.calls%len(s.values)]
	s.calls++
	if v == 0 {
		return 0, ErrRead
	}
	return v, nil
}

type failingClimate struct {
	calls int
}

func (f *failingClimate) Measure(context.Context) (Climate, error) {
	f.calls++
	return Climate{}, ErrRead
}

func testProbes() Probes {
	return Probes{
		Climate:         SimulatedClimate{Climate: Climate{TemperatureC: 21, HumidityPct: 50}},
		Moisture:        fixedAnalog(1500),
		MoistureTrigger: SimulatedDigital{Level: true},
		WaterLevel:      fixedAnalog(3200),
		Battery:         fixedAnalog(1900),
	}
}

func newTestSampler(probes Probes, opts Options) *Sampler {
	if opts.Samples == 0 {
		opts.Samples = 8
	}
	return NewSampler(probes, opts, clockwork.NewFakeClock(), logging.Discard(), nil)
}

func keys(s Snapshot) []string {
	out := make([]string, 0, s.Len())
	for _, r := range s.Readings {
		out = append(out, r.Kind.Key())
	}
	return out
}

func TestTrimmedMean(t *testing.T) {
	tests := []struct {
		name    string
		samples []int
		want    int
		wantOK  bool
	}{
		{name: "empty", samples: nil, wantOK: false},
		{name: "one sample", samples: []int{5}, wantOK: false},
		{name: "two samples", samples: []int{1, 9}, wantOK: false},
		{name: "three samples keeps median", samples: []int{3, 1, 2}, want: 2, wantOK: true},
		{name: "outliers dropped", samples: []int{1, 2, 3, 100}, want: 2, wantOK: true},
		{name: "integer average", samples: []int{10, 1, 5, 5, 9}, want: 6, wantOK: true},
		{name: "duplicates of min and max drop once", samples: []int{1, 1, 4, 4}, want: 2, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TrimmedMean(tt.samples)
			if ok != tt.wantOK {
				t.Fatalf("TrimmedMean(%v) ok = %v, want %v", tt.samples, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("TrimmedMean(%v) = %d, want %d", tt.samples, got, tt.want)
			}
		})
	}
}

func TestTrimmedMean_DoesNotModifyInput(t *testing.T) {
	in := []int{9, 1, 5}
	TrimmedMean(in)
	if !slices.Equal(in, []int{9, 1, 5}) {
		t.Errorf("TrimmedMean modified its input: %v", in)
	}
}

func TestClassifyMoisture(t *testing.T) {
	tests := []struct {
		mv   int
		want MoistureClass
	}{
		{mv: 500, want: Wet},
		{mv: 800, want: Wet},
		{mv: 900, want: Wet},
		{mv: 1500, want: Moist},
		{mv: 2000, want: Dry},
		{mv: 2150, want: Dry},
		{mv: 4000, want: Dry},
	}
	for _, tt := range tests {
		if got := ClassifyMoisture(tt.mv); got != tt.want {
			t.Errorf("ClassifyMoisture(%d) = %v, want %v", tt.mv, got, tt.want)
		}
	}
}

func TestClampMoisture(t *testing.T) {
	if got := ClampMoisture(100); got != MoistureMin {
		t.Errorf("ClampMoisture(100) = %d, want %d", got, MoistureMin)
	}
	if got := ClampMoisture(3000); got != MoistureMax {
		t.Errorf("ClampMoisture(3000) = %d, want %d", got, MoistureMax)
	}
	if got := ClampMoisture(1234); got != 1234 {
		t.Errorf("ClampMoisture(1234) = %d, want 1234", got)
	}
}

func TestClassifyWaterLevel(t *testing.T) {
	if got := ClassifyWaterLevel(2999); got != Empty {
		t.Errorf("ClassifyWaterLevel(2999) = %v, want Empty", got)
	}
	if got := ClassifyWaterLevel(3000); got != Full {
		t.Errorf("ClassifyWaterLevel(3000) = %v, want Full", got)
	}
}

func TestReading_Text(t *testing.T) {
	tests := []struct {
		reading Reading
		want    string
	}{
		{Reading{Kind: AirTemperature, Value: 23}, "23"},
		{Reading{Kind: SoilMoisture, Value: int(Moist)}, "Moist"},
		{Reading{Kind: WaterLevel, Value: int(Full)}, "Full"},
		{Reading{Kind: WaterLevel, Value: int(Empty)}, "Empty"},
		{Reading{Kind: PumpTrigger, Value: 1}, "true"},
		{Reading{Kind: PumpTrigger, Value: 0}, "false"},
		{Reading{Kind: BatteryVoltage, Value: 3800}, "3800"},
	}
	for _, tt := range tests {
		if got := tt.reading.Text(); got != tt.want {
			t.Errorf("Reading{%v, %d}.Text() = %q, want %q", tt.reading.Kind, tt.reading.Value, got, tt.want)
		}
	}
}

func TestKinds(t *testing.T) {
	want := []string{"temperature", "humidity", "moistureraw", "moisture", "pumptrigger", "waterlevel", "batteryvoltage"}
	var got []string
	for _, k := range Kinds() {
		got = append(got, k.Key())
	}
	if !slices.Equal(got, want) {
		t.Errorf("Kinds() keys = %v, want %v", got, want)
	}
	if len(Kinds()) != MaxReadings {
		t.Errorf("len(Kinds()) = %d, want %d", len(Kinds()), MaxReadings)
	}

	k, ok := KindByKey("waterlevel")
	if !ok || k != WaterLevel {
		t.Errorf("KindByKey(waterlevel) = %v, %v", k, ok)
	}
	if _, ok := KindByKey("pressure"); ok {
		t.Error("KindByKey(pressure) ok = true, want false")
	}
}

func TestSnapshot_AddBounded(t *testing.T) {
	var s Snapshot
	for i := range MaxReadings {
		if !s.Add(Reading{Kind: Kind(i)}) {
			t.Fatalf("Add() #%d = false", i)
		}
	}
	if s.Add(Reading{Kind: AirTemperature}) {
		t.Error("Add() on a full snapshot = true, want false")
	}
	if s.Len() != MaxReadings {
		t.Errorf("Len() = %d, want %d", s.Len(), MaxReadings)
	}
}

func TestSampler_SampleAllProbes(t *testing.T) {
	s := newTestSampler(testProbes(), Options{})
	snap := s.Sample(context.Background())

	want := []string{"temperature", "humidity", "moistureraw", "moisture", "pumptrigger", "waterlevel", "batteryvoltage"}
	if got := keys(snap); !slices.Equal(got, want) {
		t.Fatalf("Sample() keys = %v, want %v", got, want)
	}

	if r, _ := snap.Get(AirTemperature); r.Value != 21 {
		t.Errorf("temperature = %d, want 21", r.Value)
	}
	if r, _ := snap.Get(SoilMoisture); MoistureClass(r.Value) != Moist {
		t.Errorf("moisture = %v, want Moist", MoistureClass(r.Value))
	}
	if r, _ := snap.Get(WaterLevel); WaterLevelClass(r.Value) != Full {
		t.Errorf("waterlevel = %v, want Full", WaterLevelClass(r.Value))
	}
	if r, _ := snap.Get(PumpTrigger); !r.Bool() {
		t.Error("pumptrigger = false, want true")
	}
	if r, _ := snap.Get(BatteryVoltage); r.Value != 3800 {
		t.Errorf("batteryvoltage = %d, want 3800 (doubled)", r.Value)
	}
}

func TestSampler_USBChargingOmitsBattery(t *testing.T) {
	probes := testProbes()
	probes.Battery = fixedAnalog(2100)

	snap := newTestSampler(probes, Options{}).Sample(context.Background())
	if _, ok := snap.Get(BatteryVoltage); ok {
		t.Error("battery reading present while charging on USB")
	}
	if snap.Len() != MaxReadings-1 {
		t.Errorf("Len() = %d, want %d", snap.Len(), MaxReadings-1)
	}
}

func TestSampler_ClimateRetries(t *testing.T) {
	probes := testProbes()
	climate := &failingClimate{}
	probes.Climate = climate

	snap := newTestSampler(probes, Options{ClimateRetries: 3}).Sample(context.Background())

	if climate.calls != 3 {
		t.Errorf("Measure() called %d times, want 3", climate.calls)
	}
	if _, ok := snap.Get(AirTemperature); ok {
		t.Error("temperature present after every attempt failed")
	}
	if _, ok := snap.Get(WaterLevel); !ok {
		t.Error("a failed climate probe must not drop other readings")
	}
}

func TestSampler_ClimateOutOfRange(t *testing.T) {
	probes := testProbes()
	probes.Climate = SimulatedClimate{Climate: Climate{TemperatureC: 21, HumidityPct: 140}}

	snap := newTestSampler(probes, Options{ClimateRetries: 2}).Sample(context.Background())
	if _, ok := snap.Get(AirHumidity); ok {
		t.Error("humidity 140% should be rejected")
	}
}

func TestSampler_PartialAnalogReads(t *testing.T) {
	probes := testProbes()
	// 4 of 8 reads fail, the remaining 4 are trimmed to 3100, 3200
	probes.WaterLevel = &scriptedAnalog{values: []int{3000, 0, 3100, 0, 3200, 0, 3300, 0}}

	snap := newTestSampler(probes, Options{Samples: 8}).Sample(context.Background())
	r, ok := snap.Get(WaterLevel)
	if !ok {
		t.Fatal("waterlevel missing with four good reads")
	}
	if WaterLevelClass(r.Value) != Full {
		t.Errorf("waterlevel = %v, want Full", WaterLevelClass(r.Value))
	}
}

func TestSampler_AnalogTooFewReads(t *testing.T) {
	probes := testProbes()
	probes.Moisture = &scriptedAnalog{values: []int{1500, 0, 0, 0}}

	snap := newTestSampler(probes, Options{Samples: 4}).Sample(context.Background())
	for _, k := range []Kind{SoilMoistureRaw, SoilMoisture, PumpTrigger} {
		if _, ok := snap.Get(k); ok {
			t.Errorf("%s present with a single good moisture read", k)
		}
	}
	if snap.Len() != 4 {
		t.Errorf("Len() = %d, want 4", snap.Len())
	}
}

func TestSampler_NilProbesSkipped(t *testing.T) {
	snap := newTestSampler(Probes{Battery: fixedAnalog(1800)}, Options{}).Sample(context.Background())
	if got := keys(snap); !slices.Equal(got, []string{"batteryvoltage"}) {
		t.Errorf("Sample() keys = %v, want [batteryvoltage]", got)
	}
}

func TestSampler_RunProducesSixSnapshots(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSampler(testProbes(), Options{Samples: 3, Interval: 5 * time.Second}, clock, logging.Discard(), nil)
	out := bus.NewChannel[Snapshot](16)

	until := clock.Now().Add(30 * time.Second)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), out, until) }()

	for range 6 {
		clock.BlockUntil(1)
		clock.Advance(5 * time.Second)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop at the end of the window")
	}

	if out.Len() != 6 {
		t.Errorf("snapshots produced = %d, want 6", out.Len())
	}
}

func TestSampler_RunStopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSampler(testProbes(), Options{Samples: 3, Interval: time.Minute}, clock, logging.Discard(), nil)
	out := bus.NewChannel[Snapshot](4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out, clock.Now().Add(time.Hour)) }()

	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if out.Len() != 1 {
		t.Errorf("snapshots produced = %d, want 1", out.Len())
	}
}

func TestSampler_WarmupUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	probes := Probes{WaterLevel: fixedAnalog(3500)}
	s := NewSampler(probes, Options{Samples: 3, Warmup: 10 * time.Millisecond}, clock, logging.Discard(), nil)

	got := make(chan Snapshot, 1)
	go func() { got <- s.Sample(context.Background()) }()

	for range 3 {
		clock.BlockUntil(1)
		clock.Advance(10 * time.Millisecond)
	}

	select {
	case snap := <-got:
		if _, ok := snap.Get(WaterLevel); !ok {
			t.Error("waterlevel missing")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Sample() did not finish after three warmups")
	}
}

func TestIIOProbes(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		return path
	}

	raw := write("in_voltage3_raw", "1234\n")
	scale := write("in_voltage3_scale", "0.5\n")
	gpio := write("value", "1\n")
	temp := write("in_temp_input", "23500\n")
	hum := write("in_humidityrelative_input", "41000\n")
	garbage := write("garbage", "abc\n")

	ctx := context.Background()

	if v, err := (IIOChannel{RawPath: raw}).ReadRaw(ctx); err != nil || v != 1234 {
		t.Errorf("IIOChannel.ReadRaw() = %d, %v, want 1234", v, err)
	}
	if v, err := (IIOChannel{RawPath: raw, ScalePath: scale}).ReadRaw(ctx); err != nil || v != 617 {
		t.Errorf("scaled IIOChannel.ReadRaw() = %d, %v, want 617", v, err)
	}
	if v, err := (GPIOInput{ValuePath: gpio}).Read(ctx); err != nil || !v {
		t.Errorf("GPIOInput.Read() = %v, %v, want true", v, err)
	}

	c, err := IIOClimate{TemperaturePath: temp, HumidityPath: hum}.Measure(ctx)
	if err != nil {
		t.Fatalf("IIOClimate.Measure() error = %v", err)
	}
	if c.TemperatureC != 23 || c.HumidityPct != 41 {
		t.Errorf("IIOClimate.Measure() = %+v, want 23°C 41%%", c)
	}

	if _, err := (IIOChannel{RawPath: filepath.Join(dir, "missing")}).ReadRaw(ctx); !errors.Is(err, ErrRead) {
		t.Errorf("missing file error = %v, want ErrRead", err)
	}
	if _, err := (IIOChannel{RawPath: garbage}).ReadRaw(ctx); !errors.Is(err, ErrRead) {
		t.Errorf("garbage file error = %v, want ErrRead", err)
	}
}
