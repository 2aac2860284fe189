package sensor

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// IIOChannel reads an industrial-I/O ADC channel from sysfs, for example
// /sys/bus/iio/devices/iio:device0/in_voltage3_raw.
//
// When ScalePath is set the raw count is multiplied by the scale
// (in_voltageN_scale is in millivolts per count).
type IIOChannel struct {
	RawPath   string
	ScalePath string
}

// ReadRaw implements AnalogChannel.
func (c IIOChannel) ReadRaw(_ context.Context) (int, error) {
	raw, err := readIntFile(c.RawPath)
	if err != nil {
		return 0, err
	}
	if c.ScalePath == "" {
		return raw, nil
	}

	scale, err := readFloatFile(c.ScalePath)
	if err != nil {
		return 0, err
	}
	return int(math.Round(float64(raw) * scale)), nil
}

// GPIOInput reads a sysfs GPIO value file ("0" or "1").
type GPIOInput struct {
	ValuePath string
}

// Read implements DigitalInput.
func (g GPIOInput) Read(_ context.Context) (bool, error) {
	v, err := readIntFile(g.ValuePath)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// IIOClimate reads the Linux dht11 IIO driver. Both attributes are in
// milli-units and a read fails with EIO when the sensor misses a frame.
type IIOClimate struct {
	TemperaturePath string
	HumidityPath    string
}

// Measure implements ClimateProbe.
func (c IIOClimate) Measure(_ context.Context) (Climate, error) {
	milliC, err := readIntFile(c.TemperaturePath)
	if err != nil {
		return Climate{}, err
	}
	milliPct, err := readIntFile(c.HumidityPath)
	if err != nil {
		return Climate{}, err
	}
	return Climate{
		TemperatureC: milliC / 1000,
		HumidityPct:  milliPct / 1000,
	}, nil
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: parsing %s: %w", ErrRead, path, err)
	}
	return v, nil
}

func readFloatFile(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing %s: %w", ErrRead, path, err)
	}
	return v, nil
}
