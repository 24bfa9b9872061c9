package source

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// cpuSensorCandidates are vendor label substrings identifying a
// CPU-representative temperature sensor, checked in priority order:
// AMD k10temp driver, Intel coretemp driver, anything self-describing as
// a CPU sensor, AMD Ryzen Tctl. Exact label sets vary by hardware and
// driver version; this list is a best-effort heuristic.
var cpuSensorCandidates = []string{"k10temp", "coretemp", "cpu", "tctl"}

// SensorReading is one hardware sensor label with its temperature.
type SensorReading struct {
	Label   string
	Celsius float64
}

// Thermal enumerates hardware temperature sensors and picks the
// CPU-representative one.
type Thermal struct {
	probe func(ctx context.Context) ([]SensorReading, error)
}

func NewThermal() *Thermal {
	return &Thermal{probe: readHostSensors}
}

func readHostSensors(ctx context.Context) ([]SensorReading, error) {
	stats, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	readings := make([]SensorReading, 0, len(stats))
	for _, stat := range stats {
		readings = append(readings, SensorReading{Label: stat.SensorKey, Celsius: stat.Temperature})
	}
	return readings, nil
}

// CPUTemperature returns the temperature of the first sensor whose label
// matches a candidate substring (case-insensitive, first match in
// enumeration order wins), or nil when no sensor matches or enumeration
// fails. Enumeration order is platform-dependent.
func (t *Thermal) CPUTemperature(ctx context.Context) *float64 {
	readings, err := t.probe(ctx)
	if err != nil {
		return nil
	}
	return SelectCPUSensor(readings)
}

// SelectCPUSensor applies the candidate-substring heuristic to a sensor
// list.
func SelectCPUSensor(readings []SensorReading) *float64 {
	for _, reading := range readings {
		label := strings.ToLower(reading.Label)
		for _, candidate := range cpuSensorCandidates {
			if strings.Contains(label, candidate) {
				celsius := reading.Celsius
				return &celsius
			}
		}
	}
	return nil
}
