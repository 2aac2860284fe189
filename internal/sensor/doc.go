// Package sensor samples the node's probes and turns raw reads into
// classified readings.
//
// One sampling pass reads, in order: air temperature and humidity, soil
// moisture (raw millivolts, class and the comparator's digital trigger),
// water level and battery voltage. Each analog channel is read several
// times and reduced with a trimmed mean. A probe that fails is left out of
// the snapshot; a pass never fails as a whole.
//
// Probes are small interfaces with Linux IIO/GPIO sysfs implementations
// and simulated ones for development boards without the hardware.
package sensor
