package display

import (
	"fmt"
	"strings"

	"github.com/nerrad567/plantnode/internal/sensor"
)

// Render formats a snapshot one reading per line as "Name: value unit".
func Render(snap sensor.Snapshot) string {
	var b strings.Builder
	for _, r := range snap.Readings {
		line := fmt.Sprintf("%s: %s %s", r.Kind.Name(), r.Text(), r.Kind.Unit())
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// Banner formats the boot screen.
func Banner(address string, bootCount uint32) string {
	return fmt.Sprintf("Client IP: %s\nBoot count: %d\n", address, bootCount)
}
