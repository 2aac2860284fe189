// Package power drives the node's wake, operate and sleep sequence.
//
// A Controller runs one cycle per wake:
//
//	Booting → Connecting → Operating → ShuttingDown → Sleeping
//
// Booting loads the retained block and counts the wake. Connecting brings
// the link up within the connect timeout; if it does not come up the cycle
// skips straight to sleep so the duty cycle is kept. The first connected
// cycle after a power loss announces discovery. Operating runs the sampler,
// the broker manager, the pump actuator and the network session in one
// errgroup for the operate window. ShuttingDown raises the shutdown event
// and waits, bounded, for the session to take the link down. Sleeping hands
// over to a Sleeper armed with the timer and the external edge trigger.
//
// An error from the network session or the broker manager ends the cycle
// with an error. Device loops cycles and passes such errors to a Resetter,
// which in production re-executes the binary so the node always restarts
// from the boot path.
package power
