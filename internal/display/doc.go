// Package display renders the node's status on a small text panel.
//
// The panel shows the boot banner (link address and boot count) once the
// link is up and the latest snapshot after every publish. It is blanked
// during teardown. Panel failures are logged and never affect the cycle.
package display
