// Package network brings the node's link up for an operate phase and
// tears it down again before sleep.
//
// Provider is the link-layer contract. InterfaceProvider implements it on
// Linux by running an optional up command and then polling a network
// interface until it is up with an IPv4 address. Addressing itself
// (wpa_supplicant, NetworkManager, systemd-networkd) is outside this package.
// A provider with a down command must also have an up command, or the
// link stays down after the first sleep.
//
// Session is the operate-phase task that owns the link: it disconnects and
// acknowledges when the shutdown event is set, and escalates ErrLinkLost if
// the link drops and one bounded reconnect fails.
package network
