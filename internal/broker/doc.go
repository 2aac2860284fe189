// Package broker keeps the node's MQTT session alive for one operate phase.
//
// Manager.Run is an outer reconnect loop around a single session:
//
//  1. Dial the broker (transport and authenticated handshake)
//  2. Subscribe to the pump command topic
//  3. Publish every snapshot from the sampler, dispatch every inbound
//     command, and restart from step 1 on any protocol error
//
// There is no retry ceiling; the loop ends only when its context does,
// which is the end of the operate window. Protocol errors never escape Run.
//
// Manager.Announce publishes the retained Home Assistant discovery
// documents. The power controller calls it once per power session.
package broker
