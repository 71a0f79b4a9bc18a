// Package playerstate decodes per-frame PlayerData payloads and
// implements the camera-range visibility predicate used to cull
// neighbours out of a participant's outbound frame.
package playerstate
