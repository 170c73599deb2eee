/*
Package domain contains the core types shared by both sides of the relaykit bridge.

It describes the native control surface (parameters, their kinds, ranges and values) and
the messages that travel between the native side and the UI runtime. This package is kept
pure and free of I/O, transport and persistence concerns.

# Key Entities

  - ParameterID: Immutable key identifying one parameter on both sides of the bridge.
  - Kind: Closed set of parameter variants (Continuous, Boolean, Enumerated).
  - Value: Tagged union carrying a value of one Kind.
  - ParameterSpec / Layout: The static, ordered description of the control surface.
  - Origin: Tag identifying who originated a native parameter change.
  - Command: A UI-originated request (gesture framing or value change).
  - Snapshot: A saved set of parameter values (host state save/restore).
*/
package domain
