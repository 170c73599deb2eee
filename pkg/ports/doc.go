/*
Package ports defines the driven ports (interfaces) of the relaykit bridge.

These interfaces decouple the synchronization core from the native control surface, the
UI transport and persistence, so the same relays and attachments can run against an
in-process parameter registry, a real host, or a test double.

# Key Interfaces

  - Parameter / ParameterRegistry: The native side (value get/set, change notification, gestures).
  - Dispatcher: Marshals work onto the single owner goroutine.
  - Inbox: Receives decoded UI commands and replays the relay state on (re)connect.
  - Transport: The UI-facing endpoint built from the sealed relay set.
  - UISink: Delivers fire-and-forget events to the UI, guarded by visibility.
  - TelemetrySource: Builds the periodic event payload.
  - SnapshotStore: Persists parameter snapshots (host state save/restore).
*/
package ports
