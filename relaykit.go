// Package relaykit bridges a native control surface and an embedded web UI.
//
// The library lives in pkg/: parameters (pkg/params) are bound to UI relays
// (pkg/relay) by attachments (pkg/attachment), all owned by an editor loop
// (pkg/editor). The HTTP adapter (pkg/adapters/http) serves the UI documents
// and carries relay traffic over SSE, plain POSTs and a WebSocket.
package relaykit

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the release of this module.
var Version = strings.TrimSpace(version)
