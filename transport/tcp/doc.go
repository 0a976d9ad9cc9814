// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp exposes TCP connections as cancellable channel contexts for
// request/response pipelines.
//
// Each connection is one channel context pair (request and its mirrored
// response) keyed by a session id of the form
// "localAddr:localPort-remoteAddr:remotePort". Message contexts are derived
// from a channel with Create or Fetch and share its socket without owning
// it. A channel disconnects exactly once, on whichever comes first of peer
// close, transport error, explicit Close, pipeline completion or endpoint
// shutdown: the registry entry is removed, the token fires with reason
// "disconnect", and after Config.GraceDelay the socket is destroyed.
package tcp
