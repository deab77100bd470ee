// Package model defines the JSON-RPC boundary types served by rpcserver.
//
// Results are carried as raw JSON exactly as the verification engine produced
// them. These structs are the only types intended for direct JSON
// serialization by consumers.
package model
