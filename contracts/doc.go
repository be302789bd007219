// Package contracts provides the core protocol types and error kinds shared by
// the protoreg packages.
//
// This package defines the contracts every other package builds on:
//   - ProtocolDefinition: name, transport binding and default port of a protocol
//   - Transport: the transport-layer binding (TCP or UDP)
//   - Registration errors: duplicate, unknown, unresolved, cyclic and
//     malformed schema definitions
//
// Protocol names are case-insensitive on input and stored uppercase.
package contracts
