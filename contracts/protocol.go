package contracts

import (
	"fmt"
	"strings"
)

// Transport is the transport-layer protocol a network protocol is bound to
type Transport string

const (
	TransportTCP Transport = "TCP"
	TransportUDP Transport = "UDP"
)

// Port range accepted for default ports and port fields
const (
	MinPort = 0
	MaxPort = 65535
)

// Transports returns the accepted transports in canonical order
func Transports() []Transport {
	return []Transport{TransportTCP, TransportUDP}
}

// ParseTransport converts a canonical transport name. Matching is case-sensitive.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportTCP, TransportUDP:
		return Transport(s), nil
	default:
		return "", fmt.Errorf("transport must be one of TCP, UDP, got %q", s)
	}
}

// IsValid reports whether t is a canonical transport
func (t Transport) IsValid() bool {
	return t == TransportTCP || t == TransportUDP
}

func (t Transport) String() string {
	return string(t)
}

// ValidPort reports whether port is a valid 16-bit port number
func ValidPort(port int64) bool {
	return port >= MinPort && port <= MaxPort
}

// NormalizeName returns the canonical form of a protocol name
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// ProtocolDefinition describes a protocol's transport binding and default port
type ProtocolDefinition struct {
	Name        string    `json:"name"`
	Transport   Transport `json:"transport"`
	DefaultPort int       `json:"defaultPort"`
}

// NewProtocolDefinition creates a validated definition with a normalized name
func NewProtocolDefinition(name string, transport Transport, port int) (ProtocolDefinition, error) {
	def := ProtocolDefinition{
		Name:        NormalizeName(name),
		Transport:   transport,
		DefaultPort: port,
	}
	if err := def.Validate(); err != nil {
		return ProtocolDefinition{}, err
	}
	return def, nil
}

// Validate checks the definition invariants
func (d ProtocolDefinition) Validate() error {
	if d.Name == "" {
		return &SchemaDefinitionError{Field: "protocol", Reason: "protocol name cannot be empty"}
	}
	if d.Name != NormalizeName(d.Name) {
		return &SchemaDefinitionError{Protocol: d.Name, Field: "protocol", Reason: "protocol name must be uppercase"}
	}
	if !d.Transport.IsValid() {
		return &SchemaDefinitionError{
			Protocol: d.Name,
			Field:    "transport",
			Reason:   fmt.Sprintf("transport must be one of TCP, UDP, got %q", string(d.Transport)),
		}
	}
	if !ValidPort(int64(d.DefaultPort)) {
		return &SchemaDefinitionError{
			Protocol: d.Name,
			Field:    "port",
			Reason:   fmt.Sprintf("port %d is outside [%d, %d]", d.DefaultPort, MinPort, MaxPort),
		}
	}
	return nil
}

func (d ProtocolDefinition) String() string {
	return fmt.Sprintf("%s/%s:%d", d.Name, d.Transport, d.DefaultPort)
}
