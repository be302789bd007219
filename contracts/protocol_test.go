package contracts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransport(t *testing.T) {
	t.Run("accepts canonical names", func(t *testing.T) {
		for _, name := range []string{"TCP", "UDP"} {
			tr, err := ParseTransport(name)
			require.NoError(t, err)
			assert.Equal(t, name, tr.String())
		}
	})

	t.Run("is case-sensitive", func(t *testing.T) {
		_, err := ParseTransport("tcp")
		assert.Error(t, err)
	})

	t.Run("rejects other transports", func(t *testing.T) {
		_, err := ParseTransport("SCTP")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "SCTP")
	})
}

func TestNewProtocolDefinition(t *testing.T) {
	t.Run("normalizes the name", func(t *testing.T) {
		def, err := NewProtocolDefinition(" metrics ", TransportTCP, 4317)
		require.NoError(t, err)

		assert.Equal(t, "METRICS", def.Name)
		assert.Equal(t, TransportTCP, def.Transport)
		assert.Equal(t, 4317, def.DefaultPort)
	})

	t.Run("accepts the port boundaries", func(t *testing.T) {
		_, err := NewProtocolDefinition("a", TransportUDP, 0)
		assert.NoError(t, err)
		_, err = NewProtocolDefinition("a", TransportUDP, 65535)
		assert.NoError(t, err)
	})

	t.Run("rejects out of range ports", func(t *testing.T) {
		for _, port := range []int{-1, 65536} {
			_, err := NewProtocolDefinition("a", TransportTCP, port)
			assert.True(t, errors.Is(err, ErrSchemaDefinition), "port %d", port)
		}
	})

	t.Run("rejects empty names", func(t *testing.T) {
		_, err := NewProtocolDefinition("  ", TransportTCP, 80)
		assert.ErrorIs(t, err, ErrSchemaDefinition)
	})

	t.Run("rejects unknown transports", func(t *testing.T) {
		_, err := NewProtocolDefinition("a", Transport("SCTP"), 80)
		var defErr *SchemaDefinitionError
		require.ErrorAs(t, err, &defErr)
		assert.Equal(t, "transport", defErr.Field)
	})
}

func TestProtocolDefinitionString(t *testing.T) {
	def := ProtocolDefinition{Name: "DNS", Transport: TransportUDP, DefaultPort: 53}
	assert.Equal(t, "DNS/UDP:53", def.String())
}
