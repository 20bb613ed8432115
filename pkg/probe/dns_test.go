package probe

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMXNames(t *testing.T) {
	records := []*net.MX{{Host: "mx1.example.com."}, {Host: "mx2.example.com."}}
	assert.Equal(t, []string{"mx1.example.com.", "mx2.example.com."}, mxNames(records))
}

func TestMXNames_Empty(t *testing.T) {
	assert.Empty(t, mxNames(nil))
}

func TestNewDNSProbe_UsesDefaultResolver(t *testing.T) {
	p := NewDNSProbe()
	assert.Same(t, net.DefaultResolver, p.Resolver)
}
