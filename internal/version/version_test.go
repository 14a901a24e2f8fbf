package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityConstantsAreSet(t *testing.T) {
	assert.NotEmpty(t, Product)
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Manufacturer)
}
