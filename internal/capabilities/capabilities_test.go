package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildIncludesCoreTags(t *testing.T) {
	c := Build("Vibe@host", "")
	encoded := c.Encode()

	assert.Contains(t, encoded, "Firmware=")
	assert.Contains(t, encoded, "MaxSampleRate=192000")
	for _, tag := range []string{"Pcm", "Mp3", "Aac", "Alc", "Ogg", "Flc"} {
		assert.Contains(t, encoded, tag)
	}
	assert.Contains(t, encoded, "ClientName=Vibe@host")
	assert.NotContains(t, encoded, "SyncGroupId")
}

func TestBuildIncludesSyncGroupWhenKnown(t *testing.T) {
	c := Build("Vibe", "group-a")
	encoded := c.Encode()
	assert.Contains(t, encoded, "SyncGroupId=group-a")
}

func TestEncodeOmitsValueForBooleanFlags(t *testing.T) {
	c := Build("Vibe", "")
	for _, it := range c.Items {
		if it.Tag == "Pcm" {
			assert.Equal(t, "1", it.Value)
		}
	}
	encoded := c.Encode()
	assert.NotContains(t, encoded, "Pcm=1")
}
