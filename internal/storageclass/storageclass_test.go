package storageclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNetwork(t *testing.T) {
	assert.Equal(t, Network, Classify("smb://nas.local/share/photo.jpg"))
	assert.Equal(t, Network, Classify(`\\nas\share\photo.jpg`))
}

func TestClassifyCamera(t *testing.T) {
	assert.Equal(t, Camera, Classify("/Volumes/NO_NAME/DCIM/100CANON/IMG_0001.JPG"))
	assert.Equal(t, Camera, Classify(`E:\DCIM\100CANON\IMG_0001.JPG`))
}

func TestClassifyLocalDefault(t *testing.T) {
	assert.Equal(t, Local, Classify("/home/user/Pictures/photo.jpg"))
}

func TestProfileForTableValues(t *testing.T) {
	camera := ProfileFor(Camera)
	assert.Equal(t, 2, camera.HashConcurrency)
	assert.Equal(t, 2, camera.CopyConcurrency)
	assert.Equal(t, 256*1024, camera.BlockSize)

	network := ProfileFor(Network)
	assert.Equal(t, 1, network.HashConcurrency)
	assert.Equal(t, 1, network.CopyConcurrency)
	assert.Equal(t, 1024*1024, network.BlockSize)

	local := ProfileFor(Local)
	assert.GreaterOrEqual(t, local.HashConcurrency, 1)
	assert.Equal(t, 0, int(local.InterOpDelay))
}
