package related

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRawBeatsJPEG(t *testing.T) {
	groups := Resolve([]string{
		"/dcim/IMG_001.JPG",
		"/dcim/IMG_001.CR2",
	})
	require.Len(t, groups, 1)
	assert.Equal(t, "/dcim/IMG_001.CR2", groups[0].Primary)
	assert.Len(t, groups[0].Members, 2)
}

func TestResolveVideoBeatsThumbnail(t *testing.T) {
	groups := Resolve([]string{
		"/clips/CLIP01.THM",
		"/clips/CLIP01.MP4",
	})
	require.Len(t, groups, 1)
	assert.Equal(t, "/clips/CLIP01.MP4", groups[0].Primary)
}

func TestResolveAVCHDTodMoi(t *testing.T) {
	groups := Resolve([]string{
		"/avchd/00001.MOI",
		"/avchd/00001.TOD",
	})
	require.Len(t, groups, 1)
	assert.Equal(t, "/avchd/00001.TOD", groups[0].Primary)
}

func TestResolveDocumentBeatsSidecar(t *testing.T) {
	groups := Resolve([]string{
		"/docs/report.pdf",
		"/docs/report.xmp",
	})
	require.Len(t, groups, 1)
	assert.Equal(t, "/docs/report.pdf", groups[0].Primary)
}

func TestResolveSingletonGroups(t *testing.T) {
	groups := Resolve([]string{
		"/a/only.txt",
	})
	require.Len(t, groups, 1)
	assert.Equal(t, "/a/only.txt", groups[0].Primary)
	assert.Len(t, groups[0].Members, 1)
}

func TestResolveDifferentDirectoriesNotGrouped(t *testing.T) {
	groups := Resolve([]string{
		"/a/IMG_001.JPG",
		"/b/IMG_001.CR2",
	})
	require.Len(t, groups, 2)
}

func TestResolveStableUnderInputOrder(t *testing.T) {
	a := Resolve([]string{"/dcim/IMG_001.CR2", "/dcim/IMG_001.JPG"})
	b := Resolve([]string{"/dcim/IMG_001.JPG", "/dcim/IMG_001.CR2"})
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Primary, b[0].Primary)
	assert.Equal(t, a[0].Members, b[0].Members)
}
