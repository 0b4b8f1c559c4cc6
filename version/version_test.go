package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBuildInfo(t *testing.T) {
	base := Info{Version: "0.0.0", Branch: "unknown", Revision: "unknown", BuiltAt: "unknown"}
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2025-01-02T03:04:05Z"},
		},
	}

	got := fromBuildInfo(base, bi)
	assert.Equal(t, "v1.4.0", got.Version)
	assert.Equal(t, "0123456", got.Revision)
	assert.Equal(t, "2025-01-02T03:04:05Z", got.BuiltAt)
	assert.Equal(t, "unknown", got.Branch)
}

func TestFromBuildInfoKeepsLdflags(t *testing.T) {
	base := Info{Version: "1.2.3", Revision: "abc", BuiltAt: "today"}
	bi := &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffff"}},
	}

	got := fromBuildInfo(base, bi)
	assert.Equal(t, "1.2.3", got.Version)
	assert.Equal(t, "abc", got.Revision)
	assert.Equal(t, "today", got.BuiltAt)
}

func TestInfoFormats(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.String(), "Go Version: "+runtime.Version())

	raw, err := info.JSON()
	require.NoError(t, err)
	var decoded Info
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, info, decoded)
}
