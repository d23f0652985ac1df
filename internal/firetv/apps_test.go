package firetv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/firetv"
)

func TestLaunchCommand(t *testing.T) {
	t.Run("upper-cases and replaces spaces", func(t *testing.T) {
		app, found := firetv.AppByID("prime_video")
		require.True(t, found)

		assert.Equal(t, "LAUNCH_PRIME_VIDEO", firetv.LaunchCommand(app))
	})

	t.Run("plus sign becomes _PLUS", func(t *testing.T) {
		app, found := firetv.AppByID("disney_plus")
		require.True(t, found)

		assert.Equal(t, "LAUNCH_DISNEY_PLUS", firetv.LaunchCommand(app))
	})

	t.Run("apple tv plus combines both rules", func(t *testing.T) {
		app, found := firetv.AppByID("apple_tv_plus")
		require.True(t, found)

		assert.Equal(t, "LAUNCH_APPLE_TV_PLUS", firetv.LaunchCommand(app))
	})
}

func TestAppByLaunchCommand(t *testing.T) {
	t.Run("round-trips every catalog app", func(t *testing.T) {
		for _, app := range firetv.Apps() {
			resolved, found := firetv.AppByLaunchCommand(firetv.LaunchCommand(app))
			require.True(t, found, "command for %s", app.ID)
			assert.Equal(t, app.ID, resolved.ID)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		_, found := firetv.AppByLaunchCommand("LAUNCH_NOT_A_REAL_APP")
		assert.False(t, found)
	})
}

func TestAppsByCategory(t *testing.T) {
	t.Run("streaming apps only", func(t *testing.T) {
		apps := firetv.AppsByCategory("streaming")

		require.NotEmpty(t, apps)
		for _, app := range apps {
			assert.Equal(t, "streaming", app.Category)
		}
	})

	t.Run("multiple categories", func(t *testing.T) {
		apps := firetv.AppsByCategory("utility", "system")

		require.NotEmpty(t, apps)
		for _, app := range apps {
			assert.Contains(t, []string{"utility", "system"}, app.Category)
		}
	})

	t.Run("unknown category is empty", func(t *testing.T) {
		assert.Empty(t, firetv.AppsByCategory("games"))
	})
}

func TestValidPackageName(t *testing.T) {
	valid := []string{
		"com.netflix.ninja",
		"org.xbmc.kodi",
		"com.amazon.tv.settings",
		"a.b",
		"com.example.app_2",
	}
	for _, pkg := range valid {
		assert.True(t, firetv.ValidPackageName(pkg), pkg)
	}

	invalid := []string{
		"",
		"netflix",
		".com.netflix",
		"com..netflix",
		"com.netflix.",
		"com.net flix",
		"com.netflix;rm",
	}
	for _, pkg := range invalid {
		assert.False(t, firetv.ValidPackageName(pkg), pkg)
	}
}
