package firetv

import "strings"

// App describes a launchable Fire TV application
type App struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Package  string `json:"package"`
	Category string `json:"category"`
	Icon     string `json:"icon"`
}

// Catalog of well-known Fire TV apps with verified package names. Anything
// not listed here can still be launched with a custom_app:<package> command.
var appCatalog = []App{
	{ID: "netflix", Name: "Netflix", Package: "com.netflix.ninja", Category: "streaming", Icon: "uc:netflix"},
	{ID: "prime_video", Name: "Prime Video", Package: "com.amazon.avod", Category: "streaming", Icon: "uc:amazon"},
	{ID: "disney_plus", Name: "Disney+", Package: "com.disney.disneyplus", Category: "streaming", Icon: "uc:disney"},
	{ID: "youtube", Name: "YouTube", Package: "com.amazon.firetv.youtube", Category: "streaming", Icon: "uc:youtube"},
	{ID: "hulu", Name: "Hulu", Package: "com.hulu.plus", Category: "streaming", Icon: "uc:hulu"},
	{ID: "hbo_max", Name: "HBO Max", Package: "com.wbd.stream", Category: "streaming", Icon: "uc:hbo"},
	{ID: "apple_tv_plus", Name: "Apple TV+", Package: "com.apple.atve.amazon.appletv", Category: "streaming", Icon: "uc:appletv"},
	{ID: "spotify", Name: "Spotify", Package: "com.spotify.tv.android", Category: "music", Icon: "uc:spotify"},
	{ID: "plex", Name: "Plex", Package: "com.plexapp.android", Category: "utility", Icon: "uc:plex"},
	{ID: "kodi", Name: "Kodi", Package: "org.xbmc.kodi", Category: "utility", Icon: "uc:kodi"},
	{ID: "vlc", Name: "VLC", Package: "org.videolan.vlc", Category: "utility", Icon: "uc:vlc"},
	{ID: "silk_browser", Name: "Silk Browser", Package: "com.amazon.cloud9.silkbrowser", Category: "utility", Icon: "uc:browser"},
	{ID: "settings", Name: "Settings", Package: "com.amazon.tv.settings", Category: "system", Icon: "uc:settings"},
}

// Apps returns the full app catalog in stable order
func Apps() []App {
	out := make([]App, len(appCatalog))
	copy(out, appCatalog)
	return out
}

// AppByID returns the catalog entry for an app id
func AppByID(id string) (App, bool) {
	for _, app := range appCatalog {
		if app.ID == id {
			return app, true
		}
	}
	return App{}, false
}

// AppIDs returns the ids of all catalog apps in stable order
func AppIDs() []string {
	ids := make([]string, 0, len(appCatalog))
	for _, app := range appCatalog {
		ids = append(ids, app.ID)
	}
	return ids
}

// AppsByCategory returns catalog apps matching any of the given categories
func AppsByCategory(categories ...string) []App {
	var out []App
	for _, app := range appCatalog {
		for _, cat := range categories {
			if app.Category == cat {
				out = append(out, app)
				break
			}
		}
	}
	return out
}

// LaunchCommand derives the simple-command identifier for an app,
// e.g. "Disney+" -> "LAUNCH_DISNEY_PLUS"
func LaunchCommand(app App) string {
	name := strings.ToUpper(app.Name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "+", "_PLUS")
	return "LAUNCH_" + name
}

// AppByLaunchCommand resolves a LAUNCH_* simple command back to its app
func AppByLaunchCommand(command string) (App, bool) {
	for _, app := range appCatalog {
		if LaunchCommand(app) == command {
			return app, true
		}
	}
	return App{}, false
}

// ValidPackageName checks that a package name follows Android conventions:
// at least two dot-separated parts, each non-empty and limited to
// alphanumerics and underscores.
func ValidPackageName(pkg string) bool {
	if pkg == "" || !strings.Contains(pkg, ".") {
		return false
	}

	parts := strings.Split(pkg, ".")
	if len(parts) < 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, r := range part {
			if !isAlnum(r) && r != '_' {
				return false
			}
		}
	}

	return true
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
