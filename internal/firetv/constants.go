package firetv

import "time"

// DefaultAPIKey is the fixed API key the Fire TV REST service expects
const DefaultAPIKey = "0987654321"

// DefaultPort is the port the Fire TV REST service listens on
const DefaultPort = 8080

// userAgent matches the header the stock Fire TV companion app sends
const userAgent = "okhttp/4.10.0"

// FireTVEndpoint represents an API endpoint path on the Fire TV REST service
type FireTVEndpoint string

const (
	PinDisplayEndpoint FireTVEndpoint = "/v1/FireTV/pin/display"
	PinVerifyEndpoint  FireTVEndpoint = "/v1/FireTV/pin/verify"
	NavigationEndpoint FireTVEndpoint = "/v1/FireTV"
	MediaEndpoint      FireTVEndpoint = "/v1/media"
	AppLaunchEndpoint  FireTVEndpoint = "/v1/FireTV/app"
)

// NavigationAction represents a navigation action accepted by the Fire TV API
type NavigationAction string

const (
	DPadUp    NavigationAction = "dpad_up"
	DPadDown  NavigationAction = "dpad_down"
	DPadLeft  NavigationAction = "dpad_left"
	DPadRight NavigationAction = "dpad_right"
	Select    NavigationAction = "select"
	Home      NavigationAction = "home"
	Back      NavigationAction = "back"
	Menu      NavigationAction = "menu"
)

// MediaAction represents a media transport action accepted by the Fire TV API
type MediaAction string

const (
	Play MediaAction = "play"
	Scan MediaAction = "scan"
)

// ScanDirection represents the direction of a media scan action
type ScanDirection string

const (
	ScanForward ScanDirection = "forward"
	ScanBack    ScanDirection = "back"
)

// Pairing and connection retry behavior. The Fire TV Cube can answer 200
// before the PIN is actually shown on screen, and its REST service needs a
// few seconds to wake after standby.
const (
	DefaultPinRetries        = 4
	DefaultConnectRetries    = 3
	DefaultRetryDelay        = 3 * time.Second
	defaultRequestTimeout    = 5 * time.Second
	pinRequestTimeout        = 15 * time.Second
	connectivityCheckTimeout = 12 * time.Second
)
