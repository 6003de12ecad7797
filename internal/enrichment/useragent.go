package enrichment

import (
	"strings"

	"github.com/mssola/user_agent"
)

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceBot     = "bot"
	DeviceCLI     = "cli"
	DeviceUnknown = "unknown"
)

type UAInfo struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
	IsBot          bool
}

// cliAgents are non-browser clients that talk to the auth API directly,
// including our own terminal client.
var cliAgents = []string{"Go-http-client", "curl/", "talentlens-tui/"}

func ParseUserAgent(uaString string) *UAInfo {
	if strings.TrimSpace(uaString) == "" {
		return &UAInfo{DeviceType: DeviceUnknown}
	}

	for _, prefix := range cliAgents {
		if strings.HasPrefix(uaString, prefix) {
			name, version, _ := strings.Cut(uaString, "/")
			return &UAInfo{
				Browser:        name,
				BrowserVersion: version,
				DeviceType:     DeviceCLI,
			}
		}
	}

	ua := user_agent.New(uaString)
	browser, version := ua.Browser()
	osInfo := ua.OSInfo()

	info := &UAInfo{
		Browser:        browser,
		BrowserVersion: version,
		OS:             osInfo.Name,
		OSVersion:      osInfo.Version,
		DeviceType:     DeviceDesktop,
		IsBot:          ua.Bot(),
	}

	switch {
	case info.IsBot:
		info.DeviceType = DeviceBot
	case ua.Mobile():
		info.DeviceType = DeviceMobile
	}

	return info
}
