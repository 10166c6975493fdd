package deps

// SystemDependency is one row of the full dependency report.
type SystemDependency struct {
	Name           string  `json:"name"`
	Installed      bool    `json:"installed"`
	Version        *string `json:"version"`
	InstallCommand *string `json:"install_command"`
	InstallURL     *string `json:"install_url"`
}

// InstallationStatus is the full report shown before recording is allowed.
type InstallationStatus struct {
	Dependencies  []SystemDependency `json:"dependencies"`
	ReadyToRecord bool               `json:"ready_to_record"`
	ProjectPath   string             `json:"project_path"`
}

// DependencyInfo is the reduced per-tool answer used for polling.
type DependencyInfo struct {
	Installed bool    `json:"installed"`
	Version   *string `json:"version"`
}

// DependencyStatus groups DependencyInfo for the four required tools.
type DependencyStatus struct {
	NodeJS   DependencyInfo `json:"nodejs"`
	Pnpm     DependencyInfo `json:"pnpm"`
	FFmpeg   DependencyInfo `json:"ffmpeg"`
	Browsers DependencyInfo `json:"browsers"`
}

// Display names and guidance shown to the user.
const (
	NameNodeJS   = "Node.js"
	NamePnpm     = "pnpm"
	NameFFmpeg   = "FFmpeg"
	NameBrowsers = "Playwright Browsers"

	URLNodeJS   = "https://nodejs.org/"
	URLPnpm     = "https://pnpm.io/installation"
	URLFFmpeg   = "https://ffmpeg.org/download.html"
	URLBrowsers = "https://playwright.dev/docs/intro"

	BrowsersInstallCommand = "pnpm exec playwright install"
)

func ptr(s string) *string { return &s }
