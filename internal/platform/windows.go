package platform

import (
	"strings"

	"github.com/spf13/afero"

	"github.com/loykin/flowcap/internal/env"
)

type windows struct{}

func (windows) Name() string          { return OSWindows }
func (windows) ListSeparator() string { return ";" }
func (windows) IsWindows() bool       { return true }

func (windows) Join(dir, name string) string {
	return strings.TrimRight(dir, `\/`) + `\` + name
}

func (windows) ShellCommand(script string) (string, []string) {
	return "cmd", []string{"/C", script}
}

func (windows) LocateScript(command string) string { return "where " + command }

func (windows) ProbeScript(command string, args []string) string {
	return joinCommand(command, args)
}

func (windows) WellKnownPaths(command string, e *env.Env, _ afero.Fs) []string {
	paths := []string{
		`C:\Program Files\nodejs\` + command + ".exe",
		`C:\Program Files (x86)\nodejs\` + command + ".exe",
		`C:\Windows\System32\` + command + ".exe",
		`C:\Windows\` + command + ".exe",
	}
	appData, hasAppData := e.Lookup("APPDATA")
	if hasAppData {
		paths = append(paths,
			appData+`\npm\`+command+".cmd",
			appData+`\npm\`+command+".exe",
		)
	}
	if profile, ok := e.Lookup("USERPROFILE"); ok {
		paths = append(paths,
			profile+`\AppData\Roaming\npm\`+command+".cmd",
			profile+`\AppData\Roaming\npm\`+command+".exe",
		)
	}
	switch command {
	case "ffmpeg":
		paths = append(paths,
			`C:\Program Files\FFmpeg\bin\ffmpeg.exe`,
			`C:\Program Files (x86)\FFmpeg\bin\ffmpeg.exe`,
			`C:\ffmpeg\bin\ffmpeg.exe`,
		)
		if pd, ok := e.Lookup("ProgramData"); ok {
			paths = append(paths, pd+`\chocolatey\bin\ffmpeg.exe`)
		}
	case "pnpm":
		if hasAppData {
			paths = append(paths, appData+`\npm\pnpm.cmd`)
		}
	}
	return paths
}

func (windows) ExtraToolPaths() []string { return nil }

func (windows) PnpmInstallCommand() string { return "npm install -g pnpm" }

func (windows) FFmpegInstallCommand() (string, bool) { return "choco install ffmpeg", true }

func (windows) BrowserCacheDir(e *env.Env) string {
	if v, ok := e.Lookup("LOCALAPPDATA"); ok {
		return v + `\ms-playwright`
	}
	if v, ok := e.Lookup("USERPROFILE"); ok {
		return v + `\AppData\Local\ms-playwright`
	}
	return e.Get("HOME") + `\ms-playwright`
}

func (windows) OpenFolderCommand(path string) (string, []string) {
	return "explorer", []string{path}
}
