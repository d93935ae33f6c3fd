// Package cdp renders previews in Chrome over the DevTools protocol.
package cdp

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ChromeProcess represents a launched Chrome instance.
type ChromeProcess struct {
	Cmd         *exec.Cmd
	Port        string
	UserDataDir string
}

// launchArgs returns the command line for a preview browser.
func launchArgs(port, userDataDir string, headless bool) []string {
	args := []string{
		"--remote-debugging-port=" + port,
		"--user-data-dir=" + userDataDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-features=TranslateUI",
		"--disable-background-networking",
		"--disable-extensions",
		"--disable-sync",
		"--mute-audio",
	}
	if headless {
		args = append(args, "--headless=new", "--hide-scrollbars")
	}
	return append(args, "about:blank")
}

// LaunchChrome starts a Chrome instance with remote debugging enabled.
func LaunchChrome(port string, headless bool) (*ChromeProcess, error) {
	chromePath := findChrome()
	if chromePath == "" {
		return nil, errors.New("chrome executable not found")
	}

	userDataDir, err := os.MkdirTemp("", "neon_playground_chrome_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	cmd := exec.Command(chromePath, launchArgs(port, userDataDir, headless)...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &ChromeProcess{
		Cmd:         cmd,
		Port:        port,
		UserDataDir: userDataDir,
	}, nil
}

// Stop terminates the Chrome process and removes its profile.
func (cp *ChromeProcess) Stop() error {
	if cp.Cmd != nil && cp.Cmd.Process != nil {
		if err := cp.Cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill chrome: %w", err)
		}
		_ = cp.Cmd.Wait()
	}

	if cp.UserDataDir != "" {
		_ = os.RemoveAll(cp.UserDataDir)
	}

	return nil
}

// PID returns the process ID of the Chrome instance.
func (cp *ChromeProcess) PID() int {
	if cp.Cmd != nil && cp.Cmd.Process != nil {
		return cp.Cmd.Process.Pid
	}
	return 0
}

// chromeCandidates lists the usual install locations for the current OS.
func chromeCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			filepath.Join(os.Getenv("HOME"), "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"),
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("PROGRAMFILES"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("PROGRAMFILES(X86)"), "Google", "Chrome", "Application", "chrome.exe"),
		}
	}
	return nil
}

// findChrome locates the Chrome executable. NEON_CHROME_PATH wins when set.
func findChrome() string {
	if p := os.Getenv("NEON_CHROME_PATH"); p != "" {
		return p
	}

	for _, path := range chromeCandidates() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	for _, name := range []string{"google-chrome", "chrome", "chromium"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
