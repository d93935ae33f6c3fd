package cdp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TargetTypePage is the CDP target type for browser pages.
const TargetTypePage = "page"

// Tab represents a Chrome page target.
type Tab struct {
	TargetID string
	Type     string
	Title    string
	URL      string
}

// BrowserInfo holds information about the connected Chrome instance.
type BrowserInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version"`
	WebKitVersion        string `json:"WebKit-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// targetJSON represents one entry of the /json endpoint.
type targetJSON struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// debugURL returns an HTTP endpoint of the remote debugging server.
func debugURL(port, path string) string {
	return fmt.Sprintf("http://localhost:%s%s", port, path)
}

// getJSON fetches a debugging endpoint and decodes its JSON body into v.
func getJSON(client *http.Client, port, path string, v interface{}) error {
	resp, err := client.Get(debugURL(port, path))
	if err != nil {
		return fmt.Errorf("failed to connect to Chrome on port %s: %w", port, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// DiscoverBrowserInfo queries /json/version for the browser websocket URL.
func DiscoverBrowserInfo(port string) (*BrowserInfo, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	var info BrowserInfo
	if err := getJSON(client, port, "/json/version", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DiscoverTabs lists the page targets of the browser.
func DiscoverTabs(port string) ([]*Tab, error) {
	return discoverTabs(&http.Client{Timeout: 5 * time.Second}, port)
}

func discoverTabs(client *http.Client, port string) ([]*Tab, error) {
	var targets []targetJSON
	if err := getJSON(client, port, "/json", &targets); err != nil {
		return nil, err
	}

	var tabs []*Tab
	for _, target := range targets {
		if target.Type != TargetTypePage {
			continue
		}
		tabs = append(tabs, &Tab{
			TargetID: target.ID,
			Type:     target.Type,
			Title:    target.Title,
			URL:      target.URL,
		})
	}
	return tabs, nil
}

// WaitForChrome waits until the debugging server answers /json/version and
// reports at least one page target.
func WaitForChrome(port string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	versionReady := false
	for time.Now().Before(deadline) {
		if !versionReady {
			var info BrowserInfo
			versionReady = getJSON(client, port, "/json/version", &info) == nil
		}

		if versionReady {
			if tabs, err := discoverTabs(client, port); err == nil && len(tabs) > 0 {
				return nil
			}
		}

		time.Sleep(100 * time.Millisecond)
	}

	if !versionReady {
		return fmt.Errorf("chrome not available on port %s after %v", port, timeout)
	}
	return fmt.Errorf("chrome available but no page targets after %v", timeout)
}
