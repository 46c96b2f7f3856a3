// Package sysproxy points the OS-level HTTP(S) proxy configuration at the
// local interception engine and reads it back. Each platform is driven
// through its native tool; there is no persistent daemon state here.
package sysproxy

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Configurator is the surface the session controller and the lifecycle
// coordinator depend on. Tests substitute a fake.
type Configurator interface {
	Set(host string, port int) error
	Clear() error
	// Current reports the configured proxy as "host:port", or "" when
	// no system proxy is set.
	Current() (string, error)
}

// Manager drives the real OS configuration.
type Manager struct {
	// macOS network service name, e.g. "Wi-Fi"
	service string
}

func New(service string) *Manager {
	if service == "" {
		service = "Wi-Fi"
	}
	return &Manager{service: service}
}

func (m *Manager) Set(host string, port int) error {
	p := strconv.Itoa(port)
	switch runtime.GOOS {
	case "darwin":
		if err := run("networksetup", "-setwebproxy", m.service, host, p); err != nil {
			return err
		}
		return run("networksetup", "-setsecurewebproxy", m.service, host, p)
	case "windows":
		if err := run("reg", "add", winInetKey, "/v", "ProxyEnable", "/t", "REG_DWORD", "/d", "1", "/f"); err != nil {
			return err
		}
		return run("reg", "add", winInetKey, "/v", "ProxyServer", "/t", "REG_SZ", "/d", host+":"+p, "/f")
	default:
		if err := run("gsettings", "set", "org.gnome.system.proxy", "mode", "manual"); err != nil {
			return err
		}
		for _, scheme := range []string{"http", "https"} {
			if err := run("gsettings", "set", "org.gnome.system.proxy."+scheme, "host", host); err != nil {
				return err
			}
			if err := run("gsettings", "set", "org.gnome.system.proxy."+scheme, "port", p); err != nil {
				return err
			}
		}
		return nil
	}
}

func (m *Manager) Clear() error {
	switch runtime.GOOS {
	case "darwin":
		if err := run("networksetup", "-setwebproxystate", m.service, "off"); err != nil {
			return err
		}
		return run("networksetup", "-setsecurewebproxystate", m.service, "off")
	case "windows":
		return run("reg", "add", winInetKey, "/v", "ProxyEnable", "/t", "REG_DWORD", "/d", "0", "/f")
	default:
		return run("gsettings", "set", "org.gnome.system.proxy", "mode", "none")
	}
}

func (m *Manager) Current() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("scutil", "--proxy").Output()
		if err != nil {
			return "", err
		}
		return parseScutil(string(out)), nil
	case "windows":
		enabled, err := exec.Command("reg", "query", winInetKey, "/v", "ProxyEnable").Output()
		if err != nil {
			return "", err
		}
		if !strings.Contains(string(enabled), "0x1") {
			return "", nil
		}
		server, err := exec.Command("reg", "query", winInetKey, "/v", "ProxyServer").Output()
		if err != nil {
			return "", err
		}
		return parseRegSZ(string(server)), nil
	default:
		mode, err := exec.Command("gsettings", "get", "org.gnome.system.proxy", "mode").Output()
		if err != nil {
			return "", err
		}
		if strings.Trim(strings.TrimSpace(string(mode)), "'") != "manual" {
			return "", nil
		}
		host, err := exec.Command("gsettings", "get", "org.gnome.system.proxy.http", "host").Output()
		if err != nil {
			return "", err
		}
		port, err := exec.Command("gsettings", "get", "org.gnome.system.proxy.http", "port").Output()
		if err != nil {
			return "", err
		}
		h := strings.Trim(strings.TrimSpace(string(host)), "'")
		pt := strings.TrimSpace(string(port))
		if h == "" || pt == "" || pt == "0" {
			return "", nil
		}
		return h + ":" + pt, nil
	}
}

const winInetKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Internet Settings`

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// parseScutil pulls host:port out of `scutil --proxy` output when
// HTTPEnable is 1.
func parseScutil(out string) string {
	vals := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		vals[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if vals["HTTPEnable"] != "1" {
		return ""
	}
	host := vals["HTTPProxy"]
	port := vals["HTTPPort"]
	if host == "" || port == "" {
		return ""
	}
	return host + ":" + port
}

// parseRegSZ extracts the value from a `reg query /v ProxyServer` line
// like "    ProxyServer    REG_SZ    127.0.0.1:29219".
func parseRegSZ(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "REG_SZ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			return fields[len(fields)-1]
		}
	}
	return ""
}
