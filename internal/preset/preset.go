// Package preset holds the canned commands offered for quick actions,
// monitoring, log viewing, package management and service control.
package preset

import (
	"fmt"
	"regexp"
	"strings"
)

// Command is a named shell command. Parser names an output parser that
// understands the command's output, if any.
type Command struct {
	Name    string
	Label   string
	Command string
	Parser  string
}

// QuickCommands returns the one-click commands in display order.
func QuickCommands() []Command {
	return []Command{
		{Name: "processes", Label: "Processes", Command: "ps aux | head -20"},
		{Name: "disk", Label: "Disk usage", Command: "df -h", Parser: "disk"},
		{Name: "memory", Label: "Memory usage", Command: "free -m", Parser: "free"},
		{Name: "network", Label: "Network connections", Command: "netstat -tuln | head -20"},
	}
}

// MonitorMetrics returns the monitoring snapshot commands in display order.
func MonitorMetrics() []Command {
	return []Command{
		{Name: "cpu", Label: "CPU usage", Command: "top -bn1 | head -20"},
		{Name: "memory", Label: "Memory detail", Command: "free -m", Parser: "free"},
		{Name: "disk", Label: "Disk usage", Command: "df -h", Parser: "disk"},
		{Name: "load", Label: "System load", Command: "uptime", Parser: "uptime"},
		{Name: "network", Label: "Network traffic", Command: "ifconfig | grep -A 1 'inet'"},
		{Name: "processes", Label: "Top processes", Command: "ps aux --sort=-%cpu | head -10"},
	}
}

// Lookup finds a command by name.
func Lookup(cmds []Command, name string) (Command, bool) {
	for _, c := range cmds {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// Names returns the names of cmds in order.
func Names(cmds []Command) []string {
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return names
}

// Services returns the commonly managed services.
func Services() []string {
	return []string{"nginx", "apache2", "mysql", "postgresql", "redis", "docker", "ssh"}
}

// LogFile is a well-known log location.
type LogFile struct {
	Name  string
	Label string
	Path  string
}

// LogFiles returns the well-known log files in display order.
func LogFiles() []LogFile {
	return []LogFile{
		{Name: "syslog", Label: "System log", Path: "/var/log/syslog"},
		{Name: "auth", Label: "Auth log", Path: "/var/log/auth.log"},
		{Name: "nginx-access", Label: "Nginx access log", Path: "/var/log/nginx/access.log"},
		{Name: "nginx-error", Label: "Nginx error log", Path: "/var/log/nginx/error.log"},
		{Name: "apache-access", Label: "Apache access log", Path: "/var/log/apache2/access.log"},
		{Name: "apache-error", Label: "Apache error log", Path: "/var/log/apache2/error.log"},
	}
}

// LookupLog finds a log file by name.
func LookupLog(name string) (LogFile, bool) {
	for _, l := range LogFiles() {
		if l.Name == name {
			return l, true
		}
	}
	return LogFile{}, false
}

// MaxLogLines bounds TailCommand.
const MaxLogLines = 1000

var logPathRe = regexp.MustCompile(`^/[A-Za-z0-9._/-]+$`)

// TailCommand returns the command that prints the last n lines of path.
// path must be absolute and free of shell metacharacters.
func TailCommand(path string, lines int) (string, error) {
	if path == "" {
		return "", fmt.Errorf("log path is empty")
	}
	if !logPathRe.MatchString(path) {
		return "", fmt.Errorf("invalid log path %q", path)
	}
	if lines < 1 || lines > MaxLogLines {
		return "", fmt.Errorf("line count %d out of range 1-%d", lines, MaxLogLines)
	}
	return fmt.Sprintf("tail -n %d %s", lines, path), nil
}

// PackageAction is a package manager operation.
type PackageAction string

const (
	PackageInstall PackageAction = "install"
	PackageUpdate  PackageAction = "update"
	PackageRemove  PackageAction = "remove"
	PackageSearch  PackageAction = "search"
)

// PackageActions lists the supported package actions.
func PackageActions() []PackageAction {
	return []PackageAction{PackageInstall, PackageUpdate, PackageRemove, PackageSearch}
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.+_:@~-]*$`)

// PackageCommand builds the apt command for action on one or more
// space-separated package names.
func PackageCommand(action PackageAction, packages string) (string, error) {
	fields := strings.Fields(packages)
	if len(fields) == 0 {
		return "", fmt.Errorf("no package name given")
	}
	for _, f := range fields {
		if !nameRe.MatchString(f) {
			return "", fmt.Errorf("invalid package name %q", f)
		}
	}
	pkgs := strings.Join(fields, " ")

	switch action {
	case PackageInstall:
		return "apt-get install -y " + pkgs, nil
	case PackageUpdate:
		return "apt-get update && apt-get upgrade -y " + pkgs, nil
	case PackageRemove:
		return "apt-get remove -y " + pkgs, nil
	case PackageSearch:
		return "apt-cache search " + pkgs, nil
	}
	return "", fmt.Errorf("unknown package action %q", action)
}

// ServiceAction is a systemd lifecycle operation.
type ServiceAction string

const (
	ServiceStart   ServiceAction = "start"
	ServiceStop    ServiceAction = "stop"
	ServiceRestart ServiceAction = "restart"
	ServiceReload  ServiceAction = "reload"
)

// ServiceActions lists the supported service actions.
func ServiceActions() []ServiceAction {
	return []ServiceAction{ServiceStart, ServiceStop, ServiceRestart, ServiceReload}
}

func checkService(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid service name %q", name)
	}
	return nil
}

// ServiceCommand builds the systemctl command for action on service.
func ServiceCommand(action ServiceAction, service string) (string, error) {
	if err := checkService(service); err != nil {
		return "", err
	}
	switch action {
	case ServiceStart, ServiceStop, ServiceRestart, ServiceReload:
		return fmt.Sprintf("systemctl %s %s", action, service), nil
	}
	return "", fmt.Errorf("unknown service action %q", action)
}

// ServiceVerifyCommand returns the follow-up check run after a service action.
func ServiceVerifyCommand(service string) (string, error) {
	if err := checkService(service); err != nil {
		return "", err
	}
	return "systemctl is-active " + service, nil
}

// ServiceStatusCommand returns the command that shows a service's status.
func ServiceStatusCommand(service string) (string, error) {
	if err := checkService(service); err != nil {
		return "", err
	}
	return fmt.Sprintf("systemctl status %s --no-pager", service), nil
}

// ServiceRunning reports whether systemctl status output shows a running unit.
func ServiceRunning(statusOutput string) bool {
	return strings.Contains(statusOutput, "active (running)")
}
