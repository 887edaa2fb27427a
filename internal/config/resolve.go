package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

// ResolveValue handles the indirections allowed in config values:
//   - op://vault/item/field -> 1Password secret (via `op read`)
//   - srv://record/path -> DNS SRV lookup, returned as https://host:port/path
//   - $(...) -> shell command output
//   - ${VAR} or $VAR anywhere -> environment variable
//   - anything else is returned as-is
func ResolveValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", nil
	case strings.HasPrefix(value, "op://"):
		return resolveOnePassword(value)
	case strings.HasPrefix(value, "srv://"):
		return resolveSRV(value)
	case strings.HasPrefix(value, "$(") && strings.HasSuffix(value, ")"):
		return resolveCommand(value[2 : len(value)-1])
	default:
		return os.ExpandEnv(value), nil
	}
}

// resolveOnePassword reads op://vault/item/field[?account=...] via the op CLI.
func resolveOnePassword(opURL string) (string, error) {
	u, err := url.Parse(opURL)
	if err != nil {
		return "", fmt.Errorf("1password: invalid URL %s: %w", opURL, err)
	}
	ref := fmt.Sprintf("op://%s%s", u.Host, u.Path)
	args := []string{"read", ref}
	if account := u.Query().Get("account"); account != "" {
		args = append(args, "--account", account)
	}

	out, err := runCommand(exec.Command("op", args...))
	if err != nil {
		return "", fmt.Errorf("1password: failed to read %s: %w (is 'op' installed and signed in?)", ref, err)
	}
	return out, nil
}

// resolveSRV turns srv://_service._proto.domain/path into https://host:port/path
// using the highest-priority SRV record.
func resolveSRV(srvURL string) (string, error) {
	u, err := url.Parse(srvURL)
	if err != nil {
		return "", fmt.Errorf("invalid srv:// URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("srv:// URL missing host: %s", srvURL)
	}

	_, addrs, err := net.LookupSRV("", "", u.Host)
	if err != nil {
		return "", fmt.Errorf("SRV lookup failed for %s: %w", u.Host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no SRV records found for %s", u.Host)
	}
	host := strings.TrimSuffix(addrs[0].Target, ".")
	return fmt.Sprintf("https://%s:%d%s", host, addrs[0].Port, u.Path), nil
}

func resolveCommand(command string) (string, error) {
	out, err := runCommand(exec.Command("sh", "-c", command))
	if err != nil {
		return "", fmt.Errorf("command failed: %w", err)
	}
	return out, nil
}

func runCommand(cmd *exec.Cmd) (string, error) {
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
