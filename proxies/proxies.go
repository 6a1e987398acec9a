// Package proxies reads the list of outbound proxies, one per session.
package proxies

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Load reads a proxy list from path. See Parse for the format.
func Load(path string) ([]*url.URL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one proxy per line as host:port or host:port:user:pass. Blank
// lines and lines starting with # are skipped.
func Parse(r io.Reader) ([]*url.URL, error) {
	var out []*url.URL
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, u)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read proxy list: %w", err)
	}
	return out, nil
}

func parseLine(line string) (*url.URL, error) {
	parts := strings.Split(line, ":")
	if len(parts) != 2 && len(parts) != 4 {
		return nil, fmt.Errorf("want host:port or host:port:user:pass, got %q", line)
	}
	host, port := parts[0], parts[1]
	if host == "" {
		return nil, fmt.Errorf("empty host in %q", line)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("bad port in %q", line)
	}
	u := &url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}
	if len(parts) == 4 {
		u.User = url.UserPassword(parts[2], parts[3])
	}
	return u, nil
}
