package roku

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SSDP constants for Roku discovery.
const (
	ssdpMulticastAddr = "239.255.255.250:1900"
	ssdpSearchTarget  = "roku:ecp"
	ssdpUSNPrefix     = "uuid:roku:ecp:"
	ssdpBufferSize    = 2048
)

// Discoverer finds players on the local network.
type Discoverer interface {
	Discover(ctx context.Context, timeout time.Duration) ([]Identity, error)
}

// SSDPDiscoverer finds players with an SSDP M-SEARCH for "roku:ecp".
type SSDPDiscoverer struct {
	// Addr is the multicast destination. Empty means 239.255.255.250:1900.
	Addr string
}

// Discover sends one M-SEARCH and collects responses until timeout or ctx
// expires. Each responding host is reported once.
func (d *SSDPDiscoverer) Discover(ctx context.Context, timeout time.Duration) ([]Identity, error) {
	target := d.Addr
	if target == "" {
		target = ssdpMulticastAddr
	}
	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("resolving SSDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("creating UDP socket: %w", err)
	}
	defer conn.Close() //nolint:errcheck // best effort

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}

	// Unblock the read loop on cancellation.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.WriteToUDP(buildMSearch(timeout), dst); err != nil {
		return nil, fmt.Errorf("sending M-SEARCH: %w", err)
	}

	seen := make(map[string]bool)
	var found []Identity
	buf := make([]byte, ssdpBufferSize)

	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Deadline reached or socket closed.
			break
		}

		id, ok := parseSSDPResponse(buf[:n])
		if !ok || seen[id.Host] {
			continue
		}
		seen[id.Host] = true
		found = append(found, id)
	}

	return found, nil
}

// buildMSearch returns an M-SEARCH request for Roku players.
func buildMSearch(timeout time.Duration) []byte {
	mx := int(timeout.Seconds())
	if mx < 1 {
		mx = 1
	}
	return []byte("M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + ssdpMulticastAddr + "\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"ST: " + ssdpSearchTarget + "\r\n" +
		"MX: " + strconv.Itoa(mx) + "\r\n\r\n")
}

// parseSSDPResponse extracts the player identity from an M-SEARCH response.
func parseSSDPResponse(data []byte) (Identity, bool) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return Identity{}, false
	}
	_ = resp.Body.Close()

	if st := resp.Header.Get("ST"); st != "" && !strings.EqualFold(st, ssdpSearchTarget) {
		return Identity{}, false
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil || loc.Hostname() == "" {
		return Identity{}, false
	}

	id := Identity{Host: loc.Hostname()}
	if p := loc.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil && port != 0 {
			id.Port = port
		}
	}

	usn := resp.Header.Get("USN")
	if strings.HasPrefix(strings.ToLower(usn), ssdpUSNPrefix) {
		id.Serial = usn[len(ssdpUSNPrefix):]
	}

	return id, true
}
