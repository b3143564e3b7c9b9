package yeelight

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	ssdpAddress     = "239.255.255.250:1982"
	discoverMessage = "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1982\r\nMAN: \"ssdp:discover\"\r\nST: wifi_bulb\r\n"
	discoverWindow  = 3 * time.Second
)

// Device is a bulb's self-description from a discovery response.
type Device struct {
	Addr       netip.AddrPort
	ID         string
	Model      string
	Name       string
	Firmware   string
	Power      string
	Brightness int
	Support    []string
}

// Supports reports whether the bulb advertises method.
func (d Device) Supports(method string) bool {
	return slices.Contains(d.Support, method)
}

// Discover multicasts a search and collects every bulb that answers within the discovery
// window or until ctx is done.
func Discover(ctx context.Context) ([]Device, error) {
	group, err := net.ResolveUDPAddr("udp4", ssdpAddress)
	if err != nil {
		return nil, eris.Wrap(err, "failed to resolve SSDP address")
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open discovery socket")
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP([]byte(discoverMessage), group); err != nil {
		return nil, eris.Wrap(err, "failed to send discovery message")
	}

	deadline := time.Now().Add(discoverWindow)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, eris.Wrap(err, "failed to set discovery deadline")
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	seen := make(map[netip.AddrPort]bool)
	var devices []Device
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return devices, nil
			}
			return devices, eris.Wrap(err, "failed to read discovery response")
		}

		dev, err := parseAdvertisement(string(buf[:n]))
		if err != nil || seen[dev.Addr] {
			continue
		}
		seen[dev.Addr] = true
		devices = append(devices, dev)
	}
}

// parseAdvertisement reads the HTTP-style header block a bulb answers a search with.
func parseAdvertisement(resp string) (Device, error) {
	var dev Device
	for line := range strings.SplitSeq(resp, lineEnding) {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "location":
			addr, err := netip.ParseAddrPort(strings.TrimPrefix(value, "yeelight://"))
			if err != nil {
				return Device{}, eris.Wrap(err, "failed to parse bulb location")
			}
			dev.Addr = addr
		case "id":
			dev.ID = value
		case "model":
			dev.Model = value
		case "name":
			dev.Name = value
		case "fw_ver":
			dev.Firmware = value
		case "power":
			dev.Power = value
		case "bright":
			if v, err := strconv.Atoi(value); err == nil {
				dev.Brightness = v
			}
		case "support":
			dev.Support = strings.Fields(value)
		}
	}

	if !dev.Addr.IsValid() {
		return Device{}, eris.New("advertisement has no location")
	}
	return dev, nil
}
