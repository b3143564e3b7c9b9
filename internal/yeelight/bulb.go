package yeelight

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/crazy3lf/colorconv"
	"github.com/rotisserie/eris"

	"github.com/cybre/birthday-visualizer/internal/utils"
)

const (
	callTimeout   = 3 * time.Second
	acceptTimeout = 3 * time.Second
)

var (
	// ErrClosed is returned for commands sent after Close.
	ErrClosed = eris.New("bulb connection is closed")
	// ErrColorInvalid is returned for out of range HSV values.
	ErrColorInvalid = eris.New("hsv colour out of range")
)

// Bulb is a connection to a single Yeelight bulb.
type Bulb struct {
	addr   netip.AddrPort
	logger *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	music   net.Conn
	nextID  int
	waiting map[int]chan reply
	closed  bool
}

// ParseAddress accepts "host" or "host:port" and fills in the default port.
func ParseAddress(address string) (netip.AddrPort, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(DefaultPort))
	}
	addr, err := netip.ParseAddrPort(address)
	if err != nil {
		return netip.AddrPort{}, eris.Wrap(err, "failed to parse bulb address")
	}
	return addr, nil
}

// Dial connects to the bulb at address.
func Dial(ctx context.Context, address string, logger *slog.Logger) (*Bulb, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, eris.Wrapf(err, "failed to connect to bulb %s", addr)
	}

	b := &Bulb{
		addr:    addr,
		logger:  logger.With(slog.String("bulb", addr.String())),
		conn:    conn,
		waiting: make(map[int]chan reply),
	}
	go b.readReplies(conn)
	return b, nil
}

// Addr returns the bulb's control address.
func (b *Bulb) Addr() netip.AddrPort {
	return b.addr
}

// Call sends a command and waits for its reply. A lone "ok" result is returned as nil.
func (b *Bulb) Call(ctx context.Context, method string, params ...any) ([]string, error) {
	ch := make(chan reply, 1)
	id, err := b.write(method, params, ch)
	if err != nil {
		return nil, err
	}
	defer b.forget(id)

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()

	select {
	case r, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if r.Error != nil {
			return nil, eris.Wrapf(r.Error, "bulb rejected %s %v", method, params)
		}
		if len(r.Result) == 1 && r.Result[0] == "ok" {
			return nil, nil
		}
		return r.Result, nil
	case <-timer.C:
		return nil, eris.Errorf("%s timed out", method)
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "failed to execute %s", method)
	}
}

// Send writes a command without waiting for a reply. In music mode this is the only way
// to talk to the bulb.
func (b *Bulb) Send(method string, params ...any) error {
	_, err := b.write(method, params, nil)
	return err
}

// SetPower switches the bulb on or off.
func (b *Bulb) SetPower(ctx context.Context, on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	_, err := b.Call(ctx, "set_power", state, "smooth", 300)
	return err
}

// SetHSV fades to the colour over fade. hue is in degrees, saturation and brightness in
// percent. set_hsv cannot change brightness, so a one-step colour flow is used instead.
func (b *Bulb) SetHSV(hue, saturation, brightness int, fade time.Duration) error {
	if hue < 0 || hue > 359 || saturation < 0 || saturation > 100 || brightness < 1 || brightness > 100 {
		return eris.Wrapf(ErrColorInvalid, "h=%d s=%d v=%d", hue, saturation, brightness)
	}
	r, g, bl, err := colorconv.HSVToRGB(float64(hue), float64(saturation)/100, 1)
	if err != nil {
		return eris.Wrap(err, "failed to convert HSV to RGB")
	}
	expr := flowExpression(int(fade.Milliseconds()), utils.RGBToInt(r, g, bl), brightness)
	return b.Send("start_cf", 1, 1, expr)
}

// EnableMusicMode asks the bulb to connect back to us. Afterwards commands bypass the
// bulb's rate limit but receive no replies.
func (b *Bulb) EnableMusicMode(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	local, ok := b.conn.LocalAddr().(*net.TCPAddr)
	b.mu.Unlock()
	if !ok {
		return eris.New("bulb is not connected over tcp")
	}

	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: local.IP})
	if err != nil {
		return eris.Wrap(err, "failed to start music mode listener")
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	if _, err := b.Call(ctx, "set_music", 1, local.IP.String(), port); err != nil {
		return err
	}

	if err := ln.SetDeadline(time.Now().Add(acceptTimeout)); err != nil {
		return eris.Wrap(err, "failed to set accept deadline")
	}
	conn, err := ln.Accept()
	if err != nil {
		return eris.Wrap(err, "bulb did not connect back for music mode")
	}

	b.mu.Lock()
	b.music = conn
	b.mu.Unlock()
	b.logger.Info("music mode enabled", slog.Int("port", port))
	return nil
}

// Close drops both connections. Pending calls fail with ErrClosed.
func (b *Bulb) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var err error
	if b.music != nil {
		err = b.music.Close()
	}
	if cerr := b.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	for id, ch := range b.waiting {
		close(ch)
		delete(b.waiting, id)
	}
	if err != nil {
		return eris.Wrap(err, "failed to close bulb connection")
	}
	return nil
}

func (b *Bulb) write(method string, params []any, ch chan reply) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}

	b.nextID++
	req := request{ID: b.nextID, Method: method, Params: params}
	payload, err := req.encode()
	if err != nil {
		return 0, err
	}

	conn := b.conn
	if b.music != nil && ch == nil {
		conn = b.music
	}

	b.logger.Debug("sending command",
		slog.Int("id", req.ID),
		slog.String("method", method),
		slog.Any("params", params),
	)
	if ch != nil {
		b.waiting[req.ID] = ch
	}
	if _, err := conn.Write(payload); err != nil {
		delete(b.waiting, req.ID)
		return 0, eris.Wrapf(err, "failed to write %s", method)
	}
	return req.ID, nil
}

func (b *Bulb) forget(id int) {
	b.mu.Lock()
	delete(b.waiting, id)
	b.mu.Unlock()
}

func (b *Bulb) readReplies(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		r, ok, err := parseReply(scanner.Text())
		if err != nil {
			b.logger.Warn("dropping malformed reply", slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}

		b.mu.Lock()
		ch, found := b.waiting[r.ID]
		if found {
			delete(b.waiting, r.ID)
		}
		b.mu.Unlock()
		if found {
			ch <- r
		}
	}
	if err := scanner.Err(); err != nil && !eris.Is(err, net.ErrClosed) {
		b.logger.Error("bulb connection failed", slog.Any("error", err))
	}
}
