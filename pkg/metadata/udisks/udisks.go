// Zaparoo Eject
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Eject.
//
// Zaparoo Eject is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Eject is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Eject.  If not, see <http://www.gnu.org/licenses/>.

// Package udisks queries the UDisks2 daemon over the system D-Bus for block
// device labels and connection buses.
package udisks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	Service = "org.freedesktop.UDisks2"

	blockDevicesPath = "/org/freedesktop/UDisks2/block_devices/"
	blockInterface   = "org.freedesktop.UDisks2.Block"
	driveInterface   = "org.freedesktop.UDisks2.Drive"
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"

	// callTimeout bounds each property read so a wedged daemon cannot stall
	// enumeration.
	callTimeout = 2 * time.Second
)

// ErrUnavailable is returned by Connect when the system bus or the UDisks2
// service cannot be reached.
var ErrUnavailable = errors.New("udisks2 unavailable")

type propertyReader interface {
	Property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error)
}

type busReader struct {
	conn *dbus.Conn
}

func (r *busReader) Property(
	ctx context.Context,
	path dbus.ObjectPath,
	iface, name string,
) (dbus.Variant, error) {
	var v dbus.Variant
	err := r.conn.Object(Service, path).
		CallWithContext(ctx, propertiesGet, 0, iface, name).
		Store(&v)
	if err != nil {
		return dbus.Variant{}, fmt.Errorf("get %s.%s on %s: %w", iface, name, path, err)
	}
	return v, nil
}

// Client answers label and bus lookups from UDisks2.
type Client struct {
	props propertyReader
	conn  *dbus.Conn
}

// Connect opens a private system bus connection and checks UDisks2 is
// running. Callers must Close the client.
func Connect(ctx context.Context) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	conn, err := dbus.SystemBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	// Auth must be called after SystemBusPrivate, Hello after Auth
	if err := conn.Auth(nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: auth: %w", ErrUnavailable, err)
	}
	if err := conn.Hello(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: hello: %w", ErrUnavailable, err)
	}

	var names []string
	err = conn.BusObject().
		CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).
		Store(&names)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: list names: %w", ErrUnavailable, err)
	}

	for _, name := range names {
		if name == Service {
			log.Debug().Msg("using UDisks2 for device metadata")
			return &Client{props: &busReader{conn: conn}, conn: conn}, nil
		}
	}

	_ = conn.Close()
	return nil, fmt.Errorf("%w: service not registered", ErrUnavailable)
}

// Close releases the bus connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close system bus: %w", err)
	}
	return nil
}

// LookupLabel returns Block.IdLabel for the device short name.
func (c *Client) LookupLabel(ctx context.Context, device string) (string, bool) {
	v, err := c.property(ctx, ObjectPath(device), blockInterface, "IdLabel")
	if err != nil {
		log.Debug().Err(err).Str("device", device).Msg("udisks label lookup failed")
		return "", false
	}
	label := strings.TrimSpace(labelFromVariant(v))
	return label, label != ""
}

// LookupBus follows Block.Drive and returns Drive.ConnectionBus.
func (c *Client) LookupBus(ctx context.Context, device string) (string, bool) {
	v, err := c.property(ctx, ObjectPath(device), blockInterface, "Drive")
	if err != nil {
		log.Debug().Err(err).Str("device", device).Msg("udisks drive lookup failed")
		return "", false
	}
	drive, ok := v.Value().(dbus.ObjectPath)
	if !ok || drive == "/" || !drive.IsValid() {
		return "", false
	}

	v, err = c.property(ctx, drive, driveInterface, "ConnectionBus")
	if err != nil {
		log.Debug().Err(err).Str("drive", string(drive)).Msg("udisks bus lookup failed")
		return "", false
	}
	bus := busFromVariant(v)
	return bus, bus != ""
}

func (c *Client) property(
	ctx context.Context,
	path dbus.ObjectPath,
	iface, name string,
) (dbus.Variant, error) {
	if !path.IsValid() {
		return dbus.Variant{}, fmt.Errorf("invalid object path %q", path)
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return c.props.Property(ctx, path, iface, name)
}

// ObjectPath returns the UDisks2 object path of a block device short name.
// Bytes outside [A-Za-z0-9_] are written as _xx, e.g. "dm-0" ->
// ".../block_devices/dm_2d0".
func ObjectPath(device string) dbus.ObjectPath {
	var b strings.Builder
	b.WriteString(blockDevicesPath)
	for i := 0; i < len(device); i++ {
		ch := device[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_':
			b.WriteByte(ch)
		default:
			_, _ = fmt.Fprintf(&b, "_%02x", ch)
		}
	}
	return dbus.ObjectPath(b.String())
}

func labelFromVariant(v dbus.Variant) string {
	if label, ok := v.Value().(string); ok {
		return label
	}
	return ""
}

func busFromVariant(v dbus.Variant) string {
	if bus, ok := v.Value().(string); ok {
		return strings.ToLower(strings.TrimSpace(bus))
	}
	return ""
}
