// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"net"
	"time"

	"grimm.is/edgesentry/internal/errors"
)

// SyslogConfig configures an RFC-5424-ish syslog sink for structured log
// records.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns syslog disabled by default, with the
// conventional UDP/514 destination and facility 1 (user-level) should it
// be enabled.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "edgesentry",
		Facility: 1,
	}
}

// SyslogWriter is a Sink that frames each RequestRecord as one syslog
// message and writes it over UDP or TCP.
type SyslogWriter struct {
	cfg  SyslogConfig
	conn net.Conn
}

// NewSyslogWriter dials the configured syslog destination, applying the
// same port/protocol/tag defaults DefaultSyslogConfig documents when the
// caller leaves them zero-valued.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.Host == "" {
		return nil, errors.New(errors.KindValidation, "syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "edgesentry"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := net.Dial(cfg.Protocol, addr)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "dial syslog destination %s", addr)
	}
	return &SyslogWriter{cfg: cfg, conn: conn}, nil
}

// Write implements Sink by framing data as a single syslog message with a
// PRI header derived from cfg.Facility at the "informational" severity (6).
func (s *SyslogWriter) Write(data []byte) error {
	priority := s.cfg.Facility*8 + 6
	msg := fmt.Sprintf("<%d>%s %s: %s\n", priority, time.Now().UTC().Format(time.RFC3339), s.cfg.Tag, data)
	_, err := s.conn.Write([]byte(msg))
	return err
}

// Close releases the underlying connection.
func (s *SyslogWriter) Close() error {
	return s.conn.Close()
}
