// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialbridge

import (
	"encoding/hex"
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// TypeTOIO is the proprietary sentence type spoken by the dongle:
//
//	$PTOIO,<device>,<kind>,<hex payload>*CS
//
// For kind "caps" the last field is a '|' separated capability list.
const TypeTOIO = "TOIO"

const capsKind = "caps"

// TOIO is one parsed dongle sentence.
type TOIO struct {
	nmea.BaseSentence
	DeviceKey string
	Kind      string
	Payload   []byte
	Caps      string
}

func parseTOIO(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	m := TOIO{
		BaseSentence: s,
		DeviceKey:    p.String(0, "device"),
		Kind:         p.String(1, "kind"),
	}
	field := p.String(2, "payload")
	if err := p.Err(); err != nil {
		return nil, err
	}
	if m.DeviceKey == "" {
		return nil, fmt.Errorf("nmea: %s empty device", s.Prefix())
	}

	if m.Kind == capsKind {
		m.Caps = field
		return m, nil
	}
	payload, err := hex.DecodeString(field)
	if err != nil {
		return nil, fmt.Errorf("nmea: %s invalid payload: %w", s.Prefix(), err)
	}
	m.Payload = payload
	return m, nil
}

// newSentenceParser returns a parser that understands TOIO sentences. The
// library reports proprietary sentences with talker "P", so the type may
// be looked up with or without it.
func newSentenceParser() *nmea.SentenceParser {
	return &nmea.SentenceParser{
		CustomParsers: map[string]nmea.ParserFunc{
			TypeTOIO:       parseTOIO,
			"P" + TypeTOIO: parseTOIO,
		},
	}
}

// EncodeSentence formats a TOIO sentence, checksum included, without the
// line terminator.
func EncodeSentence(deviceKey, kind string, payload []byte) string {
	body := fmt.Sprintf("P%s,%s,%s,%s", TypeTOIO, deviceKey, kind, strings.ToUpper(hex.EncodeToString(payload)))
	return "$" + body + "*" + nmea.Checksum(body)
}

// EncodeCapsSentence formats a capability announcement.
func EncodeCapsSentence(deviceKey, caps string) string {
	body := fmt.Sprintf("P%s,%s,%s,%s", TypeTOIO, deviceKey, capsKind, caps)
	return "$" + body + "*" + nmea.Checksum(body)
}
