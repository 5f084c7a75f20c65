// Package tus implements the parts of the tus 1.0.0 resumable upload protocol
// the relay speaks: shared header names, the Upload-Metadata codec and a
// receiver that stores uploads on the local filesystem.
package tus

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	TusResumableHeader         = "Tus-Resumable"
	TusExtensionHeader         = "Tus-Extension"
	TusVersionHeader           = "Tus-Version"
	TusMaxSizeHeader           = "Tus-Max-Size"
	TusChecksumAlgorithmHeader = "Tus-Checksum-Algorithm"

	TusVersion              = "1.0.0"
	UploadOffsetHeader      = "Upload-Offset"
	UploadLengthHeader      = "Upload-Length"
	UploadMetadataHeader    = "Upload-Metadata"
	UploadDeferLengthHeader = "Upload-Defer-Length"
	UploadExpiresHeader     = "Upload-Expires"
	UploadChecksumHeader    = "Upload-Checksum"
	ContentTypeHeader       = "Content-Type"

	OffsetOctetStream = "application/offset+octet-stream"

	// StatusChecksumMismatch is the tus checksum extension status code.
	StatusChecksumMismatch = 460

	UploadMaxDuration = 24 * time.Hour
)

type Extension string

const (
	CreationExtension    Extension = "creation"
	ExpirationExtension  Extension = "expiration"
	ChecksumExtension    Extension = "checksum"
	TerminationExtension Extension = "termination"
)

type Extensions []Extension

func (e Extensions) Enabled(ext Extension) bool {
	for _, v := range e {
		if v == ext {
			return true
		}
	}
	return false
}

func (e Extensions) String() string {
	s := make([]string, 0, len(e))
	for _, v := range e {
		s = append(s, string(v))
	}
	return strings.Join(s, ",")
}

var (
	SupportedTusVersion = []string{
		"0.2.0",
		"1.0.0",
	}
	SupportedChecksumAlgorithms = []string{
		"md5",
		"sha1",
	}
)

// Metadata is the decoded form of the Upload-Metadata header.
type Metadata map[string]string

// EncodeMetadata renders m as "key base64(value),..." with keys sorted so the
// header is stable.
func EncodeMetadata(m Metadata) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		if v == "" {
			pairs = append(pairs, k)
			continue
		}
		pairs = append(pairs, k+" "+base64.StdEncoding.EncodeToString([]byte(v)))
	}
	return strings.Join(pairs, ",")
}

func ParseMetadata(header string) (Metadata, error) {
	m := Metadata{}
	if strings.TrimSpace(header) == "" {
		return m, nil
	}
	for _, pair := range strings.Split(header, ",") {
		fields := strings.Fields(pair)
		switch len(fields) {
		case 1:
			m[fields[0]] = ""
		case 2:
			v, err := base64.StdEncoding.DecodeString(fields[1])
			if err != nil {
				return nil, fmt.Errorf("invalid metadata value for %q: %w", fields[0], err)
			}
			m[fields[0]] = string(v)
		default:
			return nil, fmt.Errorf("invalid metadata pair %q", pair)
		}
	}
	return m, nil
}

func uploadExpiresAt(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}
