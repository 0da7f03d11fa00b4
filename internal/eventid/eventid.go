// Package eventid derives the deduplication key of an object event.
//
// The key is recomputed from the event coordinates on every delivery and is
// never persisted by the handler, so it must stay stable across processes.
package eventid

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
)

// Length is the length of every derived identifier.
const Length = md5.Size * 2

var (
	ErrEmptyBucket = errors.New("eventid: bucket name is empty")
	ErrEmptyObject = errors.New("eventid: object name is empty")
)

// Validate reports whether bucket and object can be used to derive an identifier.
func Validate(bucket, object string) error {
	if strings.TrimSpace(bucket) == "" {
		return ErrEmptyBucket
	}
	if strings.TrimSpace(object) == "" {
		return ErrEmptyObject
	}
	return nil
}

// Derive returns the hex MD5 of "bucket/object", or of "bucket/object/eventTime"
// when eventTime is non-empty. eventTime is opaque and never parsed.
func Derive(bucket, object, eventTime string) string {
	content := bucket + "/" + object
	if eventTime != "" {
		content += "/" + eventTime
	}

	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
