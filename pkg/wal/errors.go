package wal

import "errors"

// ErrQuotaExceeded is returned by Writer.Append when a tenant's WAL
// directory is already at its configured disk quota or its oldest
// ready segment has aged past the quota age.
var ErrQuotaExceeded = errors.New("wal: tenant quota exceeded")
