package entities

import "errors"

var (
	// ErrFetch marks a failed upstream fetch: unreachable, bad status, timeout or unreadable page.
	ErrFetch = errors.New("fetch failed")

	// ErrParse marks a single unparsable field in an upstream record.
	ErrParse = errors.New("parse failed")

	// ErrDispatch marks an alert the email transport did not accept.
	ErrDispatch = errors.New("dispatch failed")

	// ErrNotFound is returned by the store when a user does not exist.
	ErrNotFound = errors.New("not found")
)
