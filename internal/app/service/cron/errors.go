package cron

import "errors"

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobBusy     = errors.New("job run already in flight")
)
