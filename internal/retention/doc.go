// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
Package retention rolls aged sessions into hourly aggregates.

The Aggregator runs one compaction immediately at Start and then every
interval. Each run computes cutoff = now - retention days and asks the
store to merge every finalized session that started before the cutoff into
its (date, hour, user, media, device, client) bucket, deleting the raw
rows in the same transaction. A failed run is logged and retried on the
next tick.

Runs never overlap: the loop and RunNow share one mutex, so a run that
outlasts the interval delays the next one instead of racing it.

A retention of 0 days disables compaction; the loop still runs so it can
be stopped like any other service.
*/
package retention
