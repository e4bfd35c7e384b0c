// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package database

import (
	"strings"

	"github.com/prwdo/jellytrack/internal/models"
)

// buildSessionFilter converts filter into AND-able conditions with
// positional arguments. Column names come from this file only.
func buildSessionFilter(filter models.SessionFilter) ([]string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.DeviceName != "" {
		conditions = append(conditions, "device_name = ?")
		args = append(args, filter.DeviceName)
	}
	if filter.MediaType != "" {
		conditions = append(conditions, "media_type = ?")
		args = append(args, filter.MediaType)
	}
	if clause, clauseArgs := excludedUsersClause(filter.ExcludedUserNames); clause != "" {
		conditions = append(conditions, clause)
		args = append(args, clauseArgs...)
	}
	return conditions, args
}

// excludedUsersClause hides rows whose user_name is listed. Rows with a
// NULL user_name always pass.
func excludedUsersClause(names []string) (string, []any) {
	placeholders := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		placeholders = append(placeholders, "?")
		args = append(args, name)
	}
	if len(placeholders) == 0 {
		return "", nil
	}
	return "(user_name IS NULL OR user_name NOT IN (" + strings.Join(placeholders, ", ") + "))", args
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}
