// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"strings"
	"testing"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
		errMsg  string
	}{
		{"every minute", "* * * * *", false, ""},
		{"step", "*/10 * * * *", false, ""},
		{"weekdays", "30 7 * * 1-5", false, ""},
		{"descriptor", "@hourly", false, ""},
		{"every", "@every 90s", false, ""},

		{"empty", "", true, "required"},
		{"blank", "   ", true, "required"},
		{"words", "every minute", true, "invalid cron expression"},
		{"six fields", "0 * * * * *", true, "invalid cron expression"},
		{"out of range", "61 * * * *", true, "invalid cron expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}
