// Copyright (c) 2026 Offerdesk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import "testing"

// TestValidStatus verifies the known lifecycle states.
func TestValidStatus(t *testing.T) {
	for _, s := range []string{"pending", "parsing", "parsed", "reviewed", "failed"} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "queued", "PARSED", "done"} {
		if ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true", s)
		}
	}
}

// TestHasBody verifies the empty-body check.
func TestHasBody(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"some content", true},
		{"", false},
	}

	for _, tt := range tests {
		e := &Email{BodyText: tt.body}
		if got := e.HasBody(); got != tt.want {
			t.Errorf("HasBody(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
