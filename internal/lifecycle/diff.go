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

package lifecycle

import (
	"reflect"

	"github.com/offerdesk/parser/internal/models"
)

// Diff computes the field-level changes between a machine extraction and a
// human correction. Classification is one level deep over the union of keys:
// added (absent in original), removed (absent in corrected), or modified
// (present in both with unequal values). Unchanged keys produce no entry and
// entry order is unspecified.
func Diff(original, corrected map[string]any) []models.DiffEntry {
	entries := []models.DiffEntry{}

	for field, newValue := range corrected {
		oldValue, exists := original[field]
		switch {
		case !exists:
			entries = append(entries, models.DiffEntry{
				Field:      field,
				ChangeType: models.ChangeAdded,
				NewValue:   newValue,
			})
		case !reflect.DeepEqual(oldValue, newValue):
			entries = append(entries, models.DiffEntry{
				Field:      field,
				ChangeType: models.ChangeModified,
				OldValue:   oldValue,
				NewValue:   newValue,
			})
		}
	}

	for field, oldValue := range original {
		if _, exists := corrected[field]; !exists {
			entries = append(entries, models.DiffEntry{
				Field:      field,
				ChangeType: models.ChangeRemoved,
				OldValue:   oldValue,
			})
		}
	}

	return entries
}
