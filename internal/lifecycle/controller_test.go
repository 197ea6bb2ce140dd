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
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/offerdesk/parser/internal/events"
	"github.com/offerdesk/parser/internal/extract"
	"github.com/offerdesk/parser/internal/models"
	"github.com/offerdesk/parser/internal/schema"
)

// fakeStore is an in-memory EmailStore that records transitions.
type fakeStore struct {
	emails map[int64]*models.Email

	markedParsing   []int64
	savedSuccess    map[int64]map[string]any
	savedFailure    map[int64]string
	savedCorrection map[int64][]models.DiffEntry

	saveSuccessErr error
}

func newFakeStore(emails ...*models.Email) *fakeStore {
	s := &fakeStore{
		emails:          map[int64]*models.Email{},
		savedSuccess:    map[int64]map[string]any{},
		savedFailure:    map[int64]string{},
		savedCorrection: map[int64][]models.DiffEntry{},
	}
	for _, e := range emails {
		s.emails[e.ID] = e
	}
	return s
}

func (s *fakeStore) GetEmail(_ context.Context, id int64) (*models.Email, error) {
	return s.emails[id], nil
}

func (s *fakeStore) MarkParsing(_ context.Context, id int64) error {
	s.markedParsing = append(s.markedParsing, id)
	s.emails[id].Status = models.StatusParsing
	return nil
}

func (s *fakeStore) SaveParseSuccess(_ context.Context, id int64, data map[string]any, model string) error {
	if s.saveSuccessErr != nil {
		return s.saveSuccessErr
	}
	s.savedSuccess[id] = data
	e := s.emails[id]
	e.Status = models.StatusParsed
	e.ParsedData = data
	e.ParsingModel = model
	e.ErrorMessage = ""
	e.CorrectedData = nil
	e.CorrectionDiff = nil
	e.CorrectedAt = nil
	return nil
}

func (s *fakeStore) SaveParseFailure(_ context.Context, id int64, errMsg string) error {
	s.savedFailure[id] = errMsg
	e := s.emails[id]
	e.Status = models.StatusFailed
	e.ErrorMessage = errMsg
	return nil
}

func (s *fakeStore) SaveCorrection(_ context.Context, id int64, corrected map[string]any, diff []models.DiffEntry) error {
	s.savedCorrection[id] = diff
	e := s.emails[id]
	e.Status = models.StatusReviewed
	e.CorrectedData = corrected
	e.CorrectionDiff = diff
	now := time.Now()
	e.CorrectedAt = &now
	return nil
}

// fakeSchemas always returns the default schema.
type fakeSchemas struct{}

func (fakeSchemas) Load(context.Context) (schema.Doc, schema.LoadInfo) {
	return schema.DefaultSchema(), schema.LoadInfo{}
}

// fakeExtractor returns a canned result, or panics when told to.
type fakeExtractor struct {
	result extract.Result
	panics bool
}

func (f *fakeExtractor) Extract(context.Context, extract.Input) extract.Result {
	if f.panics {
		panic("model client blew up")
	}
	return f.result
}

// fakeLocker simulates the per-email parse lock.
type fakeLocker struct {
	held     bool
	acquired []int64
	released []int64
	err      error
}

func (l *fakeLocker) Acquire(_ context.Context, id int64) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held {
		return false, nil
	}
	l.acquired = append(l.acquired, id)
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, id int64) error {
	l.released = append(l.released, id)
	return nil
}

// fakePublisher collects outcome events.
type fakePublisher struct {
	events []events.ExtractionEvent
}

func (p *fakePublisher) PublishOutcome(_ context.Context, e events.ExtractionEvent) error {
	p.events = append(p.events, e)
	return nil
}

func pendingEmail(id int64) *models.Email {
	return &models.Email{
		ID:         id,
		Subject:    "Partnership Opportunity",
		Sender:     "john@techblog.com",
		SenderName: "John Smith",
		BodyText:   "We would like to partner with you.",
		Status:     models.StatusPending,
	}
}

// TestParseOne_Success verifies the happy path: parsing transition, saved
// data, and an outcome event.
func TestParseOne_Success(t *testing.T) {
	store := newFakeStore(pendingEmail(1))
	publisher := &fakePublisher{}
	locker := &fakeLocker{}

	c := New(Config{
		Store:   store,
		Schemas: fakeSchemas{},
		Extractor: &fakeExtractor{result: extract.Result{
			Success: true,
			Data:    map[string]any{"company_name": "TechBlog Network", "offer_type": "partnership"},
			Model:   "gpt-4-turbo-preview",
		}},
		Locks:     locker,
		Publisher: publisher,
	})

	outcome, err := c.ParseOne(context.Background(), 1)
	if err != nil {
		t.Fatalf("ParseOne: %v", err)
	}

	if outcome.ParsedData["company_name"] != "TechBlog Network" {
		t.Errorf("parsed company_name = %v", outcome.ParsedData["company_name"])
	}
	if len(store.markedParsing) != 1 || store.markedParsing[0] != 1 {
		t.Errorf("markedParsing = %v, want [1]", store.markedParsing)
	}
	if store.emails[1].Status != models.StatusParsed {
		t.Errorf("status = %q, want parsed", store.emails[1].Status)
	}
	if len(locker.released) != 1 {
		t.Errorf("lock released %d times, want 1", len(locker.released))
	}
	if len(publisher.events) != 1 || publisher.events[0].Status != string(models.StatusParsed) {
		t.Errorf("events = %+v, want one parsed event", publisher.events)
	}
}

// TestParseOne_ReparseClearsCorrections verifies a fresh parse wipes any
// prior human correction.
func TestParseOne_ReparseClearsCorrections(t *testing.T) {
	email := pendingEmail(2)
	email.Status = models.StatusReviewed
	email.ParsedData = map[string]any{"company_name": "Old Corp"}
	email.CorrectedData = map[string]any{"company_name": "Corrected Corp"}
	email.CorrectionDiff = []models.DiffEntry{{Field: "company_name", ChangeType: models.ChangeModified}}
	now := time.Now()
	email.CorrectedAt = &now

	store := newFakeStore(email)
	c := New(Config{
		Store:   store,
		Schemas: fakeSchemas{},
		Extractor: &fakeExtractor{result: extract.Result{
			Success: true,
			Data:    map[string]any{"company_name": "Fresh Corp"},
			Model:   "gpt-4-turbo-preview",
		}},
	})

	if _, err := c.ParseOne(context.Background(), 2); err != nil {
		t.Fatalf("ParseOne: %v", err)
	}

	if email.CorrectedData != nil || email.CorrectionDiff != nil || email.CorrectedAt != nil {
		t.Errorf("correction fields not cleared: data=%v diff=%v at=%v",
			email.CorrectedData, email.CorrectionDiff, email.CorrectedAt)
	}
	if email.ParsedData["company_name"] != "Fresh Corp" {
		t.Errorf("parsed data = %v, want fresh output", email.ParsedData)
	}
}

// TestParseOne_NotFound verifies the missing-email error.
func TestParseOne_NotFound(t *testing.T) {
	c := New(Config{
		Store:     newFakeStore(),
		Schemas:   fakeSchemas{},
		Extractor: &fakeExtractor{},
	})

	_, err := c.ParseOne(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestParseOne_NoContent verifies an empty body is rejected before any state
// change.
func TestParseOne_NoContent(t *testing.T) {
	email := pendingEmail(3)
	email.BodyText = ""
	store := newFakeStore(email)

	c := New(Config{
		Store:     store,
		Schemas:   fakeSchemas{},
		Extractor: &fakeExtractor{},
	})

	_, err := c.ParseOne(context.Background(), 3)
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("err = %v, want ErrNoContent", err)
	}
	if len(store.markedParsing) != 0 {
		t.Errorf("markedParsing = %v, want no transitions", store.markedParsing)
	}
	if email.Status != models.StatusPending {
		t.Errorf("status = %q, want pending (unchanged)", email.Status)
	}
}

// TestParseOne_FailureKeepsPriorData verifies a failed attempt records the
// error but leaves earlier parsed data in place.
func TestParseOne_FailureKeepsPriorData(t *testing.T) {
	email := pendingEmail(4)
	email.Status = models.StatusParsed
	email.ParsedData = map[string]any{"company_name": "Earlier Corp"}

	store := newFakeStore(email)
	publisher := &fakePublisher{}

	c := New(Config{
		Store:     store,
		Schemas:   fakeSchemas{},
		Extractor: &fakeExtractor{result: extract.Result{Error: "invalid JSON response from model"}},
		Publisher: publisher,
	})

	_, err := c.ParseOne(context.Background(), 4)
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}

	if email.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", email.Status)
	}
	if email.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
	if email.ParsedData["company_name"] != "Earlier Corp" {
		t.Errorf("prior parsed data lost: %v", email.ParsedData)
	}
	if len(publisher.events) != 1 || publisher.events[0].Status != string(models.StatusFailed) {
		t.Errorf("events = %+v, want one failed event", publisher.events)
	}
}

// TestParseOne_PanicBecomesFailure verifies the recovery boundary converts a
// panic into failed status instead of crashing the process.
func TestParseOne_PanicBecomesFailure(t *testing.T) {
	email := pendingEmail(5)
	store := newFakeStore(email)

	c := New(Config{
		Store:     store,
		Schemas:   fakeSchemas{},
		Extractor: &fakeExtractor{panics: true},
	})

	_, err := c.ParseOne(context.Background(), 5)
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
	if email.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", email.Status)
	}
}

// TestParseOne_PersistErrorEndsInFailed verifies a write failure after a
// successful extraction still leaves the email in a terminal status rather
// than stuck in parsing.
func TestParseOne_PersistErrorEndsInFailed(t *testing.T) {
	email := pendingEmail(9)
	store := newFakeStore(email)
	store.saveSuccessErr = errors.New("connection reset")

	c := New(Config{
		Store:   store,
		Schemas: fakeSchemas{},
		Extractor: &fakeExtractor{result: extract.Result{
			Success: true,
			Data:    map[string]any{"company_name": "Acme"},
			Model:   "gpt-4-turbo-preview",
		}},
	})

	_, err := c.ParseOne(context.Background(), 9)
	if err == nil {
		t.Fatal("err = nil, want persistence error")
	}
	if email.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", email.Status)
	}
	if msg := store.savedFailure[9]; !strings.Contains(msg, "persist parse result") {
		t.Errorf("failure message = %q, want persist context", msg)
	}
}

// TestParseOne_AlreadyParsing verifies a held lock rejects the attempt.
func TestParseOne_AlreadyParsing(t *testing.T) {
	store := newFakeStore(pendingEmail(6))

	c := New(Config{
		Store:     store,
		Schemas:   fakeSchemas{},
		Extractor: &fakeExtractor{},
		Locks:     &fakeLocker{held: true},
	})

	_, err := c.ParseOne(context.Background(), 6)
	if !errors.Is(err, ErrAlreadyParsing) {
		t.Errorf("err = %v, want ErrAlreadyParsing", err)
	}
	if len(store.markedParsing) != 0 {
		t.Errorf("markedParsing = %v, want no transitions", store.markedParsing)
	}
}

// TestParseOne_LockErrorProceeds verifies a lock-store outage does not block
// parsing.
func TestParseOne_LockErrorProceeds(t *testing.T) {
	store := newFakeStore(pendingEmail(7))

	c := New(Config{
		Store:   store,
		Schemas: fakeSchemas{},
		Extractor: &fakeExtractor{result: extract.Result{
			Success: true,
			Data:    map[string]any{"offer_type": "sponsored"},
			Model:   "gpt-4-turbo-preview",
		}},
		Locks: &fakeLocker{err: errors.New("redis unreachable")},
	})

	if _, err := c.ParseOne(context.Background(), 7); err != nil {
		t.Fatalf("ParseOne: %v", err)
	}
}

// TestCorrect_SavesDiff verifies a correction computes and persists the diff
// and moves the email to reviewed.
func TestCorrect_SavesDiff(t *testing.T) {
	email := pendingEmail(8)
	email.Status = models.StatusParsed
	email.ParsedData = map[string]any{
		"company_name": "TechBlog Network",
		"offer_type":   "partnership",
	}
	store := newFakeStore(email)

	c := New(Config{
		Store:     store,
		Schemas:   fakeSchemas{},
		Extractor: &fakeExtractor{},
	})

	report, err := c.Correct(context.Background(), 8, map[string]any{
		"company_name": "TechBlog Network",
		"offer_type":   "guest_post",
	})
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}

	if len(report.Diff) != 1 {
		t.Fatalf("len(diff) = %d, want 1: %+v", len(report.Diff), report.Diff)
	}
	if report.Diff[0].Field != "offer_type" || report.Diff[0].ChangeType != models.ChangeModified {
		t.Errorf("diff = %+v, want modified offer_type", report.Diff[0])
	}
	if email.Status != models.StatusReviewed {
		t.Errorf("status = %q, want reviewed", email.Status)
	}
}

// TestCorrect_NeverParsedTreatsOriginalAsEmpty verifies correcting an email
// with no machine output reports every field as added.
func TestCorrect_NeverParsedTreatsOriginalAsEmpty(t *testing.T) {
	email := pendingEmail(9)
	store := newFakeStore(email)

	c := New(Config{
		Store:     store,
		Schemas:   fakeSchemas{},
		Extractor: &fakeExtractor{},
	})

	report, err := c.Correct(context.Background(), 9, map[string]any{"company_name": "Acme"})
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if len(report.Diff) != 1 || report.Diff[0].ChangeType != models.ChangeAdded {
		t.Errorf("diff = %+v, want one added entry", report.Diff)
	}
}

// TestCorrect_EmptyRejected verifies an empty correction body is rejected.
func TestCorrect_EmptyRejected(t *testing.T) {
	store := newFakeStore(pendingEmail(10))

	c := New(Config{
		Store:     store,
		Schemas:   fakeSchemas{},
		Extractor: &fakeExtractor{},
	})

	if _, err := c.Correct(context.Background(), 10, nil); !errors.Is(err, ErrEmptyCorrection) {
		t.Errorf("err = %v, want ErrEmptyCorrection", err)
	}
	if _, err := c.Correct(context.Background(), 10, map[string]any{}); !errors.Is(err, ErrEmptyCorrection) {
		t.Errorf("err = %v, want ErrEmptyCorrection", err)
	}
}
