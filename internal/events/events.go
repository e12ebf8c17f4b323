// Package events implements visibility-gated portal events with signups and
// polls.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/platform/token"

	"github.com/vereinswerk/portal/internal/auth"
	"github.com/vereinswerk/portal/internal/store"
)

// maxPollOptions caps how many answer choices one poll may carry.
const maxPollOptions = 20

// Summary is the list view of an event.
type Summary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
	StartsAt string `json:"startsAt"`
	Price    string `json:"price"`
	ImageURL string `json:"imageUrl"`
	IsPublic bool   `json:"isPublic"`
}

// PollOption is one answer choice presented to a viewer.
type PollOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Poll is the viewer's poll state on an event detail.
type Poll struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Options       []PollOption `json:"options"`
	VotedOptionID string       `json:"votedOptionId,omitempty"`
}

// Registration is the viewer's signup state on an event detail.
type Registration struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Detail is the full event view.
type Detail struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Location          string        `json:"location"`
	StartsAt          string        `json:"startsAt"`
	Price             string        `json:"price"`
	Description       string        `json:"description"`
	ImageURL          string        `json:"imageUrl"`
	IsPublic          bool          `json:"isPublic"`
	TargetAll         bool          `json:"targetAll"`
	TargetAbteilungID string        `json:"targetAbteilungId"`
	TargetMemberIDs   []string      `json:"targetMemberIds"`
	Poll              *Poll         `json:"poll"`
	Registration      *Registration `json:"registration"`
}

// Input carries event fields for create and update. Price uses the German
// decimal comma; PollOptions is newline-separated.
type Input struct {
	Title             string   `json:"title"`
	Location          string   `json:"location"`
	StartsAt          string   `json:"startsAt"`
	Price             string   `json:"price"`
	Description       string   `json:"description"`
	IsPublic          bool     `json:"isPublic"`
	TargetAll         bool     `json:"targetAll"`
	TargetAbteilungID string   `json:"targetAbteilungId"`
	TargetMemberIDs   []string `json:"targetMemberIds"`
	PollQuestion      string   `json:"pollQuestion"`
	PollOptions       string   `json:"pollOptions"`
}

// Service implements event listing, signups, votes, and admin management.
type Service struct {
	store store.EventStore
	now   func() time.Time
}

// NewService creates an events service.
func NewService(eventStore store.EventStore) *Service {
	return &Service{store: eventStore, now: time.Now}
}

// WithClock overrides the clock in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Visible reports whether a viewer may see an event. Public events are open
// to anonymous viewers; everything else needs a session and a matching
// target: all members, the viewer's department, or an explicit member ID.
func Visible(event store.Event, viewer *auth.Identity) bool {
	if event.IsPublic {
		return true
	}
	if viewer == nil {
		return false
	}
	if event.TargetAll {
		return true
	}
	if event.TargetAbteilungID != "" && viewer.AbteilungID != "" && event.TargetAbteilungID == viewer.AbteilungID {
		return true
	}
	if viewer.MemberID != "" {
		for _, id := range targetMemberIDs(event) {
			if id == viewer.MemberID {
				return true
			}
		}
	}
	return false
}

// VisibleEvents lists the events a viewer may see, latest start first.
func (s *Service) VisibleEvents(ctx context.Context, viewer *auth.Identity) ([]Summary, error) {
	all, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeInternal, "list events", err)
	}
	visible := []Summary{}
	for _, event := range all {
		if Visible(event, viewer) {
			visible = append(visible, toSummary(event))
		}
	}
	return visible, nil
}

// EventDetail loads one event for a viewer, including the viewer's poll and
// registration state. The visibility predicate is the same one the list
// uses, so an event hidden from the list is also hidden here.
func (s *Service) EventDetail(ctx context.Context, id string, viewer *auth.Identity) (Detail, error) {
	event, err := s.getEvent(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !Visible(event, viewer) {
		return Detail{}, perrors.New(perrors.CodeForbidden, "no access to this event")
	}

	detail := Detail{
		ID:                event.ID,
		Title:             event.Title,
		Location:          event.Location,
		StartsAt:          event.StartsAt,
		Price:             PriceFromCents(event.PriceCents),
		Description:       event.Description,
		ImageURL:          imageURL(event),
		IsPublic:          event.IsPublic,
		TargetAll:         event.TargetAll,
		TargetAbteilungID: event.TargetAbteilungID,
		TargetMemberIDs:   targetMemberIDs(event),
	}

	poll, options, err := s.store.GetPollByEvent(ctx, id)
	switch {
	case err == nil:
		view := &Poll{ID: poll.ID, Question: poll.Question, Options: []PollOption{}}
		for _, option := range options {
			view.Options = append(view.Options, PollOption{ID: option.ID, Text: option.Text})
		}
		if viewer != nil {
			vote, err := s.store.GetPollVote(ctx, poll.ID, viewer.Email)
			if err == nil {
				view.VotedOptionID = vote.OptionID
			} else if !errors.Is(err, store.ErrNotFound) {
				return Detail{}, perrors.Wrap(perrors.CodeInternal, "load poll vote", err)
			}
		}
		detail.Poll = view
	case errors.Is(err, store.ErrNotFound):
	default:
		return Detail{}, perrors.Wrap(perrors.CodeInternal, "load poll", err)
	}

	if viewer != nil {
		registration, err := s.store.GetRegistration(ctx, id, viewer.Email)
		if err == nil {
			detail.Registration = &Registration{Name: registration.Name, CreatedAt: registration.CreatedAt}
		} else if !errors.Is(err, store.ErrNotFound) {
			return Detail{}, perrors.Wrap(perrors.CodeInternal, "load registration", err)
		}
	}
	return detail, nil
}

// Register signs a viewer up for an event they can see. Re-registering
// replaces the earlier signup.
func (s *Service) Register(ctx context.Context, id string, viewer *auth.Identity, name string) error {
	if viewer == nil {
		return perrors.New(perrors.CodeSessionInvalid, "login required")
	}
	event, err := s.getEvent(ctx, id)
	if err != nil {
		return err
	}
	if !Visible(event, viewer) {
		return perrors.New(perrors.CodeForbidden, "no access to this event")
	}

	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName = viewer.Email
	}
	registration := store.Registration{
		EventID:   id,
		Email:     strings.ToLower(viewer.Email),
		MemberID:  viewer.MemberID,
		Name:      displayName,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.PutRegistration(ctx, registration); err != nil {
		return perrors.Wrap(perrors.CodeInternal, "store registration", err)
	}
	return nil
}

// Vote records a member's poll answer. The option must belong to the
// event's poll; voting again replaces the earlier answer.
func (s *Service) Vote(ctx context.Context, eventID, email, optionID string) error {
	poll, _, err := s.store.GetPollByEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return perrors.New(perrors.CodeNotFound, "event has no poll")
		}
		return perrors.Wrap(perrors.CodeInternal, "load poll", err)
	}
	if _, err := s.store.GetPollOption(ctx, poll.ID, optionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return perrors.New(perrors.CodeValidation, "option does not belong to this poll")
		}
		return perrors.Wrap(perrors.CodeInternal, "load poll option", err)
	}

	vote := store.PollVote{
		PollID:    poll.ID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		OptionID:  optionID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.PutPollVote(ctx, vote); err != nil {
		return perrors.Wrap(perrors.CodeInternal, "store vote", err)
	}
	return nil
}

// Create stores a new event and, when a poll is provided, its poll.
func (s *Service) Create(ctx context.Context, input Input, createdBy string) (string, error) {
	if err := validateInput(input); err != nil {
		return "", err
	}
	id, err := token.NewID()
	if err != nil {
		return "", perrors.Wrap(perrors.CodeInternal, "generate event id", err)
	}
	now := s.now().UTC()
	event := toRecord(id, input, createdBy, now, now)
	if err := s.store.PutEvent(ctx, event); err != nil {
		return "", perrors.Wrap(perrors.CodeInternal, "store event", err)
	}
	if err := s.applyPoll(ctx, id, input); err != nil {
		return "", err
	}
	return id, nil
}

// Update replaces an event's fields. A provided poll replaces the existing
// one and clears all votes; without one the poll stays untouched.
func (s *Service) Update(ctx context.Context, id string, input Input) error {
	if err := validateInput(input); err != nil {
		return err
	}
	existing, err := s.getEvent(ctx, id)
	if err != nil {
		return err
	}
	event := toRecord(id, input, existing.CreatedBy, existing.CreatedAt, s.now().UTC())
	event.ImagePath = existing.ImagePath
	if err := s.store.PutEvent(ctx, event); err != nil {
		return perrors.Wrap(perrors.CodeInternal, "store event", err)
	}
	return s.applyPoll(ctx, id, input)
}

// Delete removes an event with its registrations, poll, options, and votes.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteEvent(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return perrors.New(perrors.CodeNotFound, "event not found")
	default:
		return perrors.Wrap(perrors.CodeInternal, "delete event", err)
	}
}

// AllEvents lists every event for administrators, latest start first.
func (s *Service) AllEvents(ctx context.Context) ([]Summary, error) {
	all, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeInternal, "list events", err)
	}
	summaries := []Summary{}
	for _, event := range all {
		summaries = append(summaries, toSummary(event))
	}
	return summaries, nil
}

// Registrations lists an event's signups for administrators.
func (s *Service) Registrations(ctx context.Context, eventID string) ([]store.Registration, error) {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	registrations, err := s.store.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeInternal, "list registrations", err)
	}
	return registrations, nil
}

func (s *Service) getEvent(ctx context.Context, id string) (store.Event, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Event{}, perrors.New(perrors.CodeNotFound, "event not found")
		}
		return store.Event{}, perrors.Wrap(perrors.CodeInternal, "load event", err)
	}
	return event, nil
}

func (s *Service) applyPoll(ctx context.Context, eventID string, input Input) error {
	question := strings.TrimSpace(input.PollQuestion)
	options := ParsePollOptions(input.PollOptions)
	if question == "" || len(options) == 0 {
		return nil
	}

	pollID, err := token.NewID()
	if err != nil {
		return perrors.Wrap(perrors.CodeInternal, "generate poll id", err)
	}
	now := s.now().UTC()
	poll := store.Poll{ID: pollID, EventID: eventID, Question: question, CreatedAt: now, UpdatedAt: now}
	records := make([]store.PollOption, 0, len(options))
	for _, text := range options {
		optionID, err := token.NewID()
		if err != nil {
			return perrors.Wrap(perrors.CodeInternal, "generate option id", err)
		}
		records = append(records, store.PollOption{ID: optionID, PollID: pollID, Text: text})
	}
	if err := s.store.ReplacePoll(ctx, poll, records); err != nil {
		return perrors.Wrap(perrors.CodeInternal, "store poll", err)
	}
	return nil
}

func validateInput(input Input) error {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.StartsAt) == "" {
		return perrors.New(perrors.CodeValidation, "title and start date are required")
	}
	return nil
}

// ParsePollOptions splits newline-separated option text, trims entries,
// drops blanks, and caps the list at the poll option limit.
func ParsePollOptions(text string) []string {
	var options []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			options = append(options, line)
		}
		if len(options) == maxPollOptions {
			break
		}
	}
	return options
}

// CentsFromPrice parses a German-format price ("12,50") into cents.
// Unparseable input counts as free.
func CentsFromPrice(price string) int {
	value := strings.TrimSpace(strings.ReplaceAll(price, ",", "."))
	if value == "" {
		return 0
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0
	}
	return int(math.Round(n * 100))
}

// PriceFromCents renders cents as a German-format price string.
func PriceFromCents(cents int) string {
	return strings.Replace(strconv.FormatFloat(float64(cents)/100, 'f', 2, 64), ".", ",", 1)
}

func toSummary(event store.Event) Summary {
	return Summary{
		ID:       event.ID,
		Title:    event.Title,
		Location: event.Location,
		StartsAt: event.StartsAt,
		Price:    PriceFromCents(event.PriceCents),
		ImageURL: imageURL(event),
		IsPublic: event.IsPublic,
	}
}

func imageURL(event store.Event) string {
	if event.ImagePath == "" {
		return ""
	}
	return "/uploads/" + event.ImagePath
}

func toRecord(id string, input Input, createdBy string, createdAt, updatedAt time.Time) store.Event {
	memberIDs := input.TargetMemberIDs
	if memberIDs == nil {
		memberIDs = []string{}
	}
	idsJSON, err := json.Marshal(memberIDs)
	if err != nil {
		idsJSON = []byte("[]")
	}
	return store.Event{
		ID:                  id,
		Title:               strings.TrimSpace(input.Title),
		Location:            strings.TrimSpace(input.Location),
		StartsAt:            strings.TrimSpace(input.StartsAt),
		PriceCents:          CentsFromPrice(input.Price),
		Description:         strings.TrimSpace(input.Description),
		IsPublic:            input.IsPublic,
		TargetAll:           input.TargetAll,
		TargetAbteilungID:   strings.TrimSpace(input.TargetAbteilungID),
		TargetMemberIDsJSON: string(idsJSON),
		CreatedBy:           createdBy,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}
}

func targetMemberIDs(event store.Event) []string {
	if event.TargetMemberIDsJSON == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(event.TargetMemberIDsJSON), &ids); err != nil {
		log.Printf("events: bad member id json on %s: %v", event.ID, err)
		return []string{}
	}
	return ids
}
