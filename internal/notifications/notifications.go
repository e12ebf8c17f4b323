// Package notifications implements targeted member notifications with
// optional email fanout.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"sort"
	"strings"
	"time"

	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/platform/token"

	"github.com/vereinswerk/portal/internal/directory"
	"github.com/vereinswerk/portal/internal/mail"
	"github.com/vereinswerk/portal/internal/store"
)

// Target types.
const (
	TargetAll      = "all"
	TargetEmail    = "email"
	TargetMemberID = "mitglied_id"
)

// Target addresses one audience of a notification. A notification carries an
// ordered list of targets and reaches a member when any entry matches.
type Target struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Attachment is file metadata rendered into the notification and its
// broadcast mail. The portal stores metadata only.
type Attachment struct {
	Name string `json:"name"`
	Mime string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Notification is the service-level view of one notification.
type Notification struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	BodyText    string       `json:"bodyText"`
	BodyHTML    string       `json:"bodyHtml"`
	CreatedAt   time.Time    `json:"createdAt"`
	CreatedBy   string       `json:"createdBy"`
	SendEmail   bool         `json:"sendEmail"`
	Targets     []Target     `json:"targets"`
	Attachments []Attachment `json:"attachments"`
	ReadAt      *time.Time   `json:"readAt"`
}

// Inbox is a member's notification view.
type Inbox struct {
	UnreadCount int            `json:"unreadCount"`
	Items       []Notification `json:"items"`
}

// CreateInput carries a new notification.
type CreateInput struct {
	Title       string
	BodyText    string
	BodyHTML    string
	SendEmail   bool
	Targets     []Target
	Attachments []Attachment
	CreatedBy   string
}

// Service implements notification listing, creation, and fanout.
type Service struct {
	store     store.NotificationStore
	directory directory.Directory
	mailer    mail.Sender
	now       func() time.Time
}

// NewService creates a notifications service. The mailer may be nil when
// outbound mail is disabled entirely.
func NewService(notificationStore store.NotificationStore, dir directory.Directory, mailer mail.Sender) *Service {
	return &Service{
		store:     notificationStore,
		directory: dir,
		mailer:    mailer,
		now:       time.Now,
	}
}

// WithClock overrides the clock in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Matches reports whether a target list reaches a member, identified by
// email and directory member IDs. Targets are OR-ed; emails compare
// case-insensitively.
func Matches(targets []Target, email string, memberIDs []string) bool {
	for _, target := range targets {
		switch target.Type {
		case TargetAll:
			return true
		case TargetEmail:
			if strings.EqualFold(target.Value, email) {
				return true
			}
		case TargetMemberID:
			for _, id := range memberIDs {
				if id == target.Value {
					return true
				}
			}
		}
	}
	return false
}

// ListForUser returns the notifications reaching a member, newest first,
// with per-user read state and the unread count.
func (s *Service) ListForUser(ctx context.Context, email string) (Inbox, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	memberIDs, err := s.directory.MemberIDs(ctx, email)
	if err != nil {
		return Inbox{}, err
	}

	all, err := s.store.ListNotifications(ctx)
	if err != nil {
		return Inbox{}, perrors.Wrap(perrors.CodeInternal, "list notifications", err)
	}
	reads, err := s.store.ListNotificationReads(ctx, email)
	if err != nil {
		return Inbox{}, perrors.Wrap(perrors.CodeInternal, "list notification reads", err)
	}
	readAt := make(map[string]time.Time, len(reads))
	for _, read := range reads {
		readAt[read.NotificationID] = read.ReadAt
	}

	inbox := Inbox{Items: []Notification{}}
	for _, record := range all {
		notification := fromRecord(record)
		if !Matches(notification.Targets, email, memberIDs) {
			continue
		}
		if at, ok := readAt[notification.ID]; ok {
			t := at
			notification.ReadAt = &t
		} else {
			inbox.UnreadCount++
		}
		inbox.Items = append(inbox.Items, notification)
	}
	return inbox, nil
}

// MarkRead records that a member has seen a notification. Re-marking moves
// the receipt to the new read time. Read receipts are independent of
// targeting.
func (s *Service) MarkRead(ctx context.Context, email, id string) error {
	read := store.NotificationRead{
		Email:          strings.ToLower(strings.TrimSpace(email)),
		NotificationID: id,
		ReadAt:         s.now().UTC(),
	}
	if err := s.store.PutNotificationRead(ctx, read); err != nil {
		return perrors.Wrap(perrors.CodeInternal, "mark notification read", err)
	}
	return nil
}

// Create persists a notification and, when requested, broadcasts it by
// email. A broadcast failure never fails creation.
func (s *Service) Create(ctx context.Context, input CreateInput) (string, error) {
	if strings.TrimSpace(input.Title) == "" || len(input.Targets) == 0 {
		return "", perrors.New(perrors.CodeValidation, "title and at least one target are required")
	}
	for _, target := range input.Targets {
		switch target.Type {
		case TargetAll, TargetEmail, TargetMemberID:
		default:
			return "", perrors.WithMetadata(perrors.CodeValidation, "unknown target type", map[string]string{
				"type": target.Type,
			})
		}
	}

	id, err := token.NewID()
	if err != nil {
		return "", perrors.Wrap(perrors.CodeInternal, "generate notification id", err)
	}
	targetsJSON, err := json.Marshal(input.Targets)
	if err != nil {
		return "", perrors.Wrap(perrors.CodeInternal, "encode targets", err)
	}
	attachments := input.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return "", perrors.Wrap(perrors.CodeInternal, "encode attachments", err)
	}

	record := store.Notification{
		ID:              id,
		Title:           input.Title,
		BodyText:        input.BodyText,
		BodyHTML:        input.BodyHTML,
		CreatedAt:       s.now().UTC(),
		CreatedBy:       input.CreatedBy,
		SendEmail:       input.SendEmail,
		TargetsJSON:     string(targetsJSON),
		AttachmentsJSON: string(attachmentsJSON),
	}
	if err := s.store.PutNotification(ctx, record); err != nil {
		return "", perrors.Wrap(perrors.CodeInternal, "store notification", err)
	}

	if input.SendEmail && s.mailer != nil {
		if err := s.broadcast(ctx, input); err != nil {
			log.Printf("notifications: broadcast %s: %v", id, err)
		}
	}
	return id, nil
}

// Delete removes a notification together with its read receipts.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteNotification(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return perrors.New(perrors.CodeNotFound, "notification not found")
	default:
		return perrors.Wrap(perrors.CodeInternal, "delete notification", err)
	}
}

// broadcast resolves the recipient set fresh from the directory and sends
// one mail per recipient. A single failed recipient never aborts the rest.
func (s *Service) broadcast(ctx context.Context, input CreateInput) error {
	recipients, err := s.resolveRecipients(ctx, input.Targets)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	body := broadcastHTML(input.Title, input.BodyText, input.BodyHTML, input.Attachments)
	for _, to := range recipients {
		msg := mail.Message{To: to, Subject: input.Title, HTML: body}
		if err := s.mailer.Send(ctx, msg); err != nil {
			log.Printf("notifications: mail to %s: %v", to, err)
		}
	}
	return nil
}

// resolveRecipients unions direct email targets, the current emails of
// member-ID targets, and every directory email when any "all" target exists,
// deduplicated case-insensitively.
func (s *Service) resolveRecipients(ctx context.Context, targets []Target) ([]string, error) {
	seen := map[string]struct{}{}
	add := func(email string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			seen[email] = struct{}{}
		}
	}

	var memberIDs []string
	broadcastAll := false
	for _, target := range targets {
		switch target.Type {
		case TargetAll:
			broadcastAll = true
		case TargetEmail:
			add(target.Value)
		case TargetMemberID:
			if id := strings.TrimSpace(target.Value); id != "" {
				memberIDs = append(memberIDs, id)
			}
		}
	}

	if len(memberIDs) > 0 {
		emails, err := s.directory.EmailsForMemberIDs(ctx, memberIDs)
		if err != nil {
			return nil, err
		}
		for _, email := range emails {
			add(email)
		}
	}
	if broadcastAll {
		emails, err := s.directory.AllEmails(ctx)
		if err != nil {
			return nil, err
		}
		for _, email := range emails {
			add(email)
		}
	}

	recipients := make([]string, 0, len(seen))
	for email := range seen {
		recipients = append(recipients, email)
	}
	sort.Strings(recipients)
	return recipients, nil
}

// broadcastHTML builds the mail body: escaped title heading, the HTML body
// or an escaped pre-wrapped text body, and the attachment name list.
func broadcastHTML(title, bodyText, bodyHTML string, attachments []Attachment) string {
	main := bodyHTML
	if main == "" {
		main = `<div style="white-space:pre-wrap">` + html.EscapeString(bodyText) + `</div>`
	}

	var attList strings.Builder
	if len(attachments) > 0 {
		attList.WriteString("<p><strong>Anhänge:</strong></p><ul>")
		for _, attachment := range attachments {
			attList.WriteString("<li>" + html.EscapeString(attachment.Name) + "</li>")
		}
		attList.WriteString("</ul>")
	}

	return fmt.Sprintf(
		`<div style="font-family:system-ui,sans-serif;line-height:1.6"><h2 style="margin:0 0 12px 0">%s</h2>%s%s</div>`,
		html.EscapeString(title), main, attList.String(),
	)
}

func fromRecord(record store.Notification) Notification {
	notification := Notification{
		ID:          record.ID,
		Title:       record.Title,
		BodyText:    record.BodyText,
		BodyHTML:    record.BodyHTML,
		CreatedAt:   record.CreatedAt,
		CreatedBy:   record.CreatedBy,
		SendEmail:   record.SendEmail,
		Targets:     []Target{},
		Attachments: []Attachment{},
	}
	if err := json.Unmarshal([]byte(record.TargetsJSON), &notification.Targets); err != nil {
		log.Printf("notifications: bad targets json on %s: %v", record.ID, err)
		notification.Targets = []Target{}
	}
	if record.AttachmentsJSON != "" {
		if err := json.Unmarshal([]byte(record.AttachmentsJSON), &notification.Attachments); err != nil {
			log.Printf("notifications: bad attachments json on %s: %v", record.ID, err)
			notification.Attachments = []Attachment{}
		}
	}
	return notification
}
