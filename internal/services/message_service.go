// Package services – MessageService
//
// This file implements MessageService, the message and seen ledger. It
// validates and authorizes sends, persists a message together with its
// per-recipient unseen rows and @mentions in one transaction, and keeps the
// seen state and unread counts that drive the unread streams.
//
// Fan-out happens after commit and is best effort: a failed broadcast or
// unread push is logged and never fails the send.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include room/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/auth"
	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/presence"
	"github.com/tbourn/go-chat-rooms/internal/repo"
	"github.com/tbourn/go-chat-rooms/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxIdempotencyKeyLen bounds client supplied Idempotency-Key values.
const maxIdempotencyKeyLen = 128

// mentionRE matches @username tokens; the character class follows the
// usernames accepted at sign-up.
var mentionRE = regexp.MustCompile(`@([\w.@+-]+)`)

// errReplay aborts a send transaction whose idempotency key was claimed
// concurrently.
var errReplay = errors.New("idempotency key already used")

// noticeCode tags member notices on the room channel.
const noticeCode = "member_notice"

// MessageService coordinates message persistence, seen state and fan-out.
type MessageService struct {
	DB       *gorm.DB
	Presence presence.Tracker
	Notifier Notifier
	Filter   ContentFilter

	// Optional guards
	MaxTextRunes   int
	IdempotencyTTL time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// SendInput is a client message. Type may be empty; it is then derived from
// the content.
type SendInput struct {
	Type           domain.MessageType
	Text           string
	FileID         *string
	ReplyToID      *string
	IdempotencyKey string
}

func (s *MessageService) tracer() trace.Tracer { return otel.Tracer("services/MessageService") }

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MessageService) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

func (s *MessageService) notifier() Notifier {
	if s.Notifier == nil {
		return NopNotifier{}
	}
	return s.Notifier
}

// Send posts a message from actor into roomID.
//
// TYPING, SENDING, ONLINE and NOTICE are broadcast to the room and never
// stored; Send then returns a nil view. A send carrying an idempotency key that was already
// used in the same room replays the stored message.
func (s *MessageService) Send(ctx context.Context, actor auth.Principal, roomID string, in SendInput) (*domain.MessageView, error) {
	ctx, span := s.tracer().Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", actor.ID),
			attribute.String("message.type", string(in.Type)),
		),
	)
	defer span.End()

	switch in.Type {
	case domain.MessageTyping, domain.MessageSending, domain.MessageOnline, domain.MessageNotice:
		return nil, s.fanOut(ctx, actor, roomID, in)
	case "", domain.MessageText, domain.MessageFile:
	default:
		return nil, ErrInvalidMessageType
	}

	// Normalize & validate content
	text := strings.TrimSpace(in.Text)
	hasFile := in.FileID != nil && *in.FileID != ""
	switch {
	case text == "" && !hasFile:
		return nil, ErrEmptyMessage
	case text != "" && hasFile:
		return nil, ErrBothTextAndFile
	}
	if s.MaxTextRunes > 0 && utf8.RuneCountInString(text) > s.MaxTextRunes {
		return nil, ErrTooLong
	}
	if text != "" && s.Filter != nil && !s.Filter.Clean(text) {
		return nil, ErrProfanity
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, ErrIdempotencyKey
	}
	if key != "" {
		if v, err := s.replay(ctx, actor.ID, roomID, key); err != nil || v != nil {
			return v, err
		}
	}

	// Authorize
	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return nil, err
	}
	m, err := memberOf(ctx, s.DB, roomID, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := requireWritable(room); err != nil {
		return nil, err
	}
	if err := requireCapability(m, permission.SendMessage); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		RoomID:       roomID,
		MembershipID: m.ID,
		SenderID:     actor.ID,
		Type:         domain.MessageText,
		CreatedAt:    s.now(),
	}
	if hasFile {
		f, err := repo.GetUpload(ctx, s.DB, *in.FileID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUploadNotFound
		}
		if err != nil {
			return nil, err
		}
		if f.OwnerID != actor.ID {
			return nil, ErrForbidden
		}
		msg.Type = domain.MessageFile
		msg.FileID = &f.ID
	} else {
		msg.Text = &text
	}
	if in.ReplyToID != nil && *in.ReplyToID != "" {
		parent, err := repo.GetMessage(ctx, s.DB, *in.ReplyToID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		if err != nil {
			return nil, err
		}
		if parent.RoomID != roomID {
			return nil, ErrReplyOutsideRoom
		}
		msg.ReplyToID = &parent.ID
	}

	online := s.online(ctx, roomID)
	if len(online) > 1 {
		msg.Seen = true
		seenAt := msg.CreatedAt
		msg.SeenAt = &seenAt
	}
	span.SetAttributes(attribute.Int("presence.online", len(online)))

	var members []string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateMessage(ctx, tx, msg); err != nil {
			return err
		}
		ids, err := repo.ActiveMemberIDs(ctx, tx, roomID)
		if err != nil {
			return err
		}
		members = ids
		if err := repo.CreateUnseen(ctx, tx, msg, unseenRecipients(ids, actor.ID, online, msg.Seen)); err != nil {
			return err
		}
		if msg.Text != nil {
			mentioned, err := repo.MemberIDsByUsername(ctx, tx, roomID, mentions(*msg.Text))
			if err != nil {
				return err
			}
			if err := repo.CreateMentions(ctx, tx, msg.ID, without(mentioned, actor.ID)); err != nil {
				return err
			}
		}
		if key != "" {
			_, err := repo.CreateIdempotency(ctx, tx, actor.ID, roomID, key, msg.ID, http.StatusCreated, s.idempotencyTTL())
			if errors.Is(err, repo.ErrDuplicate) {
				return errReplay
			}
			return err
		}
		return nil
	})
	if errors.Is(err, errReplay) {
		return s.replay(ctx, actor.ID, roomID, key)
	}
	if err != nil {
		return nil, err
	}

	views, err := s.views(ctx, []domain.Message{*msg})
	if err != nil {
		return nil, err
	}
	view := views[0]
	s.notifier().PublishMessage(roomID, view)
	s.pushUnread(ctx, members...)
	return &view, nil
}

// fanOut broadcasts a transient event from a member of roomID.
func (s *MessageService) fanOut(ctx context.Context, actor auth.Principal, roomID string, in SendInput) error {
	if _, err := roomFor(ctx, s.DB, roomID); err != nil {
		return err
	}
	if _, err := memberOf(ctx, s.DB, roomID, actor.ID); err != nil {
		return err
	}
	n := s.notifier()
	switch in.Type {
	case domain.MessageOnline:
		ids := slices.Clone(s.online(ctx, roomID))
		if !slices.Contains(ids, actor.ID) {
			ids = append(ids, actor.ID)
		}
		slices.Sort(ids)
		n.PublishOnline(roomID, ids)
	case domain.MessageNotice:
		text := strings.TrimSpace(in.Text)
		switch {
		case text == "":
			return ErrEmptyMessage
		case s.MaxTextRunes > 0 && utf8.RuneCountInString(text) > s.MaxTextRunes:
			return ErrTooLong
		case s.Filter != nil && !s.Filter.Clean(text):
			return ErrProfanity
		}
		n.PublishNotice(roomID, noticeCode, text)
	default:
		n.PublishTyping(roomID, actor.ID)
	}
	return nil
}

// replay returns the message stored under key, or nil when the key is
// unused or expired.
func (s *MessageService) replay(ctx context.Context, userID, roomID, key string) (*domain.MessageView, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, roomID, key, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msg, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []domain.Message{*msg})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// online reads the presence set. An unreachable tracker counts as nobody
// online so sends keep working.
func (s *MessageService) online(ctx context.Context, roomID string) []string {
	if s.Presence == nil {
		return nil
	}
	ids, err := s.Presence.Online(ctx, roomID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("room_id", roomID).Msg("presence unavailable")
		return nil
	}
	return ids
}

// MarkSeen clears actor's unseen rows in roomID and flips the seen flag of
// other members' messages. In a ticket a staff reader does not mark other
// staff messages as seen. Any change pushes fresh unread summaries to every
// active member. It returns the number of flipped messages.
func (s *MessageService) MarkSeen(ctx context.Context, actor auth.Principal, roomID string) (int64, error) {
	ctx, span := s.tracer().Start(ctx, "MarkSeen",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", actor.ID),
		),
	)
	defer span.End()

	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return 0, err
	}
	if _, err := memberOf(ctx, s.DB, roomID, actor.ID); err != nil {
		return 0, err
	}
	var skip []string
	if room.Kind == domain.RoomTicket && actor.IsStaff {
		if skip, err = repo.StaffMemberIDs(ctx, s.DB, roomID); err != nil {
			return 0, err
		}
	}
	res, err := repo.MarkSeen(ctx, s.DB, roomID, actor.ID, skip, s.now())
	if err != nil {
		return 0, err
	}
	span.SetAttributes(
		attribute.Int64("unseen.cleared", res.Cleared),
		attribute.Int64("messages.flipped", res.Flipped),
	)
	if res.Changed() {
		members, err := repo.ActiveMemberIDs(ctx, s.DB, roomID)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("room_id", roomID).Msg("list members for unread push failed")
			members = []string{actor.ID}
		}
		s.pushUnread(ctx, members...)
	}
	return res.Flipped, nil
}

// UnreadSummary returns one entry per live room of actor, newest activity
// first.
func (s *MessageService) UnreadSummary(ctx context.Context, actor auth.Principal) ([]domain.UnreadEntry, error) {
	ctx, span := s.tracer().Start(ctx, "UnreadSummary",
		trace.WithAttributes(attribute.String("user.id", actor.ID)),
	)
	defer span.End()
	return repo.UnreadSummary(ctx, s.DB, actor.ID)
}

// pushUnread sends fresh summaries to userIDs. Failures are logged.
func (s *MessageService) pushUnread(ctx context.Context, userIDs ...string) {
	n := s.notifier()
	for _, uid := range userIDs {
		entries, err := repo.UnreadSummary(ctx, s.DB, uid)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("user_id", uid).Msg("unread summary failed")
			continue
		}
		n.PublishUnread(uid, entries)
	}
}

// Offset returns the start offset of the page holding actor's first unseen
// message, or of the last page when nothing is unseen.
func (s *MessageService) Offset(ctx context.Context, actor auth.Principal, roomID string, pageSize int) (int, error) {
	ctx, span := s.tracer().Start(ctx, "Offset",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if pageSize <= 0 {
		return 0, ErrInvalidPageSize
	}
	room, err := roomFor(ctx, s.DB, roomID)
	if err != nil {
		return 0, err
	}
	if _, err := memberOf(ctx, s.DB, roomID, actor.ID); err != nil {
		return 0, err
	}
	before, found, err := newRoomView(s.DB, *room).CountUntilLastSeen(ctx, actor.ID)
	if err != nil {
		return 0, err
	}
	if found {
		return utils.PageStart(before, pageSize), nil
	}
	total, err := repo.CountMessages(ctx, s.DB, roomID)
	if err != nil || total == 0 {
		return 0, err
	}
	return utils.PageStart(total-1, pageSize), nil
}

// ListPage returns messages in (created_at, id) order with defaults for
// invalid page/pageSize. Only members may read a room's history.
func (s *MessageService) ListPage(ctx context.Context, actor auth.Principal, roomID string, page, pageSize int) ([]domain.MessageView, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, err := roomFor(ctx, s.DB, roomID); err != nil {
		return nil, 0, err
	}
	if _, err := memberOf(ctx, s.DB, roomID, actor.ID); err != nil {
		return nil, 0, err
	}

	page, pageSize = utils.Normalize(page, pageSize)
	offset := utils.Offset(page, pageSize)

	total, err := repo.CountMessages(ctx, s.DB, roomID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.MessageView{}, 0, nil
	}
	msgs, err := repo.ListMessagesPage(ctx, s.DB, roomID, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, msgs)
	return views, total, err
}

// views resolves senders and files for msgs in two queries.
func (s *MessageService) views(ctx context.Context, msgs []domain.Message) ([]domain.MessageView, error) {
	senderIDs := make([]string, 0, len(msgs))
	fileIDs := make([]string, 0)
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
		if m.FileID != nil {
			fileIDs = append(fileIDs, *m.FileID)
		}
	}
	users, err := repo.GetUsers(ctx, s.DB, senderIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	files, err := repo.GetUploads(ctx, s.DB, fileIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		sender, ok := byID[m.SenderID]
		if !ok {
			sender = domain.User{ID: m.SenderID}
		}
		var file *domain.FileUpload
		if m.FileID != nil {
			if f, ok := files[*m.FileID]; ok {
				file = &f
			}
		}
		out = append(out, domain.NewMessageView(m, sender, file))
	}
	return out, nil
}

// unseenRecipients lists the members who get an unseen row: everyone but
// the sender, minus those online when the message was delivered live.
func unseenRecipients(members []string, senderID string, online []string, seen bool) []string {
	skip := map[string]struct{}{senderID: {}}
	if seen {
		for _, id := range online {
			skip[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(members))
	for _, id := range members {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// mentions extracts distinct @usernames from text.
func mentions(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range mentionRE.FindAllStringSubmatch(text, -1) {
		name := strings.TrimRight(m[1], ".")
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func without(ids []string, drop string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
