// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the message ledger: message rows, the
// per-recipient unseen rows, mentions and the queries behind unread counts
// and "jump to first unread" pagination.
package repo

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-rooms/internal/domain"
)

// CreateMessage inserts m, filling ID and CreatedAt when empty.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
}

// CreateUnseen records that each of userIDs has not seen m.
func CreateUnseen(ctx context.Context, db *gorm.DB, m *domain.Message, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]domain.UnseenMessage, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, domain.UnseenMessage{MessageID: m.ID, UserID: uid, RoomID: m.RoomID})
	}
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 500).Error
}

// CreateMentions records @mentions of userIDs in messageID.
func CreateMentions(ctx context.Context, db *gorm.DB, messageID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]domain.MessageMention, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, domain.MessageMention{MessageID: messageID, UserID: uid})
	}
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE room_id = ?", roomID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, roomID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MentionedUserIDs returns the users mentioned in messageID.
func MentionedUserIDs(ctx context.Context, db *gorm.DB, messageID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.MessageMention{}).
		Where("message_id = ?", messageID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// SeenResult reports what a MarkSeen call changed.
type SeenResult struct {
	// Cleared is the number of the reader's unseen rows removed.
	Cleared int64
	// Flipped is the number of messages whose seen flag went false -> true.
	Flipped int64
}

// Changed reports whether anything was updated.
func (r SeenResult) Changed() bool { return r.Cleared > 0 || r.Flipped > 0 }

// MarkSeen clears readerID's unseen rows in roomID and flips the seen flag
// of messages not authored by the reader. Authors listed in skipAuthors keep
// their messages unflipped. seen_at is only stamped where it is NULL, so a
// repeated call changes nothing.
func MarkSeen(ctx context.Context, db *gorm.DB, roomID, readerID string, skipAuthors []string, now time.Time) (SeenResult, error) {
	var out SeenResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("room_id = ? AND user_id = ?", roomID, readerID).Delete(&domain.UnseenMessage{})
		if del.Error != nil {
			return del.Error
		}
		out.Cleared = del.RowsAffected

		q := tx.Model(&domain.Message{}).
			Where("room_id = ? AND seen = ? AND sender_id <> ?", roomID, false, readerID)
		if len(skipAuthors) > 0 {
			q = q.Where("sender_id NOT IN ?", skipAuthors)
		}
		upd := q.Updates(map[string]any{
			"seen":    true,
			"seen_at": gorm.Expr("COALESCE(seen_at, ?)", now),
		})
		if upd.Error != nil {
			return upd.Error
		}
		out.Flipped = upd.RowsAffected
		return nil
	})
	return out, err
}

// CountBeforeFirstUnseen locates readerID's earliest unseen message in roomID
// that the reader did not author and counts the room's messages strictly
// before it in (created_at, id) order. found is false when nothing is unseen.
func CountBeforeFirstUnseen(ctx context.Context, db *gorm.DB, roomID, readerID string) (before int64, found bool, err error) {
	var first []domain.Message
	err = db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("messages.*").
		Joins("JOIN message_unseen ON message_unseen.message_id = messages.id").
		Where("message_unseen.user_id = ? AND message_unseen.room_id = ? AND messages.sender_id <> ?", readerID, roomID, readerID).
		Order("messages.created_at ASC, messages.id ASC").
		Limit(1).
		Find(&first).Error
	if err != nil || len(first) == 0 {
		return 0, false, err
	}
	pivot := first[0].ID
	err = db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ?", roomID).
		Where(`(created_at < (SELECT p.created_at FROM messages AS p WHERE p.id = ?)
			OR (created_at = (SELECT p.created_at FROM messages AS p WHERE p.id = ?) AND id < ?))`, pivot, pivot, pivot).
		Count(&before).Error
	return before, err == nil, err
}

// UnreadCounts returns readerID's unseen row count per room.
func UnreadCounts(ctx context.Context, db *gorm.DB, readerID string) (map[string]int64, error) {
	var rows []struct {
		RoomID string
		Unread int64
	}
	err := db.WithContext(ctx).
		Model(&domain.UnseenMessage{}).
		Select("room_id, COUNT(*) AS unread").
		Where("user_id = ?", readerID).
		Group("room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.RoomID] = r.Unread
	}
	return out, nil
}

// LastMessages returns the most recent message of each listed room, keyed
// by room id. Rooms without messages are absent from the map.
func LastMessages(ctx context.Context, db *gorm.DB, roomIDs []string) (map[string]domain.Message, error) {
	out := make(map[string]domain.Message, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	var msgs []domain.Message
	err := db.WithContext(ctx).
		Table("messages AS m").
		Select("m.*").
		Where("m.room_id IN ?", roomIDs).
		Where(`NOT EXISTS (SELECT 1 FROM messages AS n
			WHERE n.room_id = m.room_id
			AND (n.created_at > m.created_at OR (n.created_at = m.created_at AND n.id > m.id)))`).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.RoomID] = m
	}
	return out, nil
}

// UnreadSummary builds one entry per live room readerID belongs to, with the
// latest message and the reader's unread count. Rooms with no unread
// messages are included with a zero count. Entries are ordered by last
// activity, newest first.
func UnreadSummary(ctx context.Context, db *gorm.DB, readerID string) ([]domain.UnreadEntry, error) {
	var rooms []domain.Room
	err := roomsForUser(db.WithContext(ctx), readerID).
		Select("rooms.*").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return []domain.UnreadEntry{}, nil
	}

	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	counts, err := UnreadCounts(ctx, db, readerID)
	if err != nil {
		return nil, err
	}
	last, err := LastMessages(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		entry    domain.UnreadEntry
		activity time.Time
	}
	rs := make([]ranked, 0, len(rooms))
	for _, r := range rooms {
		e := domain.UnreadEntry{
			RoomID:   r.ID,
			RoomName: r.Name,
			RoomKind: r.Kind,
			Unread:   counts[r.ID],
		}
		at := r.CreatedAt
		if m, ok := last[r.ID]; ok {
			created := m.CreatedAt
			typ := m.Type
			e.Text = m.Text
			e.Type = &typ
			e.CreatedAt = &created
			at = created
		}
		rs = append(rs, ranked{entry: e, activity: at})
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].activity.Equal(rs[j].activity) {
			return rs[i].activity.After(rs[j].activity)
		}
		return rs[i].entry.RoomID < rs[j].entry.RoomID
	})
	out := make([]domain.UnreadEntry, len(rs))
	for i, r := range rs {
		out[i] = r.entry
	}
	return out, nil
}
