package assistant

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fraudechat/internal/models"
	"fraudechat/internal/persona"
)

// AddMessage appends a message to a session. mode is the persona active for
// the turn.
func (s *Service) AddMessage(ctx context.Context, sessionID int64, role models.Role, content string, mode persona.Mode) (*models.Message, error) {
	if sessionID <= 0 {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", ErrInvalidInput)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO message (session_id, sender, content, mode, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(role), content, mode.String(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	return &models.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Mode:      mode.String(),
		CreatedAt: now,
	}, nil
}

// ListMessages returns every message of a session in creation order.
func (s *Service) ListMessages(ctx context.Context, sessionID int64) ([]*models.Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, session_id, sender, content, mode, created_at FROM message
		 WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
}

// ListMessagesPage returns one page of a session's messages in creation order
// and the total message count.
func (s *Service) ListMessagesPage(ctx context.Context, sessionID int64, page models.PageRequest) ([]*models.Message, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message WHERE session_id = ?`, sessionID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	messages, err := s.queryMessages(ctx,
		`SELECT id, session_id, sender, content, mode, created_at FROM message
		 WHERE session_id = ? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		sessionID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// CountUserMessages counts the user-authored messages of a session.
func (s *Service) CountUserMessages(ctx context.Context, sessionID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message WHERE session_id = ? AND sender = ?`,
		sessionID, string(models.RoleUser),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return n, nil
}

func (s *Service) queryMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		var (
			m      models.Message
			sender string
			mode   sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &sender, &m.Content, &mode, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = models.ParseRole(sender)
		m.Mode = persona.ParseMode(mode.String).String()
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
