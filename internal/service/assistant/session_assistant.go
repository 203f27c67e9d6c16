package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fraudechat/internal/models"
)

const sessionColumns = `s.id, s.user_id, u.username, s.title, s.is_active, s.created_at`

const sessionFrom = ` FROM session s LEFT JOIN users u ON u.id = s.user_id`

// CreateSession inserts a new active session for the user.
func (s *Service) CreateSession(ctx context.Context, userID int64, title string) (*models.Session, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = models.DefaultSessionTitle
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO session (user_id, title, is_active, created_at) VALUES (?, ?, ?, ?)`,
		userID, title, true, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	return &models.Session{ID: id, UserID: userID, Title: title, IsActive: true, CreatedAt: now}, nil
}

// GetSession loads a session by id, active or not.
func (s *Service) GetSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+sessionFrom+` WHERE s.id = ?`, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// LatestActiveSession returns the user's most recently created active session.
func (s *Service) LatestActiveSession(ctx context.Context, userID int64) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+sessionFrom+` WHERE s.user_id = ? AND s.is_active = ? ORDER BY s.created_at DESC, s.id DESC LIMIT 1`,
		userID, true,
	)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("latest session: %w", err)
	}
	return session, nil
}

// ListActiveSessions returns the user's active sessions, newest first.
func (s *Service) ListActiveSessions(ctx context.Context, userID int64) ([]*models.Session, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+sessionFrom+` WHERE s.user_id = ? AND s.is_active = ? ORDER BY s.created_at DESC, s.id DESC`,
		userID, true,
	)
}

// ListAllSessions returns every session of every user, newest first.
func (s *Service) ListAllSessions(ctx context.Context) ([]*models.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+sessionFrom+` ORDER BY s.created_at DESC, s.id DESC`)
}

// ListSessionsPage returns one page of all sessions and the total count.
func (s *Service) ListSessionsPage(ctx context.Context, page models.PageRequest) ([]*models.Session, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	sessions, err := s.querySessions(ctx,
		`SELECT `+sessionColumns+sessionFrom+` ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// DeactivateSession soft-deletes a session. Its messages are kept.
func (s *Service) DeactivateSession(ctx context.Context, sessionID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE session SET is_active = ? WHERE id = ?`, false, sessionID)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return s.checkSessionUpdated(ctx, res, sessionID)
}

// UpdateSessionTitle sets a session title.
func (s *Service) UpdateSessionTitle(ctx context.Context, sessionID int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE session SET title = ? WHERE id = ?`, title, sessionID)
	if err != nil {
		return fmt.Errorf("update session title: %w", err)
	}
	return s.checkSessionUpdated(ctx, res, sessionID)
}

// checkSessionUpdated maps an update that touched no row to ErrSessionNotFound.
// MySQL without clientFoundRows reports unchanged rows as unaffected, so a zero
// count is confirmed against the table.
func (s *Service) checkSessionUpdated(ctx context.Context, res sql.Result, sessionID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM session WHERE id = ?`, sessionID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrSessionNotFound
	case err != nil:
		return fmt.Errorf("check session: %w", err)
	}
	return nil
}

func (s *Service) querySessions(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session  models.Session
		username sql.NullString
	)
	if err := row.Scan(&session.ID, &session.UserID, &username, &session.Title, &session.IsActive, &session.CreatedAt); err != nil {
		return nil, err
	}
	session.Username = username.String
	return &session, nil
}
