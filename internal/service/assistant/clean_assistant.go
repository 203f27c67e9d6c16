package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PurgeOrphanSessions deletes sessions whose owning user no longer exists.
// Their messages go with them through the foreign key cascade, or explicitly
// when the database was created without one.
func (s *Service) PurgeOrphanSessions(ctx context.Context) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM message WHERE session_id IN
			(SELECT id FROM session WHERE user_id NOT IN (SELECT id FROM users))`,
	); err != nil {
		return 0, fmt.Errorf("purge orphan messages: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE user_id NOT IN (SELECT id FROM users)`)
	if err != nil {
		return 0, fmt.Errorf("purge orphan sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("orphan rows affected: %w", err)
	}
	if n > 0 {
		s.log.Info("purged orphan sessions", zap.Int64("count", n))
	}
	return n, nil
}
