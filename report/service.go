// Package report persists user-filed issue reports.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/store"
	"puzzle-pals-server/timeutil"
)

// reportPartition groups issue reports inside the reference table.
const reportPartition = "RI"

// Service records issue reports.
type Service struct {
	store  store.Store
	tables store.Tables
	log    *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, tables store.Tables) *Service {
	return &Service{
		store:  st,
		tables: tables,
		log:    slog.Default().With("tag", "report"),
		now:    time.Now,
	}
}

// File stores one issue report and returns its id. The uid is the
// authenticated reporter; email is the reply address the user typed.
func (s *Service) File(ctx context.Context, uid, email, message string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	if message == "" {
		return "", fmt.Errorf("%w: message is required", apperrors.ErrInvalidInput)
	}

	id := uuid.NewString()
	err := s.store.Put(ctx, s.tables.Reference, store.Item{
		"PKID":            reportPartition,
		"SKID":            id,
		"UID":             uid,
		"Email":           email,
		"Message":         message,
		"DateTimeCreated": timeutil.AESTTimestamp(s.now()),
	})
	if err != nil {
		return "", err
	}
	s.log.InfoContext(ctx, "issue report filed", "uid", uid, "id", id)
	return id, nil
}
