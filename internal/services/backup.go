package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/todo-app/apiserver/types"
)

const backupContentType = "application/json"

// ObjectWriter is the part of object storage the backup needs.
type ObjectWriter interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// UserBackup is the document written for each user.
type UserBackup struct {
	User       types.PublicUser `json:"user"`
	ExportedAt time.Time        `json:"exported_at"`
	Todos      []types.Todo     `json:"todos"`
}

// BackupResult summarizes a backup run.
type BackupResult struct {
	Bucket string
	Prefix string
	Users  int
	Todos  int
}

// BackupService exports every user's todos to object storage.
type BackupService struct {
	users   *UserService
	todos   *TodoService
	objects ObjectWriter
	logger  *slog.Logger
	now     func() time.Time
}

func NewBackupService(users *UserService, todos *TodoService, objects ObjectWriter, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupService{
		users:   users,
		todos:   todos,
		objects: objects,
		logger:  logger,
		now:     time.Now,
	}
}

// Run writes backups/<timestamp>/user-<id>.json for every user. Todos are
// read through the owner-scoped service, one owner at a time.
func (s *BackupService) Run(ctx context.Context) (BackupResult, error) {
	startedAt := s.now().UTC()
	result := BackupResult{
		Bucket: s.objects.Bucket(),
		Prefix: path.Join("backups", startedAt.Format("20060102T150405Z")),
	}

	if err := s.objects.EnsureBucket(ctx); err != nil {
		return BackupResult{}, fmt.Errorf("ensure bucket: %w", err)
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return BackupResult{}, fmt.Errorf("list users: %w", err)
	}

	for _, user := range users {
		todos, err := s.todos.List(ctx, user.ID)
		if err != nil {
			return result, fmt.Errorf("list todos for user %d: %w", user.ID, err)
		}

		doc, err := json.MarshalIndent(UserBackup{
			User:       user.Public(),
			ExportedAt: startedAt,
			Todos:      todos,
		}, "", "  ")
		if err != nil {
			return result, fmt.Errorf("encode backup for user %d: %w", user.ID, err)
		}

		key := path.Join(result.Prefix, fmt.Sprintf("user-%d.json", user.ID))
		if err := s.objects.Put(ctx, key, bytes.NewReader(doc), int64(len(doc)), backupContentType); err != nil {
			return result, fmt.Errorf("upload %s: %w", key, err)
		}

		result.Users++
		result.Todos += len(todos)
		s.logger.DebugContext(ctx, "backed up user",
			slog.Int("user_id", user.ID),
			slog.Int("todos", len(todos)),
			slog.String("key", key),
		)
	}

	s.logger.InfoContext(ctx, "backup complete",
		slog.String("bucket", result.Bucket),
		slog.String("prefix", result.Prefix),
		slog.Int("users", result.Users),
		slog.Int("todos", result.Todos),
	)
	return result, nil
}
